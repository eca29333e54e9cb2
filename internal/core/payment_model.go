package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one disbursement to a supplier.
type Payment struct {
	ID             int                 `json:"id"`
	CompanyID      int                 `json:"company_id"`
	SupplierID     int                 `json:"supplier_id"`
	PaymentDate    time.Time           `json:"payment_date"`
	Method         string              `json:"method"`
	BankAccountID  *int                `json:"bank_account_id,omitempty"`
	Reference      *string             `json:"reference,omitempty"`
	Amount         decimal.Decimal     `json:"amount"`
	JournalEntryID *int                `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	Allocations    []PaymentAllocation `json:"allocations,omitempty"`
}

// PaymentAllocation ties part of a payment to one bill.
type PaymentAllocation struct {
	ID            int             `json:"id"`
	PaymentID     int             `json:"payment_id"`
	BillID        int             `json:"bill_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
}

// PaymentInput is a request to pay one supplier across one or more bills.
type PaymentInput struct {
	SupplierID    int          `json:"supplier_id"`
	PaymentDate   time.Time    `json:"payment_date"`
	Method        string       `json:"method"`
	BankAccountID *int         `json:"bank_account_id,omitempty"`
	Reference     *string      `json:"reference,omitempty"`
	Allocations   []Allocation `json:"allocations"`
}

// PaymentResult is the outcome of CreatePayment.
type PaymentResult struct {
	PaymentID      int                 `json:"payment_id"`
	Amount         decimal.Decimal     `json:"amount"`
	JournalEntryID *int                `json:"journal_id"`
	PaidBills      []int               `json:"paid_bills"`
	Skipped        []SkippedAllocation `json:"skipped,omitempty"`
}

// PaymentService records supplier payments and their allocations.
type PaymentService interface {
	// CreatePayment sums the positive allocations into the payment amount,
	// skipping the rest, and returns ErrEmptyPayment when nothing positive
	// remains. Header, allocations and resulting bill status changes commit in
	// one transaction; each allocation is checked against its bill's balance
	// under a row lock. The payment is posted to the ledger after commit; on
	// ledger failure the committed result is returned with an error wrapping
	// ErrLedgerPosting.
	CreatePayment(ctx context.Context, companyID int, input PaymentInput) (*PaymentResult, error)

	// GetPayment returns a payment with its allocations.
	GetPayment(ctx context.Context, companyID, paymentID int) (*Payment, error)

	// ListPayments returns payments newest first. supplierID 0 lists all.
	ListPayments(ctx context.Context, companyID, supplierID int) ([]Payment, error)
}
