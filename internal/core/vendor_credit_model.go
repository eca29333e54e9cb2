package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CreditStatus is the lifecycle state of a vendor credit.
type CreditStatus string

const (
	CreditDraft     CreditStatus = "draft"
	CreditApplied   CreditStatus = "applied"
	CreditCancelled CreditStatus = "cancelled"
)

// VendorCredit is a credit note from a supplier. Same shape as a bill,
// opposite effect.
type VendorCredit struct {
	ID             int                      `json:"id"`
	CompanyID      int                      `json:"company_id"`
	SupplierID     int                      `json:"supplier_id"`
	CreditNumber   string                   `json:"credit_number"`
	CreditDate     time.Time                `json:"credit_date"`
	Currency       string                   `json:"currency"`
	Subtotal       decimal.Decimal          `json:"subtotal"`
	Tax            decimal.Decimal          `json:"tax"`
	Total          decimal.Decimal          `json:"total"`
	Status         CreditStatus             `json:"status"`
	Notes          *string                  `json:"notes,omitempty"`
	JournalEntryID *int                     `json:"journal_entry_id,omitempty"`
	AppliedAt      *time.Time               `json:"applied_at,omitempty"`
	CancelledAt    *time.Time               `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	Allocated      decimal.Decimal          `json:"allocated"`
	Unapplied      decimal.Decimal          `json:"unapplied"`
	Lines          []CreditLine             `json:"lines,omitempty"`
	Allocations    []VendorCreditAllocation `json:"allocations,omitempty"`
}

// CreditLine is one line of a vendor credit.
type CreditLine struct {
	ID              int             `json:"id"`
	CreditID        int             `json:"credit_id"`
	LineNumber      int             `json:"line_number"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"qty"`
	Unit            string          `json:"unit"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Discount        decimal.Decimal `json:"discount"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	LineTotal       decimal.Decimal `json:"line_total"`
	GLAccountID     *int            `json:"gl_account_id,omitempty"`
	ProjectRef      *string         `json:"project_ref,omitempty"`
	InventoryItemID *int            `json:"inventory_item_id,omitempty"`
}

// VendorCreditAllocation ties part of a credit to one bill.
type VendorCreditAllocation struct {
	ID            int             `json:"id"`
	CreditID      int             `json:"credit_id"`
	BillID        int             `json:"bill_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
}

// VendorCreditHeader is the caller-supplied header of a new credit.
// Amounts always come from the lines.
type VendorCreditHeader struct {
	SupplierID   int       `json:"supplier_id"`
	CreditNumber string    `json:"credit_number"`
	CreditDate   time.Time `json:"credit_date"`
	Currency     string    `json:"currency"`
	Notes        string    `json:"notes,omitempty"`
}

// CreditApplication is the outcome of ApplyVendorCredit.
type CreditApplication struct {
	CreditID       int                 `json:"credit_id"`
	Applied        decimal.Decimal     `json:"applied"`
	Unapplied      decimal.Decimal     `json:"unapplied"`
	JournalEntryID *int                `json:"journal_id"`
	PaidBills      []int               `json:"paid_bills"`
	Skipped        []SkippedAllocation `json:"skipped,omitempty"`
}

// VendorCreditService records supplier credit notes and applies them to bills.
type VendorCreditService interface {
	// CreateVendorCredit computes subtotal, tax and total from the lines and
	// persists the credit in draft status with its lines atomically.
	CreateVendorCredit(ctx context.Context, companyID int, header VendorCreditHeader, lines []LineInput) (int, error)

	// ApplyVendorCredit allocates a draft credit across bills and marks it
	// applied in the same transaction. Rejects with ErrAlreadyApplied,
	// ErrOverAllocation or ErrEmptyAllocation before any write. The credit is
	// posted to the ledger after commit.
	ApplyVendorCredit(ctx context.Context, companyID, creditID int, allocations []Allocation) (*CreditApplication, error)

	// GetVendorCredit returns a credit with lines, allocations and the unapplied remainder.
	GetVendorCredit(ctx context.Context, companyID, creditID int) (*VendorCredit, error)

	// ListVendorCredits returns credits newest first. supplierID 0 lists all.
	ListVendorCredits(ctx context.Context, companyID, supplierID int) ([]VendorCredit, error)

	// CancelVendorCredit cancels a draft credit.
	CancelVendorCredit(ctx context.Context, companyID, creditID int) error
}
