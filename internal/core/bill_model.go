package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance for every balance comparison.
var Epsilon = decimal.New(1, -4)

// BillStatus is the lifecycle state of a supplier bill.
type BillStatus string

const (
	BillDraft     BillStatus = "draft"
	BillPosted    BillStatus = "posted"
	BillPaid      BillStatus = "paid"
	BillCancelled BillStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s BillStatus) IsTerminal() bool {
	return s == BillPaid || s == BillCancelled
}

// CanTransitionTo enforces draft -> posted -> paid with draft|posted -> cancelled.
func (s BillStatus) CanTransitionTo(next BillStatus) bool {
	switch s {
	case BillDraft:
		return next == BillPosted || next == BillCancelled
	case BillPosted:
		return next == BillPaid || next == BillCancelled
	default:
		return false
	}
}

// CanReceiveAllocation reports whether payments or credits may be allocated.
func (s BillStatus) CanReceiveAllocation() bool {
	return s == BillPosted
}

// Bill is one supplier invoice.
type Bill struct {
	ID             int             `json:"id"`
	CompanyID      int             `json:"company_id"`
	SupplierID     int             `json:"supplier_id"`
	SupplierName   string          `json:"supplier_name"`
	InvoiceNumber  string          `json:"invoice_number"`
	InvoiceDate    time.Time       `json:"invoice_date"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Currency       string          `json:"currency"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	Status         BillStatus      `json:"status"`
	Fingerprint    string          `json:"fingerprint"`
	JournalEntryID *int            `json:"journal_entry_id,omitempty"`
	PostedAt       *time.Time      `json:"posted_at,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`

	// Allocation aggregates, recomputed on every read.
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	CreditedAmount decimal.Decimal `json:"credited_amount"`
	Balance        decimal.Decimal `json:"balance"`

	Lines []BillLine `json:"lines,omitempty"`
}

// DisplayBalance is the outstanding balance clamped at zero.
// Allocation checks must use Balance, never this.
func (b *Bill) DisplayBalance() decimal.Decimal {
	if b.Balance.IsNegative() {
		return decimal.Zero
	}
	return b.Balance
}

// BillLine is one line of a bill. Immutable once created.
type BillLine struct {
	ID              int             `json:"id"`
	BillID          int             `json:"bill_id"`
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

// BillHeader is the caller-supplied header of a new bill.
// Subtotal and Tax are optional; see ResolveHeaderTotals.
type BillHeader struct {
	SupplierID    int              `json:"supplier_id"`
	InvoiceNumber string           `json:"invoice_number"`
	InvoiceDate   time.Time        `json:"invoice_date"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
	Currency      string           `json:"currency"`
	Subtotal      *decimal.Decimal `json:"subtotal,omitempty"`
	Tax           *decimal.Decimal `json:"tax,omitempty"`
	Total         decimal.Decimal  `json:"total"`
}

// BillFilter narrows ListBills. Zero values match everything.
type BillFilter struct {
	SupplierID int
	Status     BillStatus
}

// PostResult reports the outcome of a ledger-affecting operation.
// JournalEntryID is nil while the entity is still unposted.
type PostResult struct {
	ID             int  `json:"id"`
	JournalEntryID *int `json:"journal_id"`
}

// Posted reports whether the ledger posting has succeeded.
func (r PostResult) Posted() bool {
	return r.JournalEntryID != nil
}

// BillFingerprint is the duplicate-detection key: a sha256 over supplier,
// invoice number, invoice date and total. Invoice number whitespace is
// trimmed and the total normalised to two decimals.
func BillFingerprint(supplierID int, invoiceNumber string, invoiceDate time.Time, total decimal.Decimal) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(supplierID)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(invoiceNumber)))
	h.Write([]byte{0})
	h.Write([]byte(invoiceDate.Format(DateLayout)))
	h.Write([]byte{0})
	h.Write([]byte(total.StringFixed(2)))
	return hex.EncodeToString(h.Sum(nil))
}

// BillService owns supplier bills and their balances.
type BillService interface {
	// CreateBill validates the header, computes the fingerprint and persists the
	// bill in draft status with all lines in one transaction. Returns
	// ErrDuplicateBill when the fingerprint already exists for the company.
	CreateBill(ctx context.Context, companyID int, header BillHeader, lines []LineInput) (int, error)

	// GetBill returns a bill with lines and allocation aggregates.
	GetBill(ctx context.Context, companyID, billID int) (*Bill, error)

	// ListBills returns bills newest first, without lines.
	ListBills(ctx context.Context, companyID int, filter BillFilter) ([]Bill, error)

	// GetOutstandingBalance returns total - payment allocations - credit
	// allocations. The value is not clamped.
	GetOutstandingBalance(ctx context.Context, companyID, billID int) (decimal.Decimal, error)

	// MarkPaidIfSettled moves a posted bill to paid once its balance is within
	// Epsilon of zero. Calling it on a paid bill is a no-op. Reports whether the
	// bill is paid afterwards.
	MarkPaidIfSettled(ctx context.Context, companyID, billID int) (bool, error)

	// PostBill moves a draft bill to posted, then posts it to the ledger. A
	// ledger failure returns the committed result together with an error
	// wrapping ErrLedgerPosting. Posting an already posted bill retries only the
	// ledger step.
	PostBill(ctx context.Context, companyID, billID int) (*PostResult, error)

	// CancelBill cancels a draft or posted bill that has no allocations. A
	// posted bill's journal entry is reversed after commit.
	CancelBill(ctx context.Context, companyID, billID int) error
}
