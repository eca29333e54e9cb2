package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AgingBucket classifies a balance by days past due.
type AgingBucket string

const (
	BucketCurrent AgingBucket = "current"
	Bucket1To30   AgingBucket = "1-30"
	Bucket31To60  AgingBucket = "31-60"
	Bucket61To90  AgingBucket = "61-90"
	Bucket90Plus  AgingBucket = "90+"
)

// AgingRow is one supplier's outstanding balance split by bucket.
type AgingRow struct {
	SupplierID   int             `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	Current      decimal.Decimal `json:"current"`
	Days1To30    decimal.Decimal `json:"days_1_30"`
	Days31To60   decimal.Decimal `json:"days_31_60"`
	Days61To90   decimal.Decimal `json:"days_61_90"`
	Days90Plus   decimal.Decimal `json:"days_90_plus"`
	Total        decimal.Decimal `json:"total"`
}

// OpenBill is the aging input for one bill.
type OpenBill struct {
	BillID       int
	SupplierID   int
	SupplierName string
	DueDate      *time.Time
	Balance      decimal.Decimal
}

// Statement entry types.
const (
	EntryBill         = "bill"
	EntryPayment      = "payment"
	EntryVendorCredit = "vendor_credit"
)

// StatementEntry is one dated movement on a supplier statement. Bills are
// debits; payments and vendor credits are credits.
type StatementEntry struct {
	Date        time.Time       `json:"date"`
	Type        string          `json:"type"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`

	sourceID int
}

// Statement is a supplier's chronological account between two dates.
type Statement struct {
	SupplierID     int              `json:"supplier_id"`
	SupplierName   string           `json:"supplier_name"`
	StartDate      *time.Time       `json:"start_date,omitempty"`
	EndDate        *time.Time       `json:"end_date,omitempty"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	ClosingBalance decimal.Decimal  `json:"closing_balance"`
	Data           []StatementEntry `json:"data"`
}

// ControlReconciliation compares the payables sub-ledger with the AP control
// account in the general ledger.
type ControlReconciliation struct {
	AsOf           time.Time       `json:"as_of"`
	AccountCode    string          `json:"account_code"`
	LedgerBalance  decimal.Decimal `json:"ledger_balance"`
	OpenBillsTotal decimal.Decimal `json:"open_bills_total"`
	Difference     decimal.Decimal `json:"difference"`
}

// AgingService produces read-only payables reports. Every report reads one
// consistent snapshot and never takes row locks.
type AgingService interface {
	// ComputeAgingBySupplier buckets the balance as of asOf of every bill
	// issued by then, not cancelled, with a positive balance on that date.
	// Payments and credits dated after asOf are ignored. Rows are aggregated
	// per supplier and sorted by total descending, then supplier id.
	ComputeAgingBySupplier(ctx context.Context, companyID int, asOf time.Time) ([]AgingRow, error)

	// ComputeSupplierStatement returns the opening balance before start and
	// the running-balance entries within [start, end]. Nil bounds are open.
	ComputeSupplierStatement(ctx context.Context, companyID, supplierID int, start, end *time.Time) (*Statement, error)

	// ReconcileControlAccount compares open balances as of asOf of the bills
	// the ledger carries on that date with the AP control account balance at
	// asOf, resolved through the account settings.
	ReconcileControlAccount(ctx context.Context, companyID int, asOf time.Time) (*ControlReconciliation, error)
}
