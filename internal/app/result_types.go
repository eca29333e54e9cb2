package app

import (
	"time"

	"ap-settlement/internal/core"
)

// UserSession is returned by AuthenticateUser.
type UserSession struct {
	UserID      int    `json:"user_id"`
	Username    string `json:"username"`
	CompanyID   int    `json:"company_id"`
	CompanyCode string `json:"company_code"`
	Role        string `json:"role"`
}

// UserResult is returned by GetUser.
type UserResult struct {
	UserID      int    `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	CompanyCode string `json:"company_code"`
}

// SuppliersResult is returned by ListSuppliers.
type SuppliersResult struct {
	Suppliers []core.Supplier `json:"suppliers"`
}

// CreateBillResult is returned by CreateBill.
type CreateBillResult struct {
	BillID int `json:"bill_id"`
}

// BillsResult is returned by ListBills.
type BillsResult struct {
	Bills []core.Bill `json:"bills"`
}

// PostBillResult is returned by PostBill. PostingPending is set when the bill
// is posted locally but its journal entry still has to be retried.
type PostBillResult struct {
	BillID         int  `json:"bill_id"`
	JournalID      *int `json:"journal_id"`
	PostingPending bool `json:"posting_pending,omitempty"`
}

// CreatePaymentResult is returned by CreatePayment.
type CreatePaymentResult struct {
	core.PaymentResult
	PostingPending bool `json:"posting_pending,omitempty"`
}

// PaymentsResult is returned by ListPayments.
type PaymentsResult struct {
	Payments []core.Payment `json:"payments"`
}

// CreateVendorCreditResult is returned by CreateVendorCredit.
type CreateVendorCreditResult struct {
	CreditID int `json:"credit_id"`
}

// ApplyVendorCreditResult is returned by ApplyVendorCredit.
type ApplyVendorCreditResult struct {
	core.CreditApplication
	PostingPending bool `json:"posting_pending,omitempty"`
}

// VendorCreditsResult is returned by ListVendorCredits.
type VendorCreditsResult struct {
	Credits []core.VendorCredit `json:"credits"`
}

// PurchaseOrdersResult is returned by ListPurchaseOrders.
type PurchaseOrdersResult struct {
	Orders []core.PurchaseOrder `json:"orders"`
}

// GoodsReceiptsResult is returned by ListGoodsReceipts.
type GoodsReceiptsResult struct {
	Receipts []core.GoodsReceipt `json:"receipts"`
}

// MatchLinksResult is returned by ListMatchLinks.
type MatchLinksResult struct {
	Links []core.MatchLink `json:"links"`
}

// AgingResult is returned by GetAging.
type AgingResult struct {
	AsOf time.Time       `json:"as_of"`
	Rows []core.AgingRow `json:"data"`
}

// UnpostedResult is returned by ListUnposted.
type UnpostedResult struct {
	Entities []core.UnpostedEntity `json:"data"`
}

// RetryPostingsResult is returned by RetryPostings.
type RetryPostingsResult struct {
	Attempted int                   `json:"attempted"`
	Posted    int                   `json:"posted"`
	Outcomes  []core.PostingOutcome `json:"data"`
}
