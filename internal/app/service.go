package app

import (
	"context"
	"time"

	"ap-settlement/internal/core"
)

// ApplicationService is the single interface the CLI and web adapters call.
// Every method is scoped by company code and returns plain result structs;
// no display logic lives behind it.
type ApplicationService interface {
	// ResolveCompany returns the company for a code.
	ResolveCompany(ctx context.Context, companyCode string) (*core.Company, error)

	// LoadDefaultCompany returns the configured COMPANY_CODE company, or the
	// only company when none is configured.
	LoadDefaultCompany(ctx context.Context) (*core.Company, error)

	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns a user profile by id.
	GetUser(ctx context.Context, userID int) (*UserResult, error)

	// ── Suppliers ─────────────────────────────────────────────────────────────

	ListSuppliers(ctx context.Context, companyCode string) (*SuppliersResult, error)
	CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*core.Supplier, error)
	GetSupplier(ctx context.Context, companyCode string, supplierID int) (*core.Supplier, error)

	// ── Bills ─────────────────────────────────────────────────────────────────

	// CreateBill stores a draft bill. A fingerprint collision returns core.ErrDuplicateBill.
	CreateBill(ctx context.Context, req CreateBillRequest) (*CreateBillResult, error)
	GetBill(ctx context.Context, companyCode string, billID int) (*core.Bill, error)
	ListBills(ctx context.Context, companyCode string, filter core.BillFilter) (*BillsResult, error)

	// PostBill posts a draft bill. A ledger failure is not an error: the result
	// carries a nil journal id and PostingPending.
	PostBill(ctx context.Context, companyCode string, billID int) (*PostBillResult, error)

	// CancelBill cancels a bill without allocations.
	CancelBill(ctx context.Context, companyCode string, billID int) error

	// ── Payments ──────────────────────────────────────────────────────────────

	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)
	GetPayment(ctx context.Context, companyCode string, paymentID int) (*core.Payment, error)
	ListPayments(ctx context.Context, companyCode string, supplierID int) (*PaymentsResult, error)

	// ── Vendor credits ────────────────────────────────────────────────────────

	CreateVendorCredit(ctx context.Context, req CreateVendorCreditRequest) (*CreateVendorCreditResult, error)
	ApplyVendorCredit(ctx context.Context, req ApplyVendorCreditRequest) (*ApplyVendorCreditResult, error)
	GetVendorCredit(ctx context.Context, companyCode string, creditID int) (*core.VendorCredit, error)
	ListVendorCredits(ctx context.Context, companyCode string, supplierID int) (*VendorCreditsResult, error)
	CancelVendorCredit(ctx context.Context, companyCode string, creditID int) error

	// ── Procurement ───────────────────────────────────────────────────────────

	CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*core.PurchaseOrder, error)
	ApprovePurchaseOrder(ctx context.Context, companyCode string, poID int) (*core.PurchaseOrder, error)
	CancelPurchaseOrder(ctx context.Context, companyCode string, poID int) error
	GetPurchaseOrder(ctx context.Context, companyCode string, poID int) (*core.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, companyCode, status string) (*PurchaseOrdersResult, error)

	ReceiveGoods(ctx context.Context, req ReceiveGoodsRequest) (*core.GoodsReceipt, error)
	CancelGoodsReceipt(ctx context.Context, companyCode string, grnID int) error
	GetGoodsReceipt(ctx context.Context, companyCode string, grnID int) (*core.GoodsReceipt, error)
	ListGoodsReceipts(ctx context.Context, companyCode string, poID int) (*GoodsReceiptsResult, error)

	// ── Three-way match ───────────────────────────────────────────────────────

	GetMatchableLines(ctx context.Context, companyCode string, supplierID int) (*core.MatchableLines, error)
	ApplyMatches(ctx context.Context, req ApplyMatchesRequest) (*core.MatchResult, error)
	ListMatchLinks(ctx context.Context, companyCode string, supplierID int) (*MatchLinksResult, error)

	// ── Reports ───────────────────────────────────────────────────────────────

	// GetAging buckets open balances per supplier as of asOf (today when zero).
	GetAging(ctx context.Context, companyCode string, asOf time.Time) (*AgingResult, error)

	// GetSupplierStatement returns the running-balance statement. Dates are
	// optional YYYY-MM-DD strings.
	GetSupplierStatement(ctx context.Context, companyCode string, supplierID int, startDate, endDate string) (*core.Statement, error)

	ReconcileControlAccount(ctx context.Context, companyCode string, asOf time.Time) (*core.ControlReconciliation, error)

	// ── Ledger postings ───────────────────────────────────────────────────────

	ListUnposted(ctx context.Context, companyCode string) (*UnpostedResult, error)
	RetryPostings(ctx context.Context, companyCode string) (*RetryPostingsResult, error)
}
