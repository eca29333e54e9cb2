package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ap-settlement/internal/core"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by AuthenticateUser for an unknown user,
// an inactive user or a wrong password. The three cases are indistinguishable.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Services bundles the core services the application layer delegates to.
type Services struct {
	Companies     core.CompanyService
	Users         core.UserService
	Suppliers     core.SupplierService
	Bills         core.BillService
	Payments      core.PaymentService
	Credits       core.VendorCreditService
	PurchaseOrder core.PurchaseOrderService
	GoodsReceipts core.GoodsReceiptService
	Matches       core.MatchService
	Aging         core.AgingService
	Postings      core.PostingService
}

type appService struct {
	svc         Services
	companyCode string
	log         zerolog.Logger
	now         func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
// defaultCompanyCode is the configured COMPANY_CODE and may be empty.
func NewAppService(svc Services, defaultCompanyCode string, log zerolog.Logger) ApplicationService {
	return &appService{
		svc:         svc,
		companyCode: defaultCompanyCode,
		log:         log.With().Str("component", "app").Logger(),
		now:         time.Now,
	}
}

// ResolveCompany returns the company for a code.
func (s *appService) ResolveCompany(ctx context.Context, companyCode string) (*core.Company, error) {
	return s.svc.Companies.GetByCode(ctx, companyCode)
}

// LoadDefaultCompany loads the active company, using the configured code if set.
func (s *appService) LoadDefaultCompany(ctx context.Context) (*core.Company, error) {
	if s.companyCode != "" {
		return s.svc.Companies.GetByCode(ctx, s.companyCode)
	}
	return s.svc.Companies.GetDefault(ctx)
}

// AuthenticateUser checks the bcrypt hash and returns the session payload.
func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	user, err := s.svc.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	company, err := s.svc.Companies.GetByID(ctx, user.CompanyID)
	if err != nil {
		return nil, err
	}
	return &UserSession{
		UserID:      user.ID,
		Username:    user.Username,
		CompanyID:   user.CompanyID,
		CompanyCode: company.CompanyCode,
		Role:        string(user.Role),
	}, nil
}

// GetUser returns the profile of a user.
func (s *appService) GetUser(ctx context.Context, userID int) (*UserResult, error) {
	user, err := s.svc.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	company, err := s.svc.Companies.GetByID(ctx, user.CompanyID)
	if err != nil {
		return nil, err
	}
	return &UserResult{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Role:        string(user.Role),
		CompanyCode: company.CompanyCode,
	}, nil
}

// ── Suppliers ─────────────────────────────────────────────────────────────────

func (s *appService) ListSuppliers(ctx context.Context, companyCode string) (*SuppliersResult, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	suppliers, err := s.svc.Suppliers.GetSuppliers(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &SuppliersResult{Suppliers: suppliers}, nil
}

func (s *appService) CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*core.Supplier, error) {
	c, err := s.fetchCompany(ctx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	return s.svc.Suppliers.CreateSupplier(ctx, c.ID, req.SupplierInput)
}

func (s *appService) GetSupplier(ctx context.Context, companyCode string, supplierID int) (*core.Supplier, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.svc.Suppliers.GetSupplier(ctx, c.ID, supplierID)
}

// ── Bills ─────────────────────────────────────────────────────────────────────

// CreateBill parses the header dates and stores a draft bill.
func (s *appService) CreateBill(ctx context.Context, req CreateBillRequest) (*CreateBillResult, error) {
	c, err := s.fetchCompany(ctx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	invoiceDate, err := parseDate("invoice_date", req.Header.InvoiceDate)
	if err != nil {
		return nil, err
	}
	dueDate, err := parseOptionalDate("due_date", req.Header.DueDate)
	if err != nil {
		return nil, err
	}
	currency := req.Header.Currency
	if currency == "" {
		currency = c.BaseCurrency
	}
	header := core.BillHeader{
		SupplierID:    req.Header.SupplierID,
		InvoiceNumber: req.Header.InvoiceNumber,
		InvoiceDate:   invoiceDate,
		DueDate:       dueDate,
		Currency:      currency,
		Subtotal:      req.Header.Subtotal,
		Tax:           req.Header.Tax,
		Total:         req.Header.Total,
	}
	id, err := s.svc.Bills.CreateBill(ctx, c.ID, header, req.Lines)
	if err != nil {
		return nil, err
	}
	return &CreateBillResult{BillID: id}, nil
}

func (s *appService) GetBill(ctx context.Context, companyCode string, billID int) (*core.Bill, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.svc.Bills.GetBill(ctx, c.ID, billID)
}

func (s *appService) ListBills(ctx context.Context, companyCode string, filter core.BillFilter) (*BillsResult, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	bills, err := s.svc.Bills.ListBills(ctx, c.ID, filter)
	if err != nil {
		return nil, err
	}
	return &BillsResult{Bills: bills}, nil
}

// PostBill posts a draft bill. When only the ledger step fails the bill stays
// posted and the result reports the pending journal entry.
func (s *appService) PostBill(ctx context.Context, companyCode string, billID int) (*PostBillResult, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	res, err := s.svc.Bills.PostBill(ctx, c.ID, billID)
	pending, err := s.postingPending(res != nil, err)
	if err != nil {
		return nil, err
	}
	return &PostBillResult{BillID: res.ID, JournalID: res.JournalEntryID, PostingPending: pending}, nil
}

// CancelBill cancels the bill. A failed reversal posting is left for retry.
func (s *appService) CancelBill(ctx context.Context, companyCode string, billID int) error {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return err
	}
	_, err = s.postingPending(true, s.svc.Bills.CancelBill(ctx, c.ID, billID))
	return err
}

// ── Payments ──────────────────────────────────────────────────────────────────

func (s *appService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	c, err := s.fetchCompany(ctx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	paymentDate, err := s.dateOrToday("payment_date", req.PaymentDate)
	if err != nil {
		return nil, err
	}
	res, err := s.svc.Payments.CreatePayment(ctx, c.ID, core.PaymentInput{
		SupplierID:    req.SupplierID,
		PaymentDate:   paymentDate,
		Method:        req.Method,
		BankAccountID: req.BankAccountID,
		Reference:     req.Reference,
		Allocations:   req.Allocations,
	})
	pending, err := s.postingPending(res != nil, err)
	if err != nil {
		return nil, err
	}
	return &CreatePaymentResult{PaymentResult: *res, PostingPending: pending}, nil
}

func (s *appService) GetPayment(ctx context.Context, companyCode string, paymentID int) (*core.Payment, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.svc.Payments.GetPayment(ctx, c.ID, paymentID)
}

func (s *appService) ListPayments(ctx context.Context, companyCode string, supplierID int) (*PaymentsResult, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	payments, err := s.svc.Payments.ListPayments(ctx, c.ID, supplierID)
	if err != nil {
		return nil, err
	}
	return &PaymentsResult{Payments: payments}, nil
}

// ── Vendor credits ────────────────────────────────────────────────────────────

func (s *appService) CreateVendorCredit(ctx context.Context, req CreateVendorCreditRequest) (*CreateVendorCreditResult, error) {
	c, err := s.fetchCompany(ctx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	creditDate, err := s.dateOrToday("credit_date", req.Header.CreditDate)
	if err != nil {
		return nil, err
	}
	currency := req.Header.Currency
	if currency == "" {
		currency = c.BaseCurrency
	}
	id, err := s.svc.Credits.CreateVendorCredit(ctx, c.ID, core.VendorCreditHeader{
		SupplierID:   req.Header.SupplierID,
		CreditNumber: req.Header.CreditNumber,
		CreditDate:   creditDate,
		Currency:     currency,
		Notes:        req.Header.Notes,
	}, req.Lines)
	if err != nil {
		return nil, err
	}
	return &CreateVendorCreditResult{CreditID: id}, nil
}

func (s *appService) ApplyVendorCredit(ctx context.Context, req ApplyVendorCreditRequest) (*ApplyVendorCreditResult, error) {
	c, err := s.fetchCompany(ctx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	res, err := s.svc.Credits.ApplyVendorCredit(ctx, c.ID, req.CreditID, req.Allocations)
	pending, err := s.postingPending(res != nil, err)
	if err != nil {
		return nil, err
	}
	return &ApplyVendorCreditResult{CreditApplication: *res, PostingPending: pending}, nil
}

func (s *appService) GetVendorCredit(ctx context.Context, companyCode string, creditID int) (*core.VendorCredit, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.svc.Credits.GetVendorCredit(ctx, c.ID, creditID)
}

func (s *appService) ListVendorCredits(ctx context.Context, companyCode string, supplierID int) (*VendorCreditsResult, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	credits, err := s.svc.Credits.ListVendorCredits(ctx, c.ID, supplierID)
	if err != nil {
		return nil, err
	}
	return &VendorCreditsResult{Credits: credits}, nil
}

func (s *appService) CancelVendorCredit(ctx context.Context, companyCode string, creditID int) error {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return err
	}
	return s.svc.Credits.CancelVendorCredit(ctx, c.ID, creditID)
}

// ── Procurement ───────────────────────────────────────────────────────────────

func (s *appService) CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*core.PurchaseOrder, error) {
	c, err := s.fetchCompany(ctx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	poDate, err := s.dateOrToday("po_date", req.PODate)
	if err != nil {
		return nil, err
	}
	expected, err := parseOptionalDate("expected_delivery_date", req.ExpectedDeliveryDate)
	if err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = c.BaseCurrency
	}
	return s.svc.PurchaseOrder.CreatePO(ctx, c.ID, core.PurchaseOrderInput{
		SupplierID:           req.SupplierID,
		PODate:               poDate,
		ExpectedDeliveryDate: expected,
		Currency:             currency,
		Notes:                req.Notes,
	}, req.Lines)
}

func (s *appService) ApprovePurchaseOrder(ctx context.Context, companyCode string, poID int) (*core.PurchaseOrder, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.svc.PurchaseOrder.ApprovePO(ctx, c.ID, poID)
}

func (s *appService) CancelPurchaseOrder(ctx context.Context, companyCode string, poID int) error {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return err
	}
	return s.svc.PurchaseOrder.CancelPO(ctx, c.ID, poID)
}

func (s *appService) GetPurchaseOrder(ctx context.Context, companyCode string, poID int) (*core.PurchaseOrder, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.svc.PurchaseOrder.GetPO(ctx, c.ID, poID)
}

func (s *appService) ListPurchaseOrders(ctx context.Context, companyCode, status string) (*PurchaseOrdersResult, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	orders, err := s.svc.PurchaseOrder.GetPOs(ctx, c.ID, status)
	if err != nil {
		return nil, err
	}
	return &PurchaseOrdersResult{Orders: orders}, nil
}

func (s *appService) ReceiveGoods(ctx context.Context, req ReceiveGoodsRequest) (*core.GoodsReceipt, error) {
	c, err := s.fetchCompany(ctx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	received, err := s.dateOrToday("received_date", req.ReceivedDate)
	if err != nil {
		return nil, err
	}
	return s.svc.GoodsReceipts.CreateGRN(ctx, c.ID, core.GoodsReceiptInput{
		POID:         req.POID,
		ReceivedDate: received,
		Notes:        req.Notes,
		Lines:        req.Lines,
	})
}

func (s *appService) CancelGoodsReceipt(ctx context.Context, companyCode string, grnID int) error {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return err
	}
	return s.svc.GoodsReceipts.CancelGRN(ctx, c.ID, grnID)
}

func (s *appService) GetGoodsReceipt(ctx context.Context, companyCode string, grnID int) (*core.GoodsReceipt, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.svc.GoodsReceipts.GetGRN(ctx, c.ID, grnID)
}

func (s *appService) ListGoodsReceipts(ctx context.Context, companyCode string, poID int) (*GoodsReceiptsResult, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	receipts, err := s.svc.GoodsReceipts.ListGRNs(ctx, c.ID, poID)
	if err != nil {
		return nil, err
	}
	return &GoodsReceiptsResult{Receipts: receipts}, nil
}

// ── Three-way match ───────────────────────────────────────────────────────────

func (s *appService) GetMatchableLines(ctx context.Context, companyCode string, supplierID int) (*core.MatchableLines, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.svc.Matches.GetMatchableLines(ctx, c.ID, supplierID)
}

func (s *appService) ApplyMatches(ctx context.Context, req ApplyMatchesRequest) (*core.MatchResult, error) {
	c, err := s.fetchCompany(ctx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	return s.svc.Matches.ApplyMatches(ctx, c.ID, req.Matches)
}

func (s *appService) ListMatchLinks(ctx context.Context, companyCode string, supplierID int) (*MatchLinksResult, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	links, err := s.svc.Matches.ListMatchLinks(ctx, c.ID, supplierID)
	if err != nil {
		return nil, err
	}
	return &MatchLinksResult{Links: links}, nil
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (s *appService) GetAging(ctx context.Context, companyCode string, asOf time.Time) (*AgingResult, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.today()
	}
	rows, err := s.svc.Aging.ComputeAgingBySupplier(ctx, c.ID, asOf)
	if err != nil {
		return nil, err
	}
	return &AgingResult{AsOf: asOf, Rows: rows}, nil
}

func (s *appService) GetSupplierStatement(ctx context.Context, companyCode string, supplierID int, startDate, endDate string) (*core.Statement, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	start, err := parseOptionalDate("start_date", startDate)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate("end_date", endDate)
	if err != nil {
		return nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, &core.ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}
	return s.svc.Aging.ComputeSupplierStatement(ctx, c.ID, supplierID, start, end)
}

func (s *appService) ReconcileControlAccount(ctx context.Context, companyCode string, asOf time.Time) (*core.ControlReconciliation, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.today()
	}
	return s.svc.Aging.ReconcileControlAccount(ctx, c.ID, asOf)
}

// ── Ledger postings ───────────────────────────────────────────────────────────

func (s *appService) ListUnposted(ctx context.Context, companyCode string) (*UnpostedResult, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	entities, err := s.svc.Postings.ListUnposted(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &UnpostedResult{Entities: entities}, nil
}

func (s *appService) RetryPostings(ctx context.Context, companyCode string) (*RetryPostingsResult, error) {
	c, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	outcomes, err := s.svc.Postings.RetryPostings(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	res := &RetryPostingsResult{Attempted: len(outcomes), Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Error == "" {
			res.Posted++
		}
	}
	s.log.Info().Str("company", companyCode).Int("attempted", res.Attempted).Int("posted", res.Posted).Msg("ledger postings retried")
	return res, nil
}

// ── private helpers ───────────────────────────────────────────────────────────

func (s *appService) fetchCompany(ctx context.Context, companyCode string) (*core.Company, error) {
	if companyCode == "" {
		return nil, &core.ValidationError{Field: "company_code", Reason: "is required"}
	}
	return s.svc.Companies.GetByCode(ctx, companyCode)
}

// postingPending absorbs a ledger posting failure when the local write
// committed, logging it so the retry job can pick it up.
func (s *appService) postingPending(committed bool, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	var lpe *core.LedgerPostingError
	if committed && errors.As(err, &lpe) {
		s.log.Warn().Err(lpe.Err).Str("entity", lpe.Entity).Int("entity_id", lpe.EntityID).Msg("ledger posting pending")
		return true, nil
	}
	return false, err
}

func (s *appService) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *appService) dateOrToday(field, value string) (time.Time, error) {
	if value == "" {
		return s.today(), nil
	}
	return parseDate(field, value)
}

func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &core.ValidationError{Field: field, Reason: "is required"}
	}
	t, err := core.ParseDate(value)
	if err != nil {
		return time.Time{}, &core.ValidationError{Field: field, Reason: fmt.Sprintf("must be %s", core.DateLayout)}
	}
	return t, nil
}

func parseOptionalDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := parseDate(field, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
