package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ap-settlement/internal/core"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeCompanies struct {
	core.CompanyService
}

func (fakeCompanies) GetByCode(_ context.Context, code string) (*core.Company, error) {
	if code != "1000" {
		return nil, fmt.Errorf("company %s: %w", code, core.ErrNotFound)
	}
	return &core.Company{ID: 1, CompanyCode: "1000", Name: "Acme", BaseCurrency: "USD"}, nil
}

func (fakeCompanies) GetByID(_ context.Context, id int) (*core.Company, error) {
	return &core.Company{ID: id, CompanyCode: "1000", Name: "Acme", BaseCurrency: "USD"}, nil
}

func (fakeCompanies) GetDefault(context.Context) (*core.Company, error) {
	return &core.Company{ID: 1, CompanyCode: "1000"}, nil
}

type fakeUsers struct {
	core.UserService
	users map[string]*core.User
}

func (f fakeUsers) GetByUsername(_ context.Context, username string) (*core.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, core.ErrNotFound)
	}
	return u, nil
}

type fakeBills struct {
	core.BillService
	lastHeader core.BillHeader
	postResult *core.PostResult
	postErr    error
	cancelErr  error
}

func (f *fakeBills) CreateBill(_ context.Context, _ int, header core.BillHeader, _ []core.LineInput) (int, error) {
	f.lastHeader = header
	return 11, nil
}

func (f *fakeBills) PostBill(context.Context, int, int) (*core.PostResult, error) {
	return f.postResult, f.postErr
}

func (f *fakeBills) CancelBill(context.Context, int, int) error {
	return f.cancelErr
}

type fakePayments struct {
	core.PaymentService
	lastInput core.PaymentInput
	result    *core.PaymentResult
	err       error
}

func (f *fakePayments) CreatePayment(_ context.Context, _ int, input core.PaymentInput) (*core.PaymentResult, error) {
	f.lastInput = input
	return f.result, f.err
}

type fakeAging struct {
	core.AgingService
	start, end *time.Time
	asOf       time.Time
}

func (f *fakeAging) ComputeAgingBySupplier(_ context.Context, _ int, asOf time.Time) ([]core.AgingRow, error) {
	f.asOf = asOf
	return []core.AgingRow{}, nil
}

func (f *fakeAging) ComputeSupplierStatement(_ context.Context, _, supplierID int, start, end *time.Time) (*core.Statement, error) {
	f.start, f.end = start, end
	return &core.Statement{SupplierID: supplierID}, nil
}

type fakePostings struct {
	core.PostingService
}

func (fakePostings) RetryPostings(context.Context, int) ([]core.PostingOutcome, error) {
	id := 5
	return []core.PostingOutcome{
		{Kind: "bill", ID: 1, JournalEntryID: &id},
		{Kind: "payment", ID: 2, Error: "ledger unavailable"},
	}, nil
}

func newTestApp(t *testing.T, svc Services) *appService {
	t.Helper()
	if svc.Companies == nil {
		svc.Companies = fakeCompanies{}
	}
	a := NewAppService(svc, "", zerolog.Nop()).(*appService)
	a.now = func() time.Time { return time.Date(2026, 3, 15, 17, 30, 0, 0, time.UTC) }
	return a
}

func TestAuthenticateUser(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	users := fakeUsers{users: map[string]*core.User{
		"alice": {ID: 1, CompanyID: 1, Username: "alice", PasswordHash: string(hash), Role: core.RoleAPClerk, IsActive: true},
		"bob":   {ID: 2, CompanyID: 1, Username: "bob", PasswordHash: string(hash), Role: core.RoleViewer, IsActive: false},
	}}
	a := newTestApp(t, Services{Users: users})
	ctx := context.Background()

	session, err := a.AuthenticateUser(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "ap_clerk", session.Role)
	assert.Equal(t, "1000", session.CompanyCode)

	for _, tc := range []struct{ user, pass string }{
		{"alice", "wrong"},
		{"bob", "secret"},
		{"nobody", "secret"},
	} {
		_, err := a.AuthenticateUser(ctx, tc.user, tc.pass)
		assert.ErrorIs(t, err, ErrInvalidCredentials, tc.user)
	}
}

func TestCreateBill_ParsesDatesAndDefaultsCurrency(t *testing.T) {
	bills := &fakeBills{}
	a := newTestApp(t, Services{Bills: bills})
	ctx := context.Background()

	res, err := a.CreateBill(ctx, CreateBillRequest{
		CompanyCode: "1000",
		Header: BillHeaderInput{
			SupplierID:    3,
			InvoiceNumber: "INV-1",
			InvoiceDate:   "2026-01-10",
			DueDate:       "2026-02-09",
			Total:         decimal.NewFromInt(100),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 11, res.BillID)
	assert.Equal(t, "USD", bills.lastHeader.Currency)
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), bills.lastHeader.InvoiceDate)
	require.NotNil(t, bills.lastHeader.DueDate)
	assert.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), *bills.lastHeader.DueDate)

	tests := []struct {
		name   string
		header BillHeaderInput
		field  string
	}{
		{"missing invoice date", BillHeaderInput{SupplierID: 3}, "invoice_date"},
		{"malformed invoice date", BillHeaderInput{InvoiceDate: "10/01/2026"}, "invoice_date"},
		{"malformed due date", BillHeaderInput{InvoiceDate: "2026-01-10", DueDate: "soon"}, "due_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.CreateBill(ctx, CreateBillRequest{CompanyCode: "1000", Header: tt.header})
			require.ErrorIs(t, err, core.ErrValidation)
			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, err = a.CreateBill(ctx, CreateBillRequest{CompanyCode: "", Header: BillHeaderInput{InvoiceDate: "2026-01-10"}})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = a.CreateBill(ctx, CreateBillRequest{CompanyCode: "9999", Header: BillHeaderInput{InvoiceDate: "2026-01-10"}})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPostBill_LedgerFailureIsPending(t *testing.T) {
	journal := 7
	ledgerErr := &core.LedgerPostingError{Entity: "bill", EntityID: 1, Err: errors.New("ledger down")}

	tests := []struct {
		name        string
		result      *core.PostResult
		err         error
		wantErr     error
		wantPending bool
		wantJournal *int
	}{
		{"posted", &core.PostResult{ID: 1, JournalEntryID: &journal}, nil, nil, false, &journal},
		{"ledger failed after commit", &core.PostResult{ID: 1}, ledgerErr, nil, true, nil},
		{"ledger error without result", nil, ledgerErr, core.ErrLedgerPosting, false, nil},
		{"invalid state", nil, fmt.Errorf("bill 1: %w", core.ErrInvalidState), core.ErrInvalidState, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, Services{Bills: &fakeBills{postResult: tt.result, postErr: tt.err}})
			res, err := a.PostBill(context.Background(), "1000", 1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPending, res.PostingPending)
			assert.Equal(t, tt.wantJournal, res.JournalID)
		})
	}
}

func TestCancelBill_ReversalFailureIsNotAnError(t *testing.T) {
	ledgerErr := &core.LedgerPostingError{Entity: "bill reversal", EntityID: 1, Err: errors.New("ledger down")}
	a := newTestApp(t, Services{Bills: &fakeBills{cancelErr: ledgerErr}})
	assert.NoError(t, a.CancelBill(context.Background(), "1000", 1))

	a = newTestApp(t, Services{Bills: &fakeBills{cancelErr: core.ErrInvalidState}})
	assert.ErrorIs(t, a.CancelBill(context.Background(), "1000", 1), core.ErrInvalidState)
}

func TestCreatePayment_DefaultsDateToToday(t *testing.T) {
	payments := &fakePayments{result: &core.PaymentResult{PaymentID: 4, Amount: decimal.NewFromInt(400)}}
	a := newTestApp(t, Services{Payments: payments})

	res, err := a.CreatePayment(context.Background(), CreatePaymentRequest{
		CompanyCode: "1000",
		SupplierID:  1,
		Method:      "bank",
		Allocations: []core.Allocation{{BillID: 1, Amount: decimal.NewFromInt(400)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.PaymentID)
	assert.False(t, res.PostingPending)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), payments.lastInput.PaymentDate)

	payments.err = core.ErrEmptyPayment
	payments.result = nil
	_, err = a.CreatePayment(context.Background(), CreatePaymentRequest{CompanyCode: "1000", SupplierID: 1})
	assert.ErrorIs(t, err, core.ErrEmptyPayment)
}

func TestReports_DateHandling(t *testing.T) {
	aging := &fakeAging{}
	a := newTestApp(t, Services{Aging: aging})
	ctx := context.Background()

	_, err := a.GetAging(ctx, "1000", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), aging.asOf)

	_, err = a.GetSupplierStatement(ctx, "1000", 3, "2026-01-01", "")
	require.NoError(t, err)
	require.NotNil(t, aging.start)
	assert.Nil(t, aging.end)

	_, err = a.GetSupplierStatement(ctx, "1000", 3, "2026-02-01", "2026-01-01")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestRetryPostings_CountsOutcomes(t *testing.T) {
	a := newTestApp(t, Services{Postings: fakePostings{}})
	res, err := a.RetryPostings(context.Background(), "1000")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, 1, res.Posted)
}
