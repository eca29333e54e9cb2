package core_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ap-settlement/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestSettlement_BillPaymentAgingEndToEnd(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool, nil)
	ctx := context.Background()

	sup := mustSupplier(t, s, "S001")
	invoiceDate := day(2026, 1, 1)
	due := day(2026, 1, 31)

	billID, err := s.bills.CreateBill(ctx, testCompanyID, core.BillHeader{
		SupplierID:    sup.ID,
		InvoiceNumber: "INV-1000",
		InvoiceDate:   invoiceDate,
		DueDate:       &due,
		Currency:      "USD",
		Total:         d("1000"),
	}, []core.LineInput{
		{Description: "Paper", Quantity: d("100"), UnitPrice: d("5"), TaxRate: dp("10")},
		{Description: "Toner", Quantity: d("4"), UnitPrice: d("100"), TaxRate: dp("12.5")},
	})
	require.NoError(t, err)

	bill, err := s.bills.GetBill(ctx, testCompanyID, billID)
	require.NoError(t, err)
	assert.Equal(t, core.BillDraft, bill.Status)
	assert.True(t, bill.Subtotal.Equal(d("900")), "subtotal = %s", bill.Subtotal)
	assert.True(t, bill.Tax.Equal(d("100")), "tax = %s", bill.Tax)
	require.Len(t, bill.Lines, 2)

	posted, err := s.bills.PostBill(ctx, testCompanyID, billID)
	require.NoError(t, err)
	require.True(t, posted.Posted())

	pay1, err := s.payments.CreatePayment(ctx, testCompanyID, core.PaymentInput{
		SupplierID:  sup.ID,
		PaymentDate: day(2026, 2, 1),
		Method:      "bank_transfer",
		Allocations: []core.Allocation{{BillID: billID, Amount: d("400")}},
	})
	require.NoError(t, err)
	assert.True(t, pay1.Amount.Equal(d("400")))
	assert.NotNil(t, pay1.JournalEntryID)
	assert.Empty(t, pay1.PaidBills)
	assert.True(t, mustBalance(t, s, billID).Equal(d("600")))

	rows, err := s.aging.ComputeAgingBySupplier(ctx, testCompanyID, due.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, sup.ID, rows[0].SupplierID)
	assert.True(t, rows[0].Days1To30.Equal(d("600")), "1-30 = %s", rows[0].Days1To30)
	assert.True(t, rows[0].Total.Equal(d("600")))

	creditID, err := s.credits.CreateVendorCredit(ctx, testCompanyID, core.VendorCreditHeader{
		SupplierID:   sup.ID,
		CreditNumber: "CN-600",
		CreditDate:   day(2026, 2, 20),
		Currency:     "USD",
	}, []core.LineInput{{Description: "Agreed rebate", Quantity: d("1"), UnitPrice: d("600")}})
	require.NoError(t, err)

	app, err := s.credits.ApplyVendorCredit(ctx, testCompanyID, creditID, []core.Allocation{{BillID: billID, Amount: d("600")}})
	require.NoError(t, err)
	assert.Equal(t, []int{billID}, app.PaidBills)
	assert.NotNil(t, app.JournalEntryID)

	bill, err = s.bills.GetBill(ctx, testCompanyID, billID)
	require.NoError(t, err)
	assert.Equal(t, core.BillPaid, bill.Status)
	assert.True(t, bill.Balance.IsZero())
	assert.True(t, bill.PaidAmount.Equal(d("400")))
	assert.True(t, bill.CreditedAmount.Equal(d("600")))

	rows, err = s.aging.ComputeAgingBySupplier(ctx, testCompanyID, due.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.Len(t, rows, 1, "credit dated after as_of is not counted")
	assert.True(t, rows[0].Total.Equal(d("600")))

	rows, err = s.aging.ComputeAgingBySupplier(ctx, testCompanyID, day(2026, 2, 28))
	require.NoError(t, err)
	assert.Empty(t, rows)

	stmt, err := s.aging.ComputeSupplierStatement(ctx, testCompanyID, sup.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, stmt.Data, 3)
	assert.Equal(t, core.EntryBill, stmt.Data[0].Type)
	assert.Equal(t, core.EntryPayment, stmt.Data[1].Type)
	assert.Equal(t, core.EntryVendorCredit, stmt.Data[2].Type)
	assert.True(t, stmt.Data[0].Balance.Equal(d("1000")))
	assert.True(t, stmt.Data[1].Balance.Equal(d("600")))
	assert.True(t, stmt.ClosingBalance.IsZero())

	rec, err := s.aging.ReconcileControlAccount(ctx, testCompanyID, day(2026, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, "2000", rec.AccountCode)
	assert.True(t, rec.Difference.IsZero(), "difference = %s", rec.Difference)
}

func TestSettlement_StatementOpeningBalance(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool, nil)
	ctx := context.Background()

	sup := mustSupplier(t, s, "S001")
	early := mustPostedBill(t, s, sup.ID, "INV-A", day(2026, 1, 5), d("500"))
	mustPostedBill(t, s, sup.ID, "INV-B", day(2026, 3, 5), d("300"))

	_, err := s.payments.CreatePayment(ctx, testCompanyID, core.PaymentInput{
		SupplierID:  sup.ID,
		PaymentDate: day(2026, 1, 20),
		Method:      "cheque",
		Allocations: []core.Allocation{{BillID: early, Amount: d("200")}},
	})
	require.NoError(t, err)

	start := day(2026, 3, 1)
	end := day(2026, 3, 31)
	stmt, err := s.aging.ComputeSupplierStatement(ctx, testCompanyID, sup.ID, &start, &end)
	require.NoError(t, err)

	assert.True(t, stmt.OpeningBalance.Equal(d("300")), "opening = %s", stmt.OpeningBalance)
	require.Len(t, stmt.Data, 1)
	assert.Equal(t, "INV-B", stmt.Data[0].Reference)
	assert.True(t, stmt.ClosingBalance.Equal(d("600")))
}

func TestSettlement_AgingAndReconciliationAsOfPastDate(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool, nil)
	ctx := context.Background()

	sup := mustSupplier(t, s, "S001")
	early := mustPostedBill(t, s, sup.ID, "INV-A", day(2026, 1, 5), d("500"))
	mustPostedBill(t, s, sup.ID, "INV-B", day(2026, 3, 5), d("300"))

	for _, p := range []struct {
		date   time.Time
		amount string
	}{
		{day(2026, 2, 10), "200"},
		{day(2026, 4, 10), "300"},
	} {
		_, err := s.payments.CreatePayment(ctx, testCompanyID, core.PaymentInput{
			SupplierID:  sup.ID,
			PaymentDate: p.date,
			Method:      "bank_transfer",
			Allocations: []core.Allocation{{BillID: early, Amount: d(p.amount)}},
		})
		require.NoError(t, err)
	}

	tests := []struct {
		name string
		asOf time.Time
		want string
	}{
		{"before the later bill", day(2026, 2, 28), "300"},
		{"before the final payment", day(2026, 3, 31), "600"},
		{"after the final payment", day(2026, 4, 30), "300"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := s.aging.ComputeAgingBySupplier(ctx, testCompanyID, tt.asOf)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.True(t, rows[0].Total.Equal(d(tt.want)), "aging total = %s", rows[0].Total)

			rec, err := s.aging.ReconcileControlAccount(ctx, testCompanyID, tt.asOf)
			require.NoError(t, err)
			assert.True(t, rec.OpenBillsTotal.Equal(d(tt.want)), "open bills = %s", rec.OpenBillsTotal)
			assert.True(t, rec.Difference.IsZero(), "difference = %s", rec.Difference)
		})
	}

	rows, err := s.aging.ComputeAgingBySupplier(ctx, testCompanyID, day(2025, 12, 31))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestBill_DuplicateDetection(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool, nil)
	ctx := context.Background()

	sup := mustSupplier(t, s, "S001")
	header := core.BillHeader{
		SupplierID:    sup.ID,
		InvoiceNumber: "INV-77",
		InvoiceDate:   day(2026, 4, 1),
		Currency:      "USD",
		Total:         d("250"),
	}
	_, err := s.bills.CreateBill(ctx, testCompanyID, header, nil)
	require.NoError(t, err)

	header.InvoiceNumber = " INV-77 "
	_, err = s.bills.CreateBill(ctx, testCompanyID, header, nil)
	assert.True(t, errors.Is(err, core.ErrDuplicateBill), "got %v", err)

	header.Total = d("250.01")
	_, err = s.bills.CreateBill(ctx, testCompanyID, header, nil)
	assert.NoError(t, err, "a different total is a different bill")

	bills, err := s.bills.ListBills(ctx, testCompanyID, core.BillFilter{SupplierID: sup.ID})
	require.NoError(t, err)
	assert.Len(t, bills, 2)
}

func TestBill_DueDateDefaultsFromPaymentTerms(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool, nil)
	ctx := context.Background()

	sup, err := s.suppliers.CreateSupplier(ctx, testCompanyID, core.SupplierInput{Code: "S045", Name: "Net 45", PaymentTermsDays: 45})
	require.NoError(t, err)

	id, err := s.bills.CreateBill(ctx, testCompanyID, core.BillHeader{
		SupplierID: sup.ID, InvoiceNumber: "T-1", InvoiceDate: day(2026, 1, 1), Total: d("10"),
	}, nil)
	require.NoError(t, err)

	bill, err := s.bills.GetBill(ctx, testCompanyID, id)
	require.NoError(t, err)
	require.NotNil(t, bill.DueDate)
	assert.Equal(t, "2026-02-15", bill.DueDate.Format(core.DateLayout))
}

func TestBill_CancelRules(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool, nil)
	ctx := context.Background()

	sup := mustSupplier(t, s, "S001")
	paid := mustPostedBill(t, s, sup.ID, "INV-1", day(2026, 1, 1), d("100"))
	_, err := s.payments.CreatePayment(ctx, testCompanyID, core.PaymentInput{
		SupplierID: sup.ID, PaymentDate: day(2026, 1, 2), Method: "cash",
		Allocations: []core.Allocation{{BillID: paid, Amount: d("40")}},
	})
	require.NoError(t, err)
	assert.True(t, errors.Is(s.bills.CancelBill(ctx, testCompanyID, paid), core.ErrInvalidState),
		"bills with allocations cannot be cancelled")

	clean := mustPostedBill(t, s, sup.ID, "INV-2", day(2026, 1, 1), d("80"))
	require.NoError(t, s.bills.CancelBill(ctx, testCompanyID, clean))

	bill, err := s.bills.GetBill(ctx, testCompanyID, clean)
	require.NoError(t, err)
	assert.Equal(t, core.BillCancelled, bill.Status)

	var reversals int
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT count(*) FROM journal_entries WHERE reversed_entry_id = $1", *bill.JournalEntryID).Scan(&reversals))
	assert.Equal(t, 1, reversals)

	_, err = s.payments.CreatePayment(ctx, testCompanyID, core.PaymentInput{
		SupplierID: sup.ID, PaymentDate: day(2026, 1, 3), Method: "cash",
		Allocations: []core.Allocation{{BillID: clean, Amount: d("10")}},
	})
	assert.True(t, errors.Is(err, core.ErrInvalidState), "cancelled bills accept no payments")
}

func TestPayment_Validation(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool, nil)
	ctx := context.Background()

	sup := mustSupplier(t, s, "S001")
	other := mustSupplier(t, s, "S002")
	billID := mustPostedBill(t, s, sup.ID, "INV-1", day(2026, 1, 1), d("100"))
	otherBill := mustPostedBill(t, s, other.ID, "INV-1", day(2026, 1, 1), d("100"))

	t.Run("nothing positive", func(t *testing.T) {
		_, err := s.payments.CreatePayment(ctx, testCompanyID, core.PaymentInput{
			SupplierID: sup.ID, PaymentDate: day(2026, 1, 2), Method: "cash",
			Allocations: []core.Allocation{{BillID: billID, Amount: d("0")}, {BillID: billID, Amount: d("-5")}},
		})
		assert.True(t, errors.Is(err, core.ErrEmptyPayment), "got %v", err)
	})

	t.Run("skips non-positive allocations", func(t *testing.T) {
		res, err := s.payments.CreatePayment(ctx, testCompanyID, core.PaymentInput{
			SupplierID: sup.ID, PaymentDate: day(2026, 1, 2), Method: "cash",
			Allocations: []core.Allocation{{BillID: billID, Amount: d("0")}, {BillID: billID, Amount: d("30")}},
		})
		require.NoError(t, err)
		assert.True(t, res.Amount.Equal(d("30")))
		assert.Len(t, res.Skipped, 1)
	})

	t.Run("exceeds balance", func(t *testing.T) {
		_, err := s.payments.CreatePayment(ctx, testCompanyID, core.PaymentInput{
			SupplierID: sup.ID, PaymentDate: day(2026, 1, 2), Method: "cash",
			Allocations: []core.Allocation{{BillID: billID, Amount: d("70.01")}},
		})
		assert.True(t, errors.Is(err, core.ErrBillOverAllocated), "got %v", err)
		assert.True(t, mustBalance(t, s, billID).Equal(d("70")))
	})

	t.Run("other supplier bill", func(t *testing.T) {
		_, err := s.payments.CreatePayment(ctx, testCompanyID, core.PaymentInput{
			SupplierID: sup.ID, PaymentDate: day(2026, 1, 2), Method: "cash",
			Allocations: []core.Allocation{{BillID: otherBill, Amount: d("10")}},
		})
		assert.True(t, errors.Is(err, core.ErrValidation), "got %v", err)
	})

	t.Run("skips allocations that round to zero", func(t *testing.T) {
		res, err := s.payments.CreatePayment(ctx, testCompanyID, core.PaymentInput{
			SupplierID: sup.ID, PaymentDate: day(2026, 1, 2), Method: "cash",
			Allocations: []core.Allocation{{BillID: billID, Amount: d("10")}, {BillID: otherBill, Amount: d("0.004")}},
		})
		require.NoError(t, err)
		assert.True(t, res.Amount.Equal(d("10")))
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, otherBill, res.Skipped[0].BillID)
		assert.True(t, mustBalance(t, s, billID).Equal(d("60")))
		assert.True(t, mustBalance(t, s, otherBill).Equal(d("100")))
	})
}

func TestPayment_ConcurrentAllocationsNeverOverpay(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool, nil)
	ctx := context.Background()

	sup := mustSupplier(t, s, "S001")
	billID := mustPostedBill(t, s, sup.ID, "INV-RACE", day(2026, 1, 1), d("1000"))

	var ok, rejected atomic.Int32
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := s.payments.CreatePayment(ctx, testCompanyID, core.PaymentInput{
				SupplierID: sup.ID, PaymentDate: day(2026, 1, 2), Method: "bank_transfer",
				Allocations: []core.Allocation{{BillID: billID, Amount: d("200")}},
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, core.ErrBillOverAllocated), errors.Is(err, core.ErrInvalidState):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(5), ok.Load())
	assert.Equal(t, int32(5), rejected.Load())
	assert.True(t, mustBalance(t, s, billID).IsZero())

	bill, err := s.bills.GetBill(ctx, testCompanyID, billID)
	require.NoError(t, err)
	assert.Equal(t, core.BillPaid, bill.Status)
}

func TestVendorCredit_ApplyAndReapply(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool, nil)
	ctx := context.Background()

	sup := mustSupplier(t, s, "S001")
	b1 := mustPostedBill(t, s, sup.ID, "INV-1", day(2026, 1, 1), d("300"))
	b2 := mustPostedBill(t, s, sup.ID, "INV-2", day(2026, 1, 2), d("50"))

	creditID, err := s.credits.CreateVendorCredit(ctx, testCompanyID, core.VendorCreditHeader{
		SupplierID: sup.ID, CreditNumber: "CN-1", CreditDate: day(2026, 1, 10), Currency: "USD",
	}, []core.LineInput{{Description: "Returned goods", Quantity: d("2"), UnitPrice: d("50"), TaxRate: dp("10")}})
	require.NoError(t, err)

	credit, err := s.credits.GetVendorCredit(ctx, testCompanyID, creditID)
	require.NoError(t, err)
	assert.True(t, credit.Total.Equal(d("110")), "total = %s", credit.Total)
	assert.Equal(t, core.CreditDraft, credit.Status)

	app, err := s.credits.ApplyVendorCredit(ctx, testCompanyID, creditID, []core.Allocation{
		{BillID: b1, Amount: d("60")},
		{BillID: b2, Amount: d("50")},
	})
	require.NoError(t, err)
	assert.True(t, app.Applied.Equal(d("110")))
	assert.True(t, app.Unapplied.IsZero())
	assert.Equal(t, []int{b2}, app.PaidBills)
	assert.NotNil(t, app.JournalEntryID)

	assert.True(t, mustBalance(t, s, b1).Equal(d("240")))

	_, err = s.credits.ApplyVendorCredit(ctx, testCompanyID, creditID, []core.Allocation{{BillID: b1, Amount: d("1")}})
	assert.True(t, errors.Is(err, core.ErrAlreadyApplied), "got %v", err)
}

func TestVendorCredit_OverAllocationWritesNothing(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool, nil)
	ctx := context.Background()

	sup := mustSupplier(t, s, "S001")
	b1 := mustPostedBill(t, s, sup.ID, "INV-1", day(2026, 1, 1), d("500"))
	b2 := mustPostedBill(t, s, sup.ID, "INV-2", day(2026, 1, 1), d("500"))

	creditID, err := s.credits.CreateVendorCredit(ctx, testCompanyID, core.VendorCreditHeader{
		SupplierID: sup.ID, CreditNumber: "CN-9", CreditDate: day(2026, 1, 5),
	}, []core.LineInput{{Description: "Rebate", Quantity: d("1"), UnitPrice: d("100")}})
	require.NoError(t, err)

	_, err = s.credits.ApplyVendorCredit(ctx, testCompanyID, creditID, []core.Allocation{
		{BillID: b1, Amount: d("60")},
		{BillID: b2, Amount: d("50")},
	})
	require.True(t, errors.Is(err, core.ErrOverAllocation), "got %v", err)

	var rows int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM vendor_credit_allocations WHERE credit_id = $1", creditID).Scan(&rows))
	assert.Zero(t, rows)

	credit, err := s.credits.GetVendorCredit(ctx, testCompanyID, creditID)
	require.NoError(t, err)
	assert.Equal(t, core.CreditDraft, credit.Status)
	assert.True(t, mustBalance(t, s, b1).Equal(d("500")))

	_, err = s.credits.ApplyVendorCredit(ctx, testCompanyID, creditID, []core.Allocation{{BillID: b1, Amount: d("0")}})
	assert.True(t, errors.Is(err, core.ErrEmptyAllocation), "got %v", err)
}

// flakyLedger fails every commit while down is set.
type flakyLedger struct {
	core.LedgerService
	down atomic.Bool
}

func (l *flakyLedger) CommitTx(ctx context.Context, tx pgx.Tx, p core.Proposal) (int, error) {
	if l.down.Load() {
		return 0, errors.New("ledger unavailable")
	}
	return l.LedgerService.CommitTx(ctx, tx, p)
}

func (l *flakyLedger) Commit(ctx context.Context, p core.Proposal) (int, error) {
	if l.down.Load() {
		return 0, errors.New("ledger unavailable")
	}
	return l.LedgerService.Commit(ctx, p)
}

func TestPosting_LedgerFailureIsRetryable(t *testing.T) {
	pool := setupTestDB(t)
	ledger := &flakyLedger{LedgerService: core.NewLedger(pool, core.NewDocumentService(pool))}
	s := newServices(pool, ledger)
	ctx := context.Background()

	sup := mustSupplier(t, s, "S001")
	billID, err := s.bills.CreateBill(ctx, testCompanyID, core.BillHeader{
		SupplierID: sup.ID, InvoiceNumber: "INV-DOWN", InvoiceDate: day(2026, 5, 1), Total: d("120"),
	}, nil)
	require.NoError(t, err)

	ledger.down.Store(true)

	res, err := s.bills.PostBill(ctx, testCompanyID, billID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrLedgerPosting))
	require.NotNil(t, res, "the local transition is committed")
	assert.False(t, res.Posted())

	pay, err := s.payments.CreatePayment(ctx, testCompanyID, core.PaymentInput{
		SupplierID: sup.ID, PaymentDate: day(2026, 5, 2), Method: "cash",
		Allocations: []core.Allocation{{BillID: billID, Amount: d("20")}},
	})
	require.True(t, errors.Is(err, core.ErrLedgerPosting))
	require.NotNil(t, pay)
	assert.Nil(t, pay.JournalEntryID)
	assert.True(t, mustBalance(t, s, billID).Equal(d("100")))

	pending, err := s.postings.ListUnposted(ctx, testCompanyID)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, core.UnpostedBill, pending[0].Kind)
	assert.Equal(t, core.UnpostedPayment, pending[1].Kind)

	ledger.down.Store(false)

	outcomes, err := s.postings.RetryPostings(ctx, testCompanyID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Empty(t, o.Error, "%s %d", o.Kind, o.ID)
		assert.NotNil(t, o.JournalEntryID)
	}

	pending, err = s.postings.ListUnposted(ctx, testCompanyID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Retrying a posted bill is idempotent.
	again, err := s.bills.PostBill(ctx, testCompanyID, billID)
	require.NoError(t, err)
	assert.Equal(t, *outcomes[0].JournalEntryID, *again.JournalEntryID)
}

func TestLedger_IdempotentCommitAndReversal(t *testing.T) {
	pool := setupTestDB(t)
	ledger := core.NewLedger(pool, core.NewDocumentService(pool))
	ctx := context.Background()

	proposal := core.Proposal{
		DocumentTypeCode:    "JE",
		CompanyID:           testCompanyID,
		IdempotencyKey:      "test-je-1",
		TransactionCurrency: "USD",
		PostingDate:         day(2026, 1, 1),
		Summary:             "Accrual",
		Lines: []core.ProposalLine{
			{AccountCode: "5000", IsDebit: true, Amount: d("150")},
			{AccountCode: "2000", IsDebit: false, Amount: d("150")},
		},
	}

	first, err := ledger.Commit(ctx, proposal)
	require.NoError(t, err)
	second, err := ledger.Commit(ctx, proposal)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	bal, err := ledger.AccountBalance(ctx, testCompanyID, "2000", day(2026, 12, 31))
	require.NoError(t, err)
	assert.True(t, bal.Equal(d("-150")))

	rev, err := ledger.Reverse(ctx, first, "posted in error")
	require.NoError(t, err)
	again, err := ledger.Reverse(ctx, first, "posted in error")
	require.NoError(t, err)
	assert.Equal(t, rev, again)

	bal, err = ledger.AccountBalance(ctx, testCompanyID, "2000", time.Now().AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	proposal.IdempotencyKey = "test-je-2"
	proposal.Lines[0].AccountCode = "9999"
	_, err = ledger.Commit(ctx, proposal)
	assert.Error(t, err)
}

func TestDocumentService_ConcurrentNumbersAreGapless(t *testing.T) {
	pool := setupTestDB(t)
	docService := core.NewDocumentService(pool)
	ctx := context.Background()

	fy := 2026
	var ids []int
	for i := 0; i < 10; i++ {
		id, err := docService.CreateDraftDocument(ctx, testCompanyID, "PP", &fy, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			_, err := docService.PostDocument(ctx, id)
			return err
		})
	}
	require.NoError(t, g.Wait())

	var distinct, maxSeq int
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT count(DISTINCT document_number) FROM documents WHERE type_code = 'PP' AND status = 'POSTED'").Scan(&distinct))
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT last_number FROM document_sequences WHERE type_code = 'PP'").Scan(&maxSeq))
	assert.Equal(t, 10, distinct)
	assert.Equal(t, 10, maxSeq)
}
