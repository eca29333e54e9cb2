package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type agingService struct {
	pool     *pgxpool.Pool
	ledger   LedgerService
	resolver AccountResolver
	log      zerolog.Logger
}

// NewAgingService constructs an AgingService backed by PostgreSQL.
func NewAgingService(pool *pgxpool.Pool, ledger LedgerService, resolver AccountResolver, log zerolog.Logger) AgingService {
	return &agingService{pool: pool, ledger: ledger, resolver: resolver, log: log.With().Str("component", "aging").Logger()}
}

// balanceAsOf is a bill's balance counting only payments and credits dated
// on or before $2. It matches the dates the ledger bridge posts them at.
const balanceAsOf = `b.total
	- COALESCE((SELECT SUM(pa.amount) FROM payment_allocations pa
	            JOIN payments p ON p.id = pa.payment_id
	            WHERE pa.bill_id = b.id AND p.payment_date <= $2::date), 0)
	- COALESCE((SELECT SUM(ca.amount) FROM vendor_credit_allocations ca
	            JOIN vendor_credits c ON c.id = ca.credit_id
	            WHERE ca.bill_id = b.id AND c.credit_date <= $2::date), 0)`

// openBillsQuery returns every uncancelled bill issued on or before $2 with
// its unclamped balance as of $2. Bills settled by then come back with a
// zero balance and are dropped by AgeOpenBills.
const openBillsQuery = `
	SELECT b.id, b.supplier_id, s.name, b.due_date, ` + balanceAsOf + `
	FROM bills b
	JOIN suppliers s ON s.id = b.supplier_id
	WHERE b.company_id = $1 AND b.status <> 'cancelled' AND b.invoice_date <= $2::date
	ORDER BY b.id`

func loadOpenBills(ctx context.Context, q querier, companyID int, asOf time.Time) ([]OpenBill, error) {
	rows, err := q.Query(ctx, openBillsQuery, companyID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []OpenBill
	for rows.Next() {
		var b OpenBill
		if err := rows.Scan(&b.BillID, &b.SupplierID, &b.SupplierName, &b.DueDate, &b.Balance); err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// postedBillsTotalQuery sums the balances as of $2 of bills the ledger
// carries on that date: posted or paid bills issued by then, plus posted
// bills cancelled afterwards whose reversal is dated later.
const postedBillsTotalQuery = `
	SELECT COALESCE(SUM(` + balanceAsOf + `), 0)
	FROM bills b
	WHERE b.company_id = $1 AND b.invoice_date <= $2::date
	  AND (b.status IN ('posted', 'paid')
	       OR (b.status = 'cancelled' AND b.posted_at IS NOT NULL AND b.cancelled_at::date > $2::date))`

func (s *agingService) ComputeAgingBySupplier(ctx context.Context, companyID int, asOf time.Time) ([]AgingRow, error) {
	var bills []OpenBill
	err := runTx(ctx, s.pool, reportTxOptions, func(tx pgx.Tx) error {
		var err error
		bills, err = loadOpenBills(ctx, tx, companyID, asOf)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("aging report: %w", err)
	}
	return AgeOpenBills(asOf, bills), nil
}

func (s *agingService) ComputeSupplierStatement(ctx context.Context, companyID, supplierID int, start, end *time.Time) (*Statement, error) {
	if start != nil && end != nil && end.Before(*start) {
		return nil, invalid("end_date", "end date %s is before start date %s", end.Format(DateLayout), start.Format(DateLayout))
	}

	st := &Statement{SupplierID: supplierID, StartDate: start, EndDate: end, Data: []StatementEntry{}}
	var entries []StatementEntry

	err := runTx(ctx, s.pool, reportTxOptions, func(tx pgx.Tx) error {
		supplier, err := getSupplier(ctx, tx, companyID, supplierID)
		if err != nil {
			return err
		}
		st.SupplierName = supplier.Name

		if start != nil {
			if err := tx.QueryRow(ctx, `
				SELECT
				    COALESCE((SELECT SUM(total) FROM bills
				              WHERE company_id = $1 AND supplier_id = $2 AND status <> 'cancelled'
				                AND invoice_date < $3), 0)
				  - COALESCE((SELECT SUM(pa.amount) FROM payment_allocations pa
				              JOIN payments p ON p.id = pa.payment_id
				              WHERE p.company_id = $1 AND p.supplier_id = $2 AND p.payment_date < $3), 0)
				  - COALESCE((SELECT SUM(total) FROM vendor_credits
				              WHERE company_id = $1 AND supplier_id = $2 AND status <> 'cancelled'
				                AND credit_date < $3), 0)`,
				companyID, supplierID, *start,
			).Scan(&st.OpeningBalance); err != nil {
				return fmt.Errorf("opening balance: %w", err)
			}
		}

		rows, err := tx.Query(ctx, `
			SELECT 'bill', id, invoice_date, invoice_number, 'Bill ' || invoice_number, total, 0
			FROM bills
			WHERE company_id = $1 AND supplier_id = $2 AND status <> 'cancelled'
			  AND ($3::date IS NULL OR invoice_date >= $3) AND ($4::date IS NULL OR invoice_date <= $4)
			UNION ALL
			SELECT 'payment', p.id, p.payment_date, COALESCE(p.reference, 'PAY-' || p.id),
			       'Payment (' || p.method || ')', 0, SUM(pa.amount)
			FROM payments p
			JOIN payment_allocations pa ON pa.payment_id = p.id
			WHERE p.company_id = $1 AND p.supplier_id = $2
			  AND ($3::date IS NULL OR p.payment_date >= $3) AND ($4::date IS NULL OR p.payment_date <= $4)
			GROUP BY p.id
			UNION ALL
			SELECT 'vendor_credit', id, credit_date, credit_number, 'Vendor credit ' || credit_number, 0, total
			FROM vendor_credits
			WHERE company_id = $1 AND supplier_id = $2 AND status <> 'cancelled'
			  AND ($3::date IS NULL OR credit_date >= $3) AND ($4::date IS NULL OR credit_date <= $4)`,
			companyID, supplierID, start, end)
		if err != nil {
			return fmt.Errorf("statement entries: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var e StatementEntry
			if err := rows.Scan(&e.Type, &e.sourceID, &e.Date, &e.Reference, &e.Description, &e.Debit, &e.Credit); err != nil {
				return fmt.Errorf("scan statement entry: %w", err)
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("statement for supplier %d: %w", supplierID, err)
	}

	data, closing := BuildStatement(st.OpeningBalance, entries)
	if len(data) > 0 {
		st.Data = data
	}
	st.ClosingBalance = closing
	return st, nil
}

func (s *agingService) ReconcileControlAccount(ctx context.Context, companyID int, asOf time.Time) (*ControlReconciliation, error) {
	code, err := s.resolver.Get(ctx, companyID, SettingPayableAccount, DefaultPayableAccount)
	if err != nil {
		return nil, err
	}

	// Draft bills have not reached the ledger yet and are left out.
	var open decimal.Decimal
	err = runTx(ctx, s.pool, reportTxOptions, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, postedBillsTotalQuery, companyID, asOf).Scan(&open)
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile control account: %w", err)
	}

	// Liabilities carry a credit balance; flip the sign to compare with bills.
	balance, err := s.ledger.AccountBalance(ctx, companyID, code, asOf)
	if err != nil {
		return nil, err
	}
	ledgerBalance := balance.Neg()

	rec := &ControlReconciliation{
		AsOf:           asOf,
		AccountCode:    code,
		LedgerBalance:  ledgerBalance,
		OpenBillsTotal: open,
		Difference:     ledgerBalance.Sub(open),
	}
	if !rec.Difference.IsZero() {
		s.log.Warn().Str("account", code).Str("difference", rec.Difference.StringFixed(2)).Msg("AP control account out of balance")
	}
	return rec, nil
}
