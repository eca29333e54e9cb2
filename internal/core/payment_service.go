package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type paymentService struct {
	pool   *pgxpool.Pool
	bridge LedgerBridge
	log    zerolog.Logger
}

// NewPaymentService constructs a PaymentService backed by PostgreSQL.
func NewPaymentService(pool *pgxpool.Pool, bridge LedgerBridge, log zerolog.Logger) PaymentService {
	return &paymentService{pool: pool, bridge: bridge, log: log.With().Str("component", "payments").Logger()}
}

func (s *paymentService) CreatePayment(ctx context.Context, companyID int, input PaymentInput) (*PaymentResult, error) {
	input.Method = strings.TrimSpace(input.Method)
	if input.SupplierID <= 0 {
		return nil, invalid("supplier_id", "supplier is required")
	}
	if input.PaymentDate.IsZero() {
		return nil, invalid("payment_date", "payment date is required")
	}
	if input.Method == "" {
		return nil, invalid("method", "payment method is required")
	}

	allocs, skipped, amount, err := splitAllocations(input.Allocations)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ErrEmptyPayment
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persistFailure(s.log, "create payment: begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := getSupplier(ctx, tx, companyID, input.SupplierID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("supplier_id", "supplier %d not found", input.SupplierID)
		}
		return nil, persistFailure(s.log, "create payment: supplier", err)
	}
	if input.BankAccountID != nil {
		if err := checkBankAccount(ctx, tx, companyID, *input.BankAccountID); err != nil {
			if isDomainError(err) {
				return nil, err
			}
			return nil, persistFailure(s.log, "create payment: bank account", err)
		}
	}

	if err := lockAllocationTargets(ctx, tx, companyID, input.SupplierID, allocs); err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, persistFailure(s.log, "create payment: lock bills", err)
	}

	var paymentID int
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (company_id, supplier_id, payment_date, method, bank_account_id, reference, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		companyID, input.SupplierID, input.PaymentDate, input.Method, input.BankAccountID, input.Reference, amount,
	).Scan(&paymentID)
	if err != nil {
		return nil, persistFailure(s.log, "create payment: insert header", err)
	}

	for _, a := range allocs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO payment_allocations (payment_id, bill_id, amount) VALUES ($1, $2, $3)`,
			paymentID, a.BillID, a.Amount,
		); err != nil {
			return nil, persistFailure(s.log, "create payment: insert allocation", err)
		}
	}

	paid, err := settleBills(ctx, tx, companyID, distinctBillIDs(allocs))
	if err != nil {
		return nil, persistFailure(s.log, "create payment: settle bills", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistFailure(s.log, "create payment: commit", err)
	}

	s.log.Info().Int("payment_id", paymentID).Int("supplier_id", input.SupplierID).
		Str("amount", amount.StringFixed(2)).Ints("paid_bills", paid).Msg("payment recorded")

	result := &PaymentResult{PaymentID: paymentID, Amount: amount, PaidBills: paid, Skipped: skipped}
	journalID, err := s.bridge.PostSupplierPayment(ctx, companyID, paymentID)
	if err != nil {
		s.log.Warn().Err(err).Int("payment_id", paymentID).Msg("payment recorded, ledger posting failed")
		return result, &LedgerPostingError{Entity: "payment", EntityID: paymentID, Err: err}
	}
	result.JournalEntryID = &journalID
	return result, nil
}

func checkBankAccount(ctx context.Context, q querier, companyID, accountID int) error {
	var accType AccountType
	err := q.QueryRow(ctx, "SELECT type FROM accounts WHERE id = $1 AND company_id = $2", accountID, companyID).Scan(&accType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invalid("bank_account_id", "account %d not found", accountID)
		}
		return err
	}
	if accType != Asset {
		return invalid("bank_account_id", "account %d is not an asset account", accountID)
	}
	return nil
}

const paymentColumns = `id, company_id, supplier_id, payment_date, method, bank_account_id, reference,
	amount, journal_entry_id, created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	p := &Payment{}
	err := row.Scan(&p.ID, &p.CompanyID, &p.SupplierID, &p.PaymentDate, &p.Method, &p.BankAccountID,
		&p.Reference, &p.Amount, &p.JournalEntryID, &p.CreatedAt)
	return p, err
}

func (s *paymentService) GetPayment(ctx context.Context, companyID, paymentID int) (*Payment, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE company_id = $1 AND id = $2`, companyID, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("payment", paymentID)
		}
		return nil, fmt.Errorf("get payment %d: %w", paymentID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT pa.id, pa.payment_id, pa.bill_id, b.invoice_number, pa.amount
		FROM payment_allocations pa
		JOIN bills b ON b.id = pa.bill_id
		WHERE pa.payment_id = $1
		ORDER BY pa.id`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("get payment %d allocations: %w", paymentID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a PaymentAllocation
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.BillID, &a.InvoiceNumber, &a.Amount); err != nil {
			return nil, fmt.Errorf("scan payment allocation: %w", err)
		}
		p.Allocations = append(p.Allocations, a)
	}
	return p, rows.Err()
}

func (s *paymentService) ListPayments(ctx context.Context, companyID, supplierID int) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE company_id = $1 AND ($2 = 0 OR supplier_id = $2)
		ORDER BY payment_date DESC, id DESC`, companyID, supplierID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
