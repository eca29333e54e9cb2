package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const billFingerprintConstraint = "bills_company_fingerprint_key"

type billService struct {
	pool   *pgxpool.Pool
	bridge LedgerBridge
	log    zerolog.Logger
}

// NewBillService constructs a BillService backed by PostgreSQL.
func NewBillService(pool *pgxpool.Pool, bridge LedgerBridge, log zerolog.Logger) BillService {
	return &billService{pool: pool, bridge: bridge, log: log.With().Str("component", "bills").Logger()}
}

func validateBillHeader(h *BillHeader) error {
	h.InvoiceNumber = strings.TrimSpace(h.InvoiceNumber)
	h.Currency = strings.ToUpper(strings.TrimSpace(h.Currency))
	if h.SupplierID <= 0 {
		return invalid("supplier_id", "supplier is required")
	}
	if h.InvoiceNumber == "" {
		return invalid("invoice_number", "invoice number is required")
	}
	if h.InvoiceDate.IsZero() {
		return invalid("invoice_date", "invoice date is required")
	}
	if h.DueDate != nil && h.DueDate.Before(h.InvoiceDate) {
		return invalid("due_date", "due date %s is before invoice date %s",
			h.DueDate.Format(DateLayout), h.InvoiceDate.Format(DateLayout))
	}
	if h.Currency != "" && len(h.Currency) != 3 {
		return invalid("currency", "must be a 3-letter ISO code")
	}
	if !h.Total.IsPositive() {
		return invalid("total", "total is required and must be greater than zero")
	}
	return nil
}

func (s *billService) CreateBill(ctx context.Context, companyID int, header BillHeader, lines []LineInput) (int, error) {
	if err := validateBillHeader(&header); err != nil {
		return 0, err
	}
	computed, lineTotals, err := ComputeLines(lines)
	if err != nil {
		return 0, err
	}
	totals, err := ResolveHeaderTotals(header.Subtotal, header.Tax, header.Total, lineTotals, len(computed) > 0)
	if err != nil {
		return 0, err
	}
	fingerprint := BillFingerprint(header.SupplierID, header.InvoiceNumber, header.InvoiceDate, totals.Total)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, persistFailure(s.log, "create bill: begin", err)
	}
	defer tx.Rollback(ctx)

	supplier, err := getSupplier(ctx, tx, companyID, header.SupplierID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, invalid("supplier_id", "supplier %d not found", header.SupplierID)
		}
		return 0, persistFailure(s.log, "create bill: supplier", err)
	}
	if !supplier.IsActive {
		return 0, invalid("supplier_id", "supplier %s is inactive", supplier.Code)
	}

	dueDate := header.DueDate
	if dueDate == nil {
		d := header.InvoiceDate.AddDate(0, 0, supplier.PaymentTermsDays)
		dueDate = &d
	}
	currency := header.Currency
	if currency == "" {
		if err := tx.QueryRow(ctx, "SELECT base_currency FROM companies WHERE id = $1", companyID).Scan(&currency); err != nil {
			return 0, persistFailure(s.log, "create bill: company currency", err)
		}
	}

	for _, cl := range computed {
		if cl.GLAccountID == nil {
			continue
		}
		if err := checkExpenseAccount(ctx, tx, companyID, *cl.GLAccountID); err != nil {
			return 0, invalid("lines", "line %d: %v", cl.LineNumber, err)
		}
	}

	var billID int
	err = tx.QueryRow(ctx, `
		INSERT INTO bills (company_id, supplier_id, invoice_number, invoice_date, due_date, currency,
		                   subtotal, tax, total, status, fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		companyID, header.SupplierID, header.InvoiceNumber, header.InvoiceDate, dueDate, currency,
		totals.Subtotal, totals.Tax, totals.Total, string(BillDraft), fingerprint,
	).Scan(&billID)
	if err != nil {
		if isUniqueViolation(err, billFingerprintConstraint) {
			return 0, fmt.Errorf("invoice %q from supplier %d: %w", header.InvoiceNumber, header.SupplierID, ErrDuplicateBill)
		}
		return 0, persistFailure(s.log, "create bill: insert header", err)
	}

	for _, cl := range computed {
		if _, err := tx.Exec(ctx, `
			INSERT INTO bill_lines (bill_id, line_number, description, quantity, unit, unit_price,
			                        discount, tax_rate, line_total, gl_account_id, project_ref, inventory_item_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			billID, cl.LineNumber, cl.Description, cl.Quantity, cl.Unit, cl.UnitPrice,
			decOrZero(cl.Discount), decOrZero(cl.TaxRate), cl.LineTotal,
			cl.GLAccountID, cl.ProjectRef, cl.InventoryItemID,
		); err != nil {
			return 0, persistFailure(s.log, fmt.Sprintf("create bill: insert line %d", cl.LineNumber), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err, billFingerprintConstraint) {
			return 0, fmt.Errorf("invoice %q from supplier %d: %w", header.InvoiceNumber, header.SupplierID, ErrDuplicateBill)
		}
		return 0, persistFailure(s.log, "create bill: commit", err)
	}

	s.log.Info().Int("bill_id", billID).Int("supplier_id", header.SupplierID).
		Str("invoice_number", header.InvoiceNumber).Str("total", totals.Total.StringFixed(2)).Msg("bill created")
	return billID, nil
}

func checkExpenseAccount(ctx context.Context, q querier, companyID, accountID int) error {
	var ok bool
	err := q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1 AND company_id = $2)",
		accountID, companyID,
	).Scan(&ok)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("account %d not found", accountID)
	}
	return nil
}

const billSelect = `
	SELECT b.id, b.company_id, b.supplier_id, s.name, b.invoice_number, b.invoice_date, b.due_date,
	       b.currency, b.subtotal, b.tax, b.total, b.status, b.fingerprint, b.journal_entry_id,
	       b.posted_at, b.paid_at, b.cancelled_at, b.created_at,
	       COALESCE((SELECT SUM(amount) FROM payment_allocations WHERE bill_id = b.id), 0),
	       COALESCE((SELECT SUM(amount) FROM vendor_credit_allocations WHERE bill_id = b.id), 0)
	FROM bills b
	JOIN suppliers s ON s.id = b.supplier_id`

func scanBill(row pgx.Row) (*Bill, error) {
	b := &Bill{}
	err := row.Scan(
		&b.ID, &b.CompanyID, &b.SupplierID, &b.SupplierName, &b.InvoiceNumber, &b.InvoiceDate, &b.DueDate,
		&b.Currency, &b.Subtotal, &b.Tax, &b.Total, &b.Status, &b.Fingerprint, &b.JournalEntryID,
		&b.PostedAt, &b.PaidAt, &b.CancelledAt, &b.CreatedAt,
		&b.PaidAmount, &b.CreditedAmount,
	)
	if err != nil {
		return nil, err
	}
	b.Balance = b.Total.Sub(b.PaidAmount).Sub(b.CreditedAmount)
	return b, nil
}

func (s *billService) GetBill(ctx context.Context, companyID, billID int) (*Bill, error) {
	b, err := scanBill(s.pool.QueryRow(ctx, billSelect+` WHERE b.company_id = $1 AND b.id = $2`, companyID, billID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("bill", billID)
		}
		return nil, fmt.Errorf("get bill %d: %w", billID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, bill_id, line_number, description, quantity, unit, unit_price, discount, tax_rate,
		       line_total, gl_account_id, project_ref, inventory_item_id
		FROM bill_lines
		WHERE bill_id = $1
		ORDER BY line_number`, billID)
	if err != nil {
		return nil, fmt.Errorf("get bill %d lines: %w", billID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l BillLine
		if err := rows.Scan(&l.ID, &l.BillID, &l.LineNumber, &l.Description, &l.Quantity, &l.Unit,
			&l.UnitPrice, &l.Discount, &l.TaxRate, &l.LineTotal, &l.GLAccountID, &l.ProjectRef, &l.InventoryItemID,
		); err != nil {
			return nil, fmt.Errorf("scan bill line: %w", err)
		}
		b.Lines = append(b.Lines, l)
	}
	return b, rows.Err()
}

func (s *billService) ListBills(ctx context.Context, companyID int, filter BillFilter) ([]Bill, error) {
	rows, err := s.pool.Query(ctx, billSelect+`
		WHERE b.company_id = $1
		  AND ($2 = 0 OR b.supplier_id = $2)
		  AND ($3 = '' OR b.status = $3)
		ORDER BY b.invoice_date DESC, b.id DESC`,
		companyID, filter.SupplierID, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		bills = append(bills, *b)
	}
	return bills, rows.Err()
}

func (s *billService) GetOutstandingBalance(ctx context.Context, companyID, billID int) (decimal.Decimal, error) {
	balance, err := billBalance(ctx, s.pool, companyID, billID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, notFound("bill", billID)
		}
		return decimal.Zero, fmt.Errorf("bill %d balance: %w", billID, err)
	}
	return balance, nil
}

// billBalance recomputes the unclamped outstanding balance from allocation rows.
// Inside a transaction that holds the bill's row lock the result is stable.
func billBalance(ctx context.Context, q querier, companyID, billID int) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT b.total
		     - COALESCE((SELECT SUM(amount) FROM payment_allocations WHERE bill_id = b.id), 0)
		     - COALESCE((SELECT SUM(amount) FROM vendor_credit_allocations WHERE bill_id = b.id), 0)
		FROM bills b
		WHERE b.company_id = $1 AND b.id = $2`, companyID, billID).Scan(&balance)
	return balance, err
}

func (s *billService) MarkPaidIfSettled(ctx context.Context, companyID, billID int) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, persistFailure(s.log, "mark paid: begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockBill(ctx, tx, companyID, billID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, err
		}
		return false, persistFailure(s.log, "mark paid: lock", err)
	}
	paid, err := markPaidIfSettledTx(ctx, tx, companyID, billID)
	if err != nil {
		return false, persistFailure(s.log, "mark paid", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, persistFailure(s.log, "mark paid: commit", err)
	}
	return paid, nil
}

type lockedBill struct {
	ID             int
	SupplierID     int
	Status         BillStatus
	Total          decimal.Decimal
	JournalEntryID *int
}

func lockBill(ctx context.Context, tx pgx.Tx, companyID, billID int) (*lockedBill, error) {
	b := &lockedBill{}
	err := tx.QueryRow(ctx, `
		SELECT id, supplier_id, status, total, journal_entry_id
		FROM bills
		WHERE company_id = $1 AND id = $2
		FOR UPDATE`, companyID, billID,
	).Scan(&b.ID, &b.SupplierID, &b.Status, &b.Total, &b.JournalEntryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("bill", billID)
		}
		return nil, err
	}
	return b, nil
}

// markPaidIfSettledTx transitions a posted bill to paid when its balance is
// within Epsilon of zero. The caller must hold the bill's row lock.
func markPaidIfSettledTx(ctx context.Context, tx pgx.Tx, companyID, billID int) (bool, error) {
	var status BillStatus
	if err := tx.QueryRow(ctx, "SELECT status FROM bills WHERE company_id = $1 AND id = $2", companyID, billID).Scan(&status); err != nil {
		return false, err
	}
	if status == BillPaid {
		return true, nil
	}
	if !status.CanTransitionTo(BillPaid) {
		return false, nil
	}

	balance, err := billBalance(ctx, tx, companyID, billID)
	if err != nil {
		return false, err
	}
	if balance.GreaterThan(Epsilon) {
		return false, nil
	}

	_, err = tx.Exec(ctx, `UPDATE bills SET status = $1, paid_at = NOW() WHERE id = $2`, string(BillPaid), billID)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *billService) PostBill(ctx context.Context, companyID, billID int) (*PostResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persistFailure(s.log, "post bill: begin", err)
	}
	defer tx.Rollback(ctx)

	bill, err := lockBill(ctx, tx, companyID, billID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, persistFailure(s.log, "post bill: lock", err)
	}

	switch {
	case bill.Status == BillDraft:
		if _, err := tx.Exec(ctx, `UPDATE bills SET status = $1, posted_at = NOW() WHERE id = $2`, string(BillPosted), billID); err != nil {
			return nil, persistFailure(s.log, "post bill: update status", err)
		}
	case bill.JournalEntryID != nil:
		return &PostResult{ID: billID, JournalEntryID: bill.JournalEntryID}, nil
	case bill.Status == BillCancelled:
		return nil, fmt.Errorf("bill %d is cancelled: %w", billID, ErrInvalidState)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistFailure(s.log, "post bill: commit", err)
	}

	result := &PostResult{ID: billID}
	journalID, err := s.bridge.PostAPBill(ctx, companyID, billID)
	if err != nil {
		s.log.Warn().Err(err).Int("bill_id", billID).Msg("bill posted locally, ledger posting failed")
		return result, &LedgerPostingError{Entity: "bill", EntityID: billID, Err: err}
	}
	result.JournalEntryID = &journalID
	s.log.Info().Int("bill_id", billID).Int("journal_entry_id", journalID).Msg("bill posted")
	return result, nil
}

func (s *billService) CancelBill(ctx context.Context, companyID, billID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return persistFailure(s.log, "cancel bill: begin", err)
	}
	defer tx.Rollback(ctx)

	bill, err := lockBill(ctx, tx, companyID, billID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return persistFailure(s.log, "cancel bill: lock", err)
	}
	if bill.Status == BillCancelled {
		return nil
	}
	if !bill.Status.CanTransitionTo(BillCancelled) {
		return fmt.Errorf("bill %d is %s: %w", billID, bill.Status, ErrInvalidState)
	}

	balance, err := billBalance(ctx, tx, companyID, billID)
	if err != nil {
		return persistFailure(s.log, "cancel bill: balance", err)
	}
	if !balance.Equal(bill.Total) {
		return fmt.Errorf("bill %d has allocations: %w", billID, ErrInvalidState)
	}

	if _, err := tx.Exec(ctx, `UPDATE bills SET status = $1, cancelled_at = $2 WHERE id = $3`,
		string(BillCancelled), time.Now().UTC(), billID); err != nil {
		return persistFailure(s.log, "cancel bill: update status", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return persistFailure(s.log, "cancel bill: commit", err)
	}
	s.log.Info().Int("bill_id", billID).Msg("bill cancelled")

	if bill.JournalEntryID == nil {
		return nil
	}
	if _, err := s.bridge.ReverseAPBill(ctx, companyID, billID); err != nil {
		s.log.Warn().Err(err).Int("bill_id", billID).Msg("bill cancelled locally, ledger reversal failed")
		return &LedgerPostingError{Entity: "bill reversal", EntityID: billID, Err: err}
	}
	return nil
}
