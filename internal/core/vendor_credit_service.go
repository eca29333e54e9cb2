package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type vendorCreditService struct {
	pool   *pgxpool.Pool
	bridge LedgerBridge
	log    zerolog.Logger
}

// NewVendorCreditService constructs a VendorCreditService backed by PostgreSQL.
func NewVendorCreditService(pool *pgxpool.Pool, bridge LedgerBridge, log zerolog.Logger) VendorCreditService {
	return &vendorCreditService{pool: pool, bridge: bridge, log: log.With().Str("component", "vendor_credits").Logger()}
}

func (s *vendorCreditService) CreateVendorCredit(ctx context.Context, companyID int, header VendorCreditHeader, lines []LineInput) (int, error) {
	header.CreditNumber = strings.TrimSpace(header.CreditNumber)
	header.Currency = strings.ToUpper(strings.TrimSpace(header.Currency))
	if header.SupplierID <= 0 {
		return 0, invalid("supplier_id", "supplier is required")
	}
	if header.CreditNumber == "" {
		return 0, invalid("credit_number", "credit number is required")
	}
	if header.CreditDate.IsZero() {
		return 0, invalid("credit_date", "credit date is required")
	}
	if header.Currency != "" && len(header.Currency) != 3 {
		return 0, invalid("currency", "must be a 3-letter ISO code")
	}
	if len(lines) == 0 {
		return 0, invalid("lines", "vendor credit must have at least one line")
	}
	computed, totals, err := ComputeLines(lines)
	if err != nil {
		return 0, err
	}
	if !totals.Total.IsPositive() {
		return 0, invalid("lines", "credit total must be greater than zero")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, persistFailure(s.log, "create credit: begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := getSupplier(ctx, tx, companyID, header.SupplierID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, invalid("supplier_id", "supplier %d not found", header.SupplierID)
		}
		return 0, persistFailure(s.log, "create credit: supplier", err)
	}
	currency := header.Currency
	if currency == "" {
		if err := tx.QueryRow(ctx, "SELECT base_currency FROM companies WHERE id = $1", companyID).Scan(&currency); err != nil {
			return 0, persistFailure(s.log, "create credit: company currency", err)
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

	var notes *string
	if header.Notes != "" {
		notes = &header.Notes
	}

	var creditID int
	err = tx.QueryRow(ctx, `
		INSERT INTO vendor_credits (company_id, supplier_id, credit_number, credit_date, currency,
		                            subtotal, tax, total, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		companyID, header.SupplierID, header.CreditNumber, header.CreditDate, currency,
		totals.Subtotal, totals.Tax, totals.Total, string(CreditDraft), notes,
	).Scan(&creditID)
	if err != nil {
		return 0, persistFailure(s.log, "create credit: insert header", err)
	}

	for _, cl := range computed {
		if _, err := tx.Exec(ctx, `
			INSERT INTO vendor_credit_lines (credit_id, line_number, description, quantity, unit, unit_price,
			                                 discount, tax_rate, line_total, gl_account_id, project_ref, inventory_item_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			creditID, cl.LineNumber, cl.Description, cl.Quantity, cl.Unit, cl.UnitPrice,
			decOrZero(cl.Discount), decOrZero(cl.TaxRate), cl.LineTotal,
			cl.GLAccountID, cl.ProjectRef, cl.InventoryItemID,
		); err != nil {
			return 0, persistFailure(s.log, fmt.Sprintf("create credit: insert line %d", cl.LineNumber), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, persistFailure(s.log, "create credit: commit", err)
	}

	s.log.Info().Int("credit_id", creditID).Int("supplier_id", header.SupplierID).
		Str("total", totals.Total.StringFixed(2)).Msg("vendor credit created")
	return creditID, nil
}

type lockedCredit struct {
	SupplierID int
	Status     CreditStatus
	Total      decimal.Decimal
}

func lockCredit(ctx context.Context, tx pgx.Tx, companyID, creditID int) (*lockedCredit, error) {
	c := &lockedCredit{}
	err := tx.QueryRow(ctx, `
		SELECT supplier_id, status, total
		FROM vendor_credits
		WHERE company_id = $1 AND id = $2
		FOR UPDATE`, companyID, creditID,
	).Scan(&c.SupplierID, &c.Status, &c.Total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("vendor credit", creditID)
		}
		return nil, err
	}
	return c, nil
}

func (s *vendorCreditService) ApplyVendorCredit(ctx context.Context, companyID, creditID int, allocations []Allocation) (*CreditApplication, error) {
	allocs, skipped, sum, err := splitAllocations(allocations)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persistFailure(s.log, "apply credit: begin", err)
	}
	defer tx.Rollback(ctx)

	// Credit before bills; every allocator takes locks in this order.
	credit, err := lockCredit(ctx, tx, companyID, creditID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, persistFailure(s.log, "apply credit: lock credit", err)
	}
	switch credit.Status {
	case CreditApplied:
		return nil, fmt.Errorf("vendor credit %d: %w", creditID, ErrAlreadyApplied)
	case CreditCancelled:
		return nil, fmt.Errorf("vendor credit %d is cancelled: %w", creditID, ErrInvalidState)
	}
	if sum.GreaterThan(credit.Total.Add(Epsilon)) {
		return nil, fmt.Errorf("allocating %s against credit total %s: %w",
			sum.StringFixed(2), credit.Total.StringFixed(2), ErrOverAllocation)
	}
	if !sum.IsPositive() {
		return nil, ErrEmptyAllocation
	}

	if err := lockAllocationTargets(ctx, tx, companyID, credit.SupplierID, allocs); err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, persistFailure(s.log, "apply credit: lock bills", err)
	}

	for _, a := range allocs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO vendor_credit_allocations (credit_id, bill_id, amount) VALUES ($1, $2, $3)`,
			creditID, a.BillID, a.Amount,
		); err != nil {
			return nil, persistFailure(s.log, "apply credit: insert allocation", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE vendor_credits SET status = $1, applied_at = NOW() WHERE id = $2`,
		string(CreditApplied), creditID,
	); err != nil {
		return nil, persistFailure(s.log, "apply credit: update status", err)
	}

	paid, err := settleBills(ctx, tx, companyID, distinctBillIDs(allocs))
	if err != nil {
		return nil, persistFailure(s.log, "apply credit: settle bills", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistFailure(s.log, "apply credit: commit", err)
	}

	s.log.Info().Int("credit_id", creditID).Str("applied", sum.StringFixed(2)).
		Ints("paid_bills", paid).Msg("vendor credit applied")

	result := &CreditApplication{
		CreditID:  creditID,
		Applied:   sum,
		Unapplied: credit.Total.Sub(sum),
		PaidBills: paid,
		Skipped:   skipped,
	}
	journalID, err := s.bridge.PostVendorCredit(ctx, companyID, creditID)
	if err != nil {
		s.log.Warn().Err(err).Int("credit_id", creditID).Msg("vendor credit applied, ledger posting failed")
		return result, &LedgerPostingError{Entity: "vendor credit", EntityID: creditID, Err: err}
	}
	result.JournalEntryID = &journalID
	return result, nil
}

const creditColumns = `c.id, c.company_id, c.supplier_id, c.credit_number, c.credit_date, c.currency,
	c.subtotal, c.tax, c.total, c.status, c.notes, c.journal_entry_id, c.applied_at, c.cancelled_at, c.created_at,
	COALESCE((SELECT SUM(amount) FROM vendor_credit_allocations WHERE credit_id = c.id), 0)`

func scanCredit(row pgx.Row) (*VendorCredit, error) {
	c := &VendorCredit{}
	err := row.Scan(&c.ID, &c.CompanyID, &c.SupplierID, &c.CreditNumber, &c.CreditDate, &c.Currency,
		&c.Subtotal, &c.Tax, &c.Total, &c.Status, &c.Notes, &c.JournalEntryID, &c.AppliedAt, &c.CancelledAt, &c.CreatedAt,
		&c.Allocated)
	if err != nil {
		return nil, err
	}
	c.Unapplied = c.Total.Sub(c.Allocated)
	return c, nil
}

func (s *vendorCreditService) GetVendorCredit(ctx context.Context, companyID, creditID int) (*VendorCredit, error) {
	c, err := scanCredit(s.pool.QueryRow(ctx,
		`SELECT `+creditColumns+` FROM vendor_credits c WHERE c.company_id = $1 AND c.id = $2`, companyID, creditID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("vendor credit", creditID)
		}
		return nil, fmt.Errorf("get vendor credit %d: %w", creditID, err)
	}

	lineRows, err := s.pool.Query(ctx, `
		SELECT id, credit_id, line_number, description, quantity, unit, unit_price, discount, tax_rate,
		       line_total, gl_account_id, project_ref, inventory_item_id
		FROM vendor_credit_lines
		WHERE credit_id = $1
		ORDER BY line_number`, creditID)
	if err != nil {
		return nil, fmt.Errorf("get vendor credit %d lines: %w", creditID, err)
	}
	for lineRows.Next() {
		var l CreditLine
		if err := lineRows.Scan(&l.ID, &l.CreditID, &l.LineNumber, &l.Description, &l.Quantity, &l.Unit,
			&l.UnitPrice, &l.Discount, &l.TaxRate, &l.LineTotal, &l.GLAccountID, &l.ProjectRef, &l.InventoryItemID,
		); err != nil {
			lineRows.Close()
			return nil, fmt.Errorf("scan vendor credit line: %w", err)
		}
		c.Lines = append(c.Lines, l)
	}
	lineRows.Close()
	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	allocRows, err := s.pool.Query(ctx, `
		SELECT a.id, a.credit_id, a.bill_id, b.invoice_number, a.amount
		FROM vendor_credit_allocations a
		JOIN bills b ON b.id = a.bill_id
		WHERE a.credit_id = $1
		ORDER BY a.id`, creditID)
	if err != nil {
		return nil, fmt.Errorf("get vendor credit %d allocations: %w", creditID, err)
	}
	defer allocRows.Close()
	for allocRows.Next() {
		var a VendorCreditAllocation
		if err := allocRows.Scan(&a.ID, &a.CreditID, &a.BillID, &a.InvoiceNumber, &a.Amount); err != nil {
			return nil, fmt.Errorf("scan vendor credit allocation: %w", err)
		}
		c.Allocations = append(c.Allocations, a)
	}
	return c, allocRows.Err()
}

func (s *vendorCreditService) ListVendorCredits(ctx context.Context, companyID, supplierID int) ([]VendorCredit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+creditColumns+`
		FROM vendor_credits c
		WHERE c.company_id = $1 AND ($2 = 0 OR c.supplier_id = $2)
		ORDER BY c.credit_date DESC, c.id DESC`, companyID, supplierID)
	if err != nil {
		return nil, fmt.Errorf("list vendor credits: %w", err)
	}
	defer rows.Close()

	var credits []VendorCredit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vendor credit: %w", err)
		}
		credits = append(credits, *c)
	}
	return credits, rows.Err()
}

func (s *vendorCreditService) CancelVendorCredit(ctx context.Context, companyID, creditID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return persistFailure(s.log, "cancel credit: begin", err)
	}
	defer tx.Rollback(ctx)

	credit, err := lockCredit(ctx, tx, companyID, creditID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return persistFailure(s.log, "cancel credit: lock", err)
	}
	switch credit.Status {
	case CreditCancelled:
		return nil
	case CreditApplied:
		return fmt.Errorf("vendor credit %d is applied: %w", creditID, ErrInvalidState)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE vendor_credits SET status = $1, cancelled_at = NOW() WHERE id = $2`,
		string(CreditCancelled), creditID,
	); err != nil {
		return persistFailure(s.log, "cancel credit: update status", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return persistFailure(s.log, "cancel credit: commit", err)
	}
	s.log.Info().Int("credit_id", creditID).Msg("vendor credit cancelled")
	return nil
}
