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

type purchaseOrderService struct {
	pool       *pgxpool.Pool
	docService DocumentService
	log        zerolog.Logger
}

// NewPurchaseOrderService constructs a PurchaseOrderService backed by PostgreSQL.
func NewPurchaseOrderService(pool *pgxpool.Pool, docService DocumentService, log zerolog.Logger) PurchaseOrderService {
	return &purchaseOrderService{pool: pool, docService: docService, log: log.With().Str("component", "purchase_orders").Logger()}
}

func (s *purchaseOrderService) CreatePO(ctx context.Context, companyID int, input PurchaseOrderInput, lines []PurchaseOrderLineInput) (*PurchaseOrder, error) {
	if input.SupplierID <= 0 {
		return nil, invalid("supplier_id", "supplier is required")
	}
	if input.PODate.IsZero() {
		return nil, invalid("po_date", "PO date is required")
	}
	if len(lines) == 0 {
		return nil, invalid("lines", "purchase order must have at least one line")
	}
	for i, l := range lines {
		if strings.TrimSpace(l.Description) == "" {
			return nil, invalid("lines", "line %d: description is required", i+1)
		}
		if !l.Quantity.IsPositive() {
			return nil, invalid("lines", "line %d: qty must be greater than zero", i+1)
		}
		if l.UnitCost.IsNegative() {
			return nil, invalid("lines", "line %d: unit_cost must not be negative", i+1)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	supplier, err := getSupplier(ctx, tx, companyID, input.SupplierID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("supplier_id", "supplier %d not found", input.SupplierID)
		}
		return nil, err
	}
	if !supplier.IsActive {
		return nil, invalid("supplier_id", "supplier %s is inactive", supplier.Code)
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		if err := tx.QueryRow(ctx, "SELECT base_currency FROM companies WHERE id = $1", companyID).Scan(&currency); err != nil {
			return nil, fmt.Errorf("company currency: %w", err)
		}
	}

	lineTotals := make([]decimal.Decimal, len(lines))
	total := decimal.Zero
	for i, l := range lines {
		lineTotals[i] = l.Quantity.Mul(l.UnitCost).Round(2)
		total = total.Add(lineTotals[i])
	}

	var notes *string
	if input.Notes != "" {
		notes = &input.Notes
	}

	var poID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (company_id, supplier_id, status, po_date, expected_delivery_date, currency, total, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		companyID, input.SupplierID, POStatusDraft, input.PODate, input.ExpectedDeliveryDate, currency, total, notes,
	).Scan(&poID); err != nil {
		return nil, fmt.Errorf("insert purchase order: %w", err)
	}

	for i, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO purchase_order_lines (order_id, line_number, description, quantity, unit_cost, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			poID, i+1, strings.TrimSpace(l.Description), l.Quantity, l.UnitCost, lineTotals[i],
		); err != nil {
			return nil, fmt.Errorf("insert PO line %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit purchase order: %w", err)
	}

	s.log.Info().Int("po_id", poID).Int("supplier_id", input.SupplierID).Msg("purchase order created")
	return s.GetPO(ctx, companyID, poID)
}

func (s *purchaseOrderService) ApprovePO(ctx context.Context, companyID, poID int) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	var financialYear int
	if err := tx.QueryRow(ctx, `
		SELECT status, EXTRACT(YEAR FROM po_date)::int
		FROM purchase_orders
		WHERE id = $1 AND company_id = $2
		FOR UPDATE`, poID, companyID,
	).Scan(&status, &financialYear); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("purchase order", poID)
		}
		return nil, fmt.Errorf("fetch purchase order %d: %w", poID, err)
	}

	switch status {
	case POStatusApproved:
		return s.GetPO(ctx, companyID, poID)
	case POStatusDraft:
	default:
		return nil, fmt.Errorf("purchase order %d cannot be approved: status is %s: %w", poID, status, ErrInvalidState)
	}

	poNumber, err := s.docService.IssueNumberTx(ctx, tx, companyID, "PO", financialYear)
	if err != nil {
		return nil, fmt.Errorf("assign PO number: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE purchase_orders
		SET status = $1, po_number = $2, approved_at = NOW()
		WHERE id = $3`,
		POStatusApproved, poNumber, poID,
	); err != nil {
		return nil, fmt.Errorf("approve purchase order %d: %w", poID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit PO approval: %w", err)
	}

	s.log.Info().Int("po_id", poID).Str("po_number", poNumber).Msg("purchase order approved")
	return s.GetPO(ctx, companyID, poID)
}

func (s *purchaseOrderService) CancelPO(ctx context.Context, companyID, poID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx,
		"SELECT status FROM purchase_orders WHERE id = $1 AND company_id = $2 FOR UPDATE",
		poID, companyID,
	).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("purchase order", poID)
		}
		return fmt.Errorf("fetch purchase order %d: %w", poID, err)
	}
	if status == POStatusCancelled {
		return nil
	}

	var liveReceipts bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM goods_received_notes WHERE po_id = $1 AND status <> $2)",
		poID, GRNStatusCancelled,
	).Scan(&liveReceipts); err != nil {
		return fmt.Errorf("check receipts for purchase order %d: %w", poID, err)
	}
	if liveReceipts {
		return fmt.Errorf("purchase order %d has goods receipts: %w", poID, ErrInvalidState)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE purchase_orders SET status = $1, cancelled_at = NOW() WHERE id = $2",
		POStatusCancelled, poID,
	); err != nil {
		return fmt.Errorf("cancel purchase order %d: %w", poID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit PO cancellation: %w", err)
	}
	s.log.Info().Int("po_id", poID).Msg("purchase order cancelled")
	return nil
}

const poSelect = `
	SELECT po.id, po.company_id, po.supplier_id, s.code, s.name,
	       po.po_number, po.status, po.po_date, po.expected_delivery_date,
	       po.currency, po.total, po.notes, po.approved_at, po.cancelled_at, po.created_at
	FROM purchase_orders po
	JOIN suppliers s ON s.id = po.supplier_id`

func scanPO(row pgx.Row) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	err := row.Scan(
		&po.ID, &po.CompanyID, &po.SupplierID, &po.SupplierCode, &po.SupplierName,
		&po.PONumber, &po.Status, &po.PODate, &po.ExpectedDeliveryDate,
		&po.Currency, &po.Total, &po.Notes, &po.ApprovedAt, &po.CancelledAt, &po.CreatedAt,
	)
	return po, err
}

func (s *purchaseOrderService) GetPO(ctx context.Context, companyID, poID int) (*PurchaseOrder, error) {
	po, err := scanPO(s.pool.QueryRow(ctx, poSelect+` WHERE po.id = $1 AND po.company_id = $2`, poID, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("purchase order", poID)
		}
		return nil, fmt.Errorf("get purchase order %d: %w", poID, err)
	}

	lines, err := s.fetchLines(ctx, poID)
	if err != nil {
		return nil, err
	}
	po.Lines = lines
	return po, nil
}

func (s *purchaseOrderService) GetPOs(ctx context.Context, companyID int, status string) ([]PurchaseOrder, error) {
	query := poSelect + ` WHERE po.company_id = $1`
	args := []any{companyID}

	if status != "" {
		query += " AND po.status = $2"
		args = append(args, strings.ToUpper(status))
	}
	query += " ORDER BY po.created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		orders = append(orders, *po)
	}
	return orders, rows.Err()
}

func (s *purchaseOrderService) fetchLines(ctx context.Context, poID int) ([]PurchaseOrderLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, line_number, description, quantity, unit_cost, line_total
		FROM purchase_order_lines
		WHERE order_id = $1
		ORDER BY line_number`,
		poID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch PO lines for order %d: %w", poID, err)
	}
	defer rows.Close()

	var lines []PurchaseOrderLine
	for rows.Next() {
		var l PurchaseOrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.LineNumber, &l.Description, &l.Quantity, &l.UnitCost, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("scan PO line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
