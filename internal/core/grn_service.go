package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type goodsReceiptService struct {
	pool       *pgxpool.Pool
	docService DocumentService
	log        zerolog.Logger
}

// NewGoodsReceiptService constructs a GoodsReceiptService backed by PostgreSQL.
func NewGoodsReceiptService(pool *pgxpool.Pool, docService DocumentService, log zerolog.Logger) GoodsReceiptService {
	return &goodsReceiptService{pool: pool, docService: docService, log: log.With().Str("component", "goods_receipts").Logger()}
}

func (s *goodsReceiptService) CreateGRN(ctx context.Context, companyID int, input GoodsReceiptInput) (*GoodsReceipt, error) {
	if input.POID <= 0 {
		return nil, invalid("po_id", "purchase order is required")
	}
	if input.ReceivedDate.IsZero() {
		return nil, invalid("received_date", "received date is required")
	}
	if len(input.Lines) == 0 {
		return nil, invalid("lines", "at least one received line is required")
	}
	requested := make(map[int]decimal.Decimal, len(input.Lines))
	for i, rl := range input.Lines {
		if !rl.QtyReceived.IsPositive() {
			return nil, invalid("lines", "line %d: qty_received must be greater than zero", i+1)
		}
		requested[rl.POLineID] = requested[rl.POLineID].Add(rl.QtyReceived)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var supplierID int
	var status string
	err = tx.QueryRow(ctx, `
		SELECT supplier_id, status
		FROM purchase_orders
		WHERE id = $1 AND company_id = $2
		FOR SHARE`, input.POID, companyID,
	).Scan(&supplierID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("purchase order", input.POID)
		}
		return nil, fmt.Errorf("fetch purchase order %d: %w", input.POID, err)
	}
	if status != POStatusApproved {
		return nil, fmt.Errorf("purchase order %d cannot be received: status is %s: %w", input.POID, status, ErrInvalidState)
	}

	lineIDs := make([]int, 0, len(requested))
	for id := range requested {
		lineIDs = append(lineIDs, id)
	}
	sort.Ints(lineIDs)

	type poLine struct {
		description string
		ordered     decimal.Decimal
	}
	rows, err := tx.Query(ctx, `
		SELECT id, description, quantity
		FROM purchase_order_lines
		WHERE order_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE`, input.POID, lineIDs)
	if err != nil {
		return nil, fmt.Errorf("lock PO lines: %w", err)
	}
	poLines := make(map[int]poLine, len(lineIDs))
	for rows.Next() {
		var id int
		var l poLine
		if err := rows.Scan(&id, &l.description, &l.ordered); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan PO line: %w", err)
		}
		poLines[id] = l
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock PO lines: %w", err)
	}

	for _, id := range lineIDs {
		l, ok := poLines[id]
		if !ok {
			return nil, invalid("lines", "PO line %d does not belong to purchase order %d", id, input.POID)
		}
		var received decimal.Decimal
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(gl.qty_received), 0)
			FROM grn_lines gl
			JOIN goods_received_notes g ON g.id = gl.grn_id
			WHERE gl.po_line_id = $1 AND g.status <> $2`, id, GRNStatusCancelled,
		).Scan(&received); err != nil {
			return nil, fmt.Errorf("received quantity for PO line %d: %w", id, err)
		}
		if received.Add(requested[id]).GreaterThan(l.ordered) {
			return nil, invalid("lines", "PO line %d: receiving %s would exceed ordered %s (already received %s)",
				id, requested[id], l.ordered, received)
		}
	}

	grnNumber, err := s.docService.IssueNumberTx(ctx, tx, companyID, "GR", input.ReceivedDate.Year())
	if err != nil {
		return nil, fmt.Errorf("assign GRN number: %w", err)
	}

	var notes *string
	if input.Notes != "" {
		notes = &input.Notes
	}
	var grnID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO goods_received_notes (company_id, supplier_id, po_id, grn_number, received_date, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		companyID, supplierID, input.POID, grnNumber, input.ReceivedDate, GRNStatusReceived, notes,
	).Scan(&grnID); err != nil {
		return nil, fmt.Errorf("insert goods receipt: %w", err)
	}

	for i, rl := range input.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO grn_lines (grn_id, po_line_id, line_number, description, qty_received)
			VALUES ($1, $2, $3, $4, $5)`,
			grnID, rl.POLineID, i+1, poLines[rl.POLineID].description, rl.QtyReceived,
		); err != nil {
			return nil, fmt.Errorf("insert GRN line %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit goods receipt: %w", err)
	}

	s.log.Info().Int("grn_id", grnID).Str("grn_number", grnNumber).Int("po_id", input.POID).Msg("goods received")
	return s.GetGRN(ctx, companyID, grnID)
}

func (s *goodsReceiptService) CancelGRN(ctx context.Context, companyID, grnID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx,
		"SELECT status FROM goods_received_notes WHERE id = $1 AND company_id = $2 FOR UPDATE",
		grnID, companyID,
	).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("goods receipt", grnID)
		}
		return fmt.Errorf("fetch goods receipt %d: %w", grnID, err)
	}
	if status == GRNStatusCancelled {
		return nil
	}

	// Matching locks GRN lines, so locking them here orders cancellation
	// against in-flight match batches.
	if _, err := tx.Exec(ctx, "SELECT id FROM grn_lines WHERE grn_id = $1 ORDER BY id FOR UPDATE", grnID); err != nil {
		return fmt.Errorf("lock lines of goods receipt %d: %w", grnID, err)
	}
	var matched bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM match_links m
			JOIN grn_lines gl ON gl.id = m.grn_line_id
			WHERE gl.grn_id = $1)`, grnID,
	).Scan(&matched); err != nil {
		return fmt.Errorf("check matches for goods receipt %d: %w", grnID, err)
	}
	if matched {
		return fmt.Errorf("goods receipt %d has matched lines: %w", grnID, ErrInvalidState)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE goods_received_notes SET status = $1, cancelled_at = NOW() WHERE id = $2",
		GRNStatusCancelled, grnID,
	); err != nil {
		return fmt.Errorf("cancel goods receipt %d: %w", grnID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit GRN cancellation: %w", err)
	}
	s.log.Info().Int("grn_id", grnID).Msg("goods receipt cancelled")
	return nil
}

const grnSelect = `
	SELECT id, company_id, supplier_id, po_id, grn_number, received_date, status, notes, cancelled_at, created_at
	FROM goods_received_notes`

func scanGRN(row pgx.Row) (*GoodsReceipt, error) {
	g := &GoodsReceipt{}
	err := row.Scan(&g.ID, &g.CompanyID, &g.SupplierID, &g.POID, &g.GRNNumber, &g.ReceivedDate,
		&g.Status, &g.Notes, &g.CancelledAt, &g.CreatedAt)
	return g, err
}

func (s *goodsReceiptService) GetGRN(ctx context.Context, companyID, grnID int) (*GoodsReceipt, error) {
	g, err := scanGRN(s.pool.QueryRow(ctx, grnSelect+` WHERE id = $1 AND company_id = $2`, grnID, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("goods receipt", grnID)
		}
		return nil, fmt.Errorf("get goods receipt %d: %w", grnID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, grn_id, po_line_id, line_number, description, qty_received
		FROM grn_lines
		WHERE grn_id = $1
		ORDER BY line_number`, grnID)
	if err != nil {
		return nil, fmt.Errorf("fetch GRN lines for %d: %w", grnID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l GRNLine
		if err := rows.Scan(&l.ID, &l.GRNID, &l.POLineID, &l.LineNumber, &l.Description, &l.QtyReceived); err != nil {
			return nil, fmt.Errorf("scan GRN line: %w", err)
		}
		g.Lines = append(g.Lines, l)
	}
	return g, rows.Err()
}

func (s *goodsReceiptService) ListGRNs(ctx context.Context, companyID, poID int) ([]GoodsReceipt, error) {
	rows, err := s.pool.Query(ctx, grnSelect+`
		WHERE company_id = $1 AND ($2 = 0 OR po_id = $2)
		ORDER BY received_date DESC, id DESC`, companyID, poID)
	if err != nil {
		return nil, fmt.Errorf("list goods receipts: %w", err)
	}
	defer rows.Close()

	var out []GoodsReceipt
	for rows.Next() {
		g, err := scanGRN(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goods receipt: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}
