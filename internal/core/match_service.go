package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type matchService struct {
	pool    *pgxpool.Pool
	retries int
	log     zerolog.Logger
}

// NewMatchService constructs a MatchService. retries bounds how often a batch
// is re-run after a serialization failure or deadlock.
func NewMatchService(pool *pgxpool.Pool, retries int, log zerolog.Logger) MatchService {
	return &matchService{pool: pool, retries: retries, log: log.With().Str("component", "matching").Logger()}
}

// Lock queries per line kind. Each returns id, supplier, cancelled flag,
// capacity and (GRN only) the PO line, locking only the line rows.
var lockLineQueries = [3]string{
	kindPO: `
		SELECT pol.id, po.supplier_id, po.status = 'CANCELLED', pol.quantity, 0
		FROM purchase_order_lines pol
		JOIN purchase_orders po ON po.id = pol.order_id
		WHERE po.company_id = $1 AND pol.id = ANY($2)
		ORDER BY pol.id
		FOR UPDATE OF pol`,
	kindGRN: `
		SELECT gl.id, g.supplier_id, g.status = 'CANCELLED', gl.qty_received, gl.po_line_id
		FROM grn_lines gl
		JOIN goods_received_notes g ON g.id = gl.grn_id
		WHERE g.company_id = $1 AND gl.id = ANY($2)
		ORDER BY gl.id
		FOR UPDATE OF gl`,
	kindBill: `
		SELECT bl.id, b.supplier_id, b.status = 'cancelled', bl.quantity, 0
		FROM bill_lines bl
		JOIN bills b ON b.id = bl.bill_id
		WHERE b.company_id = $1 AND bl.id = ANY($2)
		ORDER BY bl.id
		FOR UPDATE OF bl`,
}

var matchedColumns = [3]string{kindPO: "po_line_id", kindGRN: "grn_line_id", kindBill: "bill_line_id"}

func (s *matchService) ApplyMatches(ctx context.Context, companyID int, matches []MatchInput) (*MatchResult, error) {
	valid, skipped, demand := prepareMatches(matches)
	result := &MatchResult{Errors: skipped, LinkIDs: []int{}}
	if result.Errors == nil {
		result.Errors = []MatchSkip{}
	}
	if len(valid) == 0 {
		return result, nil
	}

	attempt := 0
	err := withRetry(ctx, s.pool, s.retries, pgx.TxOptions{}, func(tx pgx.Tx) error {
		attempt++
		result.LinkIDs = result.LinkIDs[:0]

		// PO lines, then GRN lines, then bill lines, each in id order. Every
		// match batch acquires locks in this order.
		var lines [3]map[int]*lineCapacity
		for k := range lines {
			locked, err := lockLines(ctx, tx, lineKind(k), companyID, demand.ids(lineKind(k)))
			if err != nil {
				return err
			}
			lines[k] = locked
		}

		if err := checkCapacity(demand, lines); err != nil {
			return err
		}
		for _, m := range valid {
			if err := checkConsistency(m, lines); err != nil {
				return err
			}
		}

		for _, m := range valid {
			var id int
			if err := tx.QueryRow(ctx, `
				INSERT INTO match_links (company_id, po_line_id, grn_line_id, bill_line_id, qty)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				companyID, m.POLineID, m.GRNLineID, m.BillLineID, m.Qty,
			).Scan(&id); err != nil {
				return err
			}
			result.LinkIDs = append(result.LinkIDs, id)
		}
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, persistFailure(s.log, "apply matches", err)
	}

	result.Inserted = len(result.LinkIDs)
	s.log.Info().Int("inserted", result.Inserted).Int("skipped", len(skipped)).
		Int("attempts", attempt).Msg("matches applied")
	return result, nil
}

// lockLines locks the given lines of one kind and reads their matched totals
// after the lock is held.
func lockLines(ctx context.Context, tx pgx.Tx, kind lineKind, companyID int, ids []int) (map[int]*lineCapacity, error) {
	out := make(map[int]*lineCapacity, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := tx.Query(ctx, lockLineQueries[kind], companyID, ids)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id int
		l := &lineCapacity{}
		if err := rows.Scan(&id, &l.supplierID, &l.cancelled, &l.capacity, &l.poLineID); err != nil {
			rows.Close()
			return nil, err
		}
		out[id] = l
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	col := matchedColumns[kind]
	rows, err = tx.Query(ctx, fmt.Sprintf(`
		SELECT %[1]s, SUM(qty)
		FROM match_links
		WHERE %[1]s = ANY($1)
		GROUP BY %[1]s`, col), ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var matched decimal.Decimal
		if err := rows.Scan(&id, &matched); err != nil {
			return nil, err
		}
		if l, ok := out[id]; ok {
			l.matched = matched
		}
	}
	return out, rows.Err()
}

func (s *matchService) GetMatchableLines(ctx context.Context, companyID, supplierID int) (*MatchableLines, error) {
	out := &MatchableLines{POLines: []MatchableLine{}, GRNLines: []MatchableLine{}, BillLines: []MatchableLine{}}

	err := runTx(ctx, s.pool, reportTxOptions, func(tx pgx.Tx) error {
		var err error
		out.POLines, err = queryMatchable(ctx, tx, `
			SELECT pol.id, po.id, COALESCE(po.po_number, ''), pol.line_number, pol.description, NULL::int,
			       pol.quantity, COALESCE((SELECT SUM(qty) FROM match_links WHERE po_line_id = pol.id), 0)
			FROM purchase_order_lines pol
			JOIN purchase_orders po ON po.id = pol.order_id
			WHERE po.company_id = $1 AND po.supplier_id = $2 AND po.status <> 'CANCELLED'
			ORDER BY po.id, pol.line_number`, companyID, supplierID)
		if err != nil {
			return fmt.Errorf("PO lines: %w", err)
		}
		out.GRNLines, err = queryMatchable(ctx, tx, `
			SELECT gl.id, g.id, g.grn_number, gl.line_number, gl.description, gl.po_line_id,
			       gl.qty_received, COALESCE((SELECT SUM(qty) FROM match_links WHERE grn_line_id = gl.id), 0)
			FROM grn_lines gl
			JOIN goods_received_notes g ON g.id = gl.grn_id
			WHERE g.company_id = $1 AND g.supplier_id = $2 AND g.status <> 'CANCELLED'
			ORDER BY g.id, gl.line_number`, companyID, supplierID)
		if err != nil {
			return fmt.Errorf("GRN lines: %w", err)
		}
		out.BillLines, err = queryMatchable(ctx, tx, `
			SELECT bl.id, b.id, b.invoice_number, bl.line_number, bl.description, NULL::int,
			       bl.quantity, COALESCE((SELECT SUM(qty) FROM match_links WHERE bill_line_id = bl.id), 0)
			FROM bill_lines bl
			JOIN bills b ON b.id = bl.bill_id
			WHERE b.company_id = $1 AND b.supplier_id = $2 AND b.status <> 'cancelled'
			ORDER BY b.id, bl.line_number`, companyID, supplierID)
		if err != nil {
			return fmt.Errorf("bill lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("matchable lines for supplier %d: %w", supplierID, err)
	}
	return out, nil
}

func queryMatchable(ctx context.Context, q querier, sql string, args ...any) ([]MatchableLine, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []MatchableLine{}
	for rows.Next() {
		var l MatchableLine
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.DocumentNumber, &l.LineNumber, &l.Description,
			&l.POLineID, &l.Qty, &l.QtyMatched); err != nil {
			return nil, err
		}
		l.QtyAvailable = l.Qty.Sub(l.QtyMatched)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *matchService) ListMatchLinks(ctx context.Context, companyID, supplierID int) ([]MatchLink, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.company_id, m.po_line_id, m.grn_line_id, m.bill_line_id, m.qty, m.created_at
		FROM match_links m
		LEFT JOIN purchase_order_lines pol ON pol.id = m.po_line_id
		LEFT JOIN purchase_orders po ON po.id = pol.order_id
		LEFT JOIN grn_lines gl ON gl.id = m.grn_line_id
		LEFT JOIN goods_received_notes g ON g.id = gl.grn_id
		LEFT JOIN bill_lines bl ON bl.id = m.bill_line_id
		LEFT JOIN bills b ON b.id = bl.bill_id
		WHERE m.company_id = $1
		  AND ($2 = 0 OR po.supplier_id = $2 OR g.supplier_id = $2 OR b.supplier_id = $2)
		ORDER BY m.id DESC`, companyID, supplierID)
	if err != nil {
		return nil, fmt.Errorf("list match links: %w", err)
	}
	defer rows.Close()

	var links []MatchLink
	for rows.Next() {
		var l MatchLink
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.POLineID, &l.GRNLineID, &l.BillLineID, &l.Qty, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
