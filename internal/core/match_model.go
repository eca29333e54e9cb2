package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MatchInput is one candidate three-way match. At least one line reference
// must be set and Qty must be positive, otherwise the candidate is skipped.
type MatchInput struct {
	POLineID   *int            `json:"po_line_id,omitempty"`
	GRNLineID  *int            `json:"grn_line_id,omitempty"`
	BillLineID *int            `json:"bill_line_id,omitempty"`
	Qty        decimal.Decimal `json:"qty"`
}

// MatchLink is a stored match. Links are append-only.
type MatchLink struct {
	ID         int             `json:"id"`
	CompanyID  int             `json:"company_id"`
	POLineID   *int            `json:"po_line_id,omitempty"`
	GRNLineID  *int            `json:"grn_line_id,omitempty"`
	BillLineID *int            `json:"bill_line_id,omitempty"`
	Qty        decimal.Decimal `json:"qty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// MatchableLine is a PO, GRN or bill line with its remaining capacity.
// Capacity is the ordered, received or billed quantity respectively.
type MatchableLine struct {
	ID             int             `json:"id"`
	DocumentID     int             `json:"document_id"`
	DocumentNumber string          `json:"document_number"`
	LineNumber     int             `json:"line_number"`
	Description    string          `json:"description"`
	POLineID       *int            `json:"po_line_id,omitempty"`
	Qty            decimal.Decimal `json:"qty"`
	QtyMatched     decimal.Decimal `json:"qty_matched"`
	QtyAvailable   decimal.Decimal `json:"qty_available"`
}

// MatchableLines groups a supplier's lines by document kind.
type MatchableLines struct {
	POLines   []MatchableLine `json:"po_lines"`
	GRNLines  []MatchableLine `json:"grn_lines"`
	BillLines []MatchableLine `json:"bill_lines"`
}

// MatchSkip reports a candidate that was not inserted.
type MatchSkip struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// MatchResult is the outcome of ApplyMatches.
type MatchResult struct {
	Inserted int         `json:"inserted"`
	LinkIDs  []int       `json:"link_ids"`
	Errors   []MatchSkip `json:"errors"`
}

// MatchService links PO, GRN and bill lines.
type MatchService interface {
	// GetMatchableLines returns the supplier's PO, GRN and bill lines from
	// non-cancelled documents, each with qty_available = capacity - matched.
	GetMatchableLines(ctx context.Context, companyID, supplierID int) (*MatchableLines, error)

	// ApplyMatches inserts the valid candidates as one all-or-nothing batch.
	// Every referenced line is locked and its availability re-read inside the
	// insert transaction; a candidate exceeding availability fails the whole
	// batch with ErrOverMatch.
	ApplyMatches(ctx context.Context, companyID int, matches []MatchInput) (*MatchResult, error)

	// ListMatchLinks returns links touching any of the supplier's lines, newest first.
	ListMatchLinks(ctx context.Context, companyID, supplierID int) ([]MatchLink, error)
}

type lineKind int

const (
	kindPO lineKind = iota
	kindGRN
	kindBill
)

func (k lineKind) String() string {
	switch k {
	case kindPO:
		return "PO line"
	case kindGRN:
		return "GRN line"
	default:
		return "bill line"
	}
}

// lineDemand is the total quantity a batch requests per line, keyed by kind.
type lineDemand [3]map[int]decimal.Decimal

type indexedMatch struct {
	index int
	MatchInput
}

// prepareMatches drops candidates with non-positive qty or no references and
// sums what the remaining ones demand from each line.
func prepareMatches(in []MatchInput) ([]indexedMatch, []MatchSkip, lineDemand) {
	var (
		valid   []indexedMatch
		skipped []MatchSkip
		demand  lineDemand
	)
	for k := range demand {
		demand[k] = make(map[int]decimal.Decimal)
	}

	for i, m := range in {
		if m.POLineID == nil && m.GRNLineID == nil && m.BillLineID == nil {
			skipped = append(skipped, MatchSkip{Index: i, Reason: "no line references"})
			continue
		}
		if !m.Qty.IsPositive() {
			skipped = append(skipped, MatchSkip{Index: i, Reason: "qty must be greater than zero"})
			continue
		}
		valid = append(valid, indexedMatch{index: i, MatchInput: m})
		for k, ref := range [3]*int{m.POLineID, m.GRNLineID, m.BillLineID} {
			if ref != nil {
				demand[k][*ref] = demand[k][*ref].Add(m.Qty)
			}
		}
	}
	return valid, skipped, demand
}

// ids returns the demanded line ids of one kind in ascending order.
func (d lineDemand) ids(k lineKind) []int {
	out := make([]int, 0, len(d[k]))
	for id := range d[k] {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// lineCapacity is a locked line's state as read inside the match transaction.
type lineCapacity struct {
	supplierID int
	cancelled  bool
	capacity   decimal.Decimal
	matched    decimal.Decimal
	poLineID   int
}

// checkCapacity verifies demand fits every line's remaining quantity.
func checkCapacity(demand lineDemand, lines [3]map[int]*lineCapacity) error {
	for k := range demand {
		kind := lineKind(k)
		for _, id := range demand.ids(kind) {
			l, ok := lines[k][id]
			if !ok {
				return invalid("matches", "%s %d not found", kind, id)
			}
			if l.cancelled {
				return fmt.Errorf("%s %d belongs to a cancelled document: %w", kind, id, ErrInvalidState)
			}
			available := l.capacity.Sub(l.matched)
			if demand[k][id].GreaterThan(available) {
				return fmt.Errorf("%s %d: requested %s, available %s: %w",
					kind, id, demand[k][id], available, ErrOverMatch)
			}
		}
	}
	return nil
}

// checkConsistency verifies that the lines referenced by one candidate
// belong to the same supplier and, for PO plus GRN, to the same PO line.
func checkConsistency(m indexedMatch, lines [3]map[int]*lineCapacity) error {
	supplier := 0
	for k, ref := range [3]*int{m.POLineID, m.GRNLineID, m.BillLineID} {
		if ref == nil {
			continue
		}
		l := lines[k][*ref]
		if supplier != 0 && l.supplierID != supplier {
			return invalid("matches", "match %d references lines of different suppliers", m.index)
		}
		supplier = l.supplierID
	}
	if m.POLineID != nil && m.GRNLineID != nil && lines[kindGRN][*m.GRNLineID].poLineID != *m.POLineID {
		return invalid("matches", "match %d: GRN line %d was not received against PO line %d",
			m.index, *m.GRNLineID, *m.POLineID)
	}
	return nil
}
