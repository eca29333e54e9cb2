package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Kinds of ledger work that can be left behind by a failed bridge call.
const (
	UnpostedBill         = "bill"
	UnpostedPayment      = "payment"
	UnpostedVendorCredit = "vendor_credit"
	UnpostedBillReversal = "bill_reversal"
)

// UnpostedEntity is a committed document whose ledger posting is outstanding.
type UnpostedEntity struct {
	Kind       string          `json:"kind"`
	ID         int             `json:"id"`
	SupplierID int             `json:"supplier_id"`
	Reference  string          `json:"reference"`
	Date       time.Time       `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
}

// PostingOutcome reports one retry attempt.
type PostingOutcome struct {
	Kind           string `json:"kind"`
	ID             int    `json:"id"`
	JournalEntryID *int   `json:"journal_id"`
	Error          string `json:"error,omitempty"`
}

// PostingService finds and retries ledger postings that failed after commit.
type PostingService interface {
	// ListUnposted returns posted or paid bills, payments and applied credits
	// without a journal reference, plus cancelled bills whose journal entry
	// has not been reversed.
	ListUnposted(ctx context.Context, companyID int) ([]UnpostedEntity, error)

	// RetryPostings re-invokes the Ledger Bridge for every unposted entity and
	// reports each outcome. It fails only when the list itself cannot be read.
	RetryPostings(ctx context.Context, companyID int) ([]PostingOutcome, error)
}

type postingService struct {
	pool   *pgxpool.Pool
	bridge LedgerBridge
	log    zerolog.Logger
}

func NewPostingService(pool *pgxpool.Pool, bridge LedgerBridge, log zerolog.Logger) PostingService {
	return &postingService{pool: pool, bridge: bridge, log: log.With().Str("component", "postings").Logger()}
}

func (s *postingService) ListUnposted(ctx context.Context, companyID int) ([]UnpostedEntity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT 'bill', id, supplier_id, invoice_number, invoice_date, total
		FROM bills
		WHERE company_id = $1 AND status IN ('posted', 'paid') AND journal_entry_id IS NULL
		UNION ALL
		SELECT 'payment', id, supplier_id, COALESCE(reference, ''), payment_date, amount
		FROM payments
		WHERE company_id = $1 AND journal_entry_id IS NULL
		UNION ALL
		SELECT 'vendor_credit', id, supplier_id, credit_number, credit_date, total
		FROM vendor_credits
		WHERE company_id = $1 AND status = 'applied' AND journal_entry_id IS NULL
		UNION ALL
		SELECT 'bill_reversal', b.id, b.supplier_id, b.invoice_number, b.invoice_date, b.total
		FROM bills b
		WHERE b.company_id = $1 AND b.status = 'cancelled' AND b.journal_entry_id IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM journal_entries r WHERE r.reversed_entry_id = b.journal_entry_id)
		ORDER BY 5, 1, 2`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list unposted: %w", err)
	}
	defer rows.Close()

	var out []UnpostedEntity
	for rows.Next() {
		var e UnpostedEntity
		if err := rows.Scan(&e.Kind, &e.ID, &e.SupplierID, &e.Reference, &e.Date, &e.Amount); err != nil {
			return nil, fmt.Errorf("scan unposted: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *postingService) RetryPostings(ctx context.Context, companyID int) ([]PostingOutcome, error) {
	pending, err := s.ListUnposted(ctx, companyID)
	if err != nil {
		return nil, err
	}

	outcomes := make([]PostingOutcome, 0, len(pending))
	for _, e := range pending {
		var (
			journalID int
			err       error
		)
		switch e.Kind {
		case UnpostedBill:
			journalID, err = s.bridge.PostAPBill(ctx, companyID, e.ID)
		case UnpostedPayment:
			journalID, err = s.bridge.PostSupplierPayment(ctx, companyID, e.ID)
		case UnpostedVendorCredit:
			journalID, err = s.bridge.PostVendorCredit(ctx, companyID, e.ID)
		case UnpostedBillReversal:
			journalID, err = s.bridge.ReverseAPBill(ctx, companyID, e.ID)
		default:
			err = fmt.Errorf("unknown posting kind %q", e.Kind)
		}

		outcome := PostingOutcome{Kind: e.Kind, ID: e.ID}
		if err != nil {
			s.log.Warn().Err(err).Str("kind", e.Kind).Int("id", e.ID).Msg("posting retry failed")
			outcome.Error = "ledger posting failed"
		} else {
			outcome.JournalEntryID = &journalID
		}
		outcomes = append(outcomes, outcome)
	}

	s.log.Info().Int("attempted", len(outcomes)).Msg("posting retry finished")
	return outcomes, nil
}
