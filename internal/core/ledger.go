package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type LedgerService interface {
	// Commit validates and posts the proposal in its own transaction and returns
	// the journal entry id. Committing a proposal whose idempotency key already
	// exists returns the existing entry id without writing anything.
	Commit(ctx context.Context, proposal Proposal) (int, error)
	// CommitTx is Commit inside the caller's transaction.
	CommitTx(ctx context.Context, tx pgx.Tx, proposal Proposal) (int, error)
	Validate(proposal Proposal) error
	// Reverse posts a mirror entry of entryID and returns its id.
	Reverse(ctx context.Context, entryID int, reasoning string) (int, error)
	// AccountBalance returns debits minus credits posted to the account up to asOf.
	AccountBalance(ctx context.Context, companyID int, accountCode string, asOf time.Time) (decimal.Decimal, error)
}

type Ledger struct {
	pool       *pgxpool.Pool
	docService DocumentService
}

func NewLedger(pool *pgxpool.Pool, docService DocumentService) *Ledger {
	return &Ledger{pool: pool, docService: docService}
}

func (l *Ledger) Validate(proposal Proposal) error {
	proposal.Normalize()
	return proposal.Validate()
}

func (l *Ledger) Commit(ctx context.Context, proposal Proposal) (int, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	entryID, err := l.CommitTx(ctx, tx, proposal)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entryID, nil
}

func (l *Ledger) CommitTx(ctx context.Context, tx pgx.Tx, proposal Proposal) (int, error) {
	proposal.Normalize()
	if err := proposal.Validate(); err != nil {
		return 0, fmt.Errorf("proposal validation failed: %w", err)
	}

	if proposal.IdempotencyKey != "" {
		var existing int
		err := tx.QueryRow(ctx, "SELECT id FROM journal_entries WHERE idempotency_key = $1", proposal.IdempotencyKey).Scan(&existing)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	// The document and the journal entry share the caller's transaction so a
	// failed entry never leaves a consumed document number behind.
	fy := proposal.PostingDate.Year()
	docID, err := l.docService.CreateDraftDocumentTx(ctx, tx, proposal.CompanyID, proposal.DocumentTypeCode, &fy, nil)
	if err != nil {
		return 0, err
	}
	documentNumber, err := l.docService.PostDocumentTx(ctx, tx, docID)
	if err != nil {
		return 0, fmt.Errorf("failed to post document: %w", err)
	}

	narration := documentNumber
	if proposal.Summary != "" {
		narration = fmt.Sprintf("%s [%s]", proposal.Summary, documentNumber)
	}

	var entryID int
	err = tx.QueryRow(ctx, `
		INSERT INTO journal_entries (company_id, narration, posting_date, document_date, reference_type, reference_id, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`, proposal.CompanyID, narration, proposal.PostingDate, proposal.DocumentDate,
		proposal.ReferenceType, proposal.ReferenceID, proposal.IdempotencyKey).Scan(&entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A concurrent poster won the key between the check and the insert.
			return 0, fmt.Errorf("idempotency key %s committed concurrently, retry", proposal.IdempotencyKey)
		}
		return 0, fmt.Errorf("failed to insert journal entry: %w", err)
	}

	for _, line := range proposal.Lines {
		var accountID int
		err := tx.QueryRow(ctx, "SELECT id FROM accounts WHERE company_id = $1 AND code = $2", proposal.CompanyID, line.AccountCode).Scan(&accountID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, fmt.Errorf("account code %s not found for company %d", line.AccountCode, proposal.CompanyID)
			}
			return 0, fmt.Errorf("failed to fetch account ID for code %s: %w", line.AccountCode, err)
		}

		baseAmt := line.Amount.Mul(proposal.ExchangeRate).Round(2)
		debitBase, creditBase := decimal.Zero, decimal.Zero
		if line.IsDebit {
			debitBase = baseAmt
		} else {
			creditBase = baseAmt
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO journal_lines (entry_id, account_id, transaction_currency, exchange_rate, amount_transaction, debit_base, credit_base)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, entryID, accountID, proposal.TransactionCurrency, proposal.ExchangeRate, line.Amount, debitBase, creditBase)
		if err != nil {
			return 0, fmt.Errorf("failed to insert journal line: %w", err)
		}
	}

	return entryID, nil
}

func (l *Ledger) AccountBalance(ctx context.Context, companyID int, accountCode string, asOf time.Time) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(jl.debit_base), 0) - COALESCE(SUM(jl.credit_base), 0)
		FROM accounts a
		JOIN journal_lines jl ON jl.account_id = a.id
		JOIN journal_entries je ON je.id = jl.entry_id
		WHERE a.company_id = $1 AND a.code = $2 AND je.posting_date <= $3
	`, companyID, accountCode, asOf).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("account balance %s: %w", accountCode, err)
	}
	return balance, nil
}

func (l *Ledger) Reverse(ctx context.Context, entryID int, reasoning string) (int, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var narration string
	err = tx.QueryRow(ctx, "SELECT narration FROM journal_entries WHERE id = $1 FOR UPDATE", entryID).Scan(&narration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, notFound("journal entry", entryID)
		}
		return 0, fmt.Errorf("failed to fetch entry %d: %w", entryID, err)
	}

	var existing int
	err = tx.QueryRow(ctx, "SELECT id FROM journal_entries WHERE reversed_entry_id = $1", entryID).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to check reversal status: %w", err)
	}

	reversalNarration := fmt.Sprintf("Reversal of entry %d: %s", entryID, narration)
	var newEntryID int
	err = tx.QueryRow(ctx, `
		INSERT INTO journal_entries (company_id, narration, posting_date, document_date, reasoning, reference_type, reference_id, reversed_entry_id, created_at)
		SELECT company_id, $1, CURRENT_DATE, document_date, $2, reference_type, reference_id, $3, NOW()
		FROM journal_entries WHERE id = $3
		RETURNING id
	`, reversalNarration, reasoning, entryID).Scan(&newEntryID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert reversal entry: %w", err)
	}

	// Debits and credits swap sides.
	_, err = tx.Exec(ctx, `
		INSERT INTO journal_lines (entry_id, account_id, transaction_currency, exchange_rate, amount_transaction, debit_base, credit_base)
		SELECT $1, account_id, transaction_currency, exchange_rate, amount_transaction, credit_base, debit_base
		FROM journal_lines WHERE entry_id = $2
		ORDER BY id
	`, newEntryID, entryID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert inverted lines: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit reversal: %w", err)
	}
	return newEntryID, nil
}
