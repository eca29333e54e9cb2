package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerBridge turns committed payables documents into balanced journal
// entries. Each method is idempotent per entity: the journal is keyed by
// entity, and an entity that already carries a journal reference returns it
// without posting again. Callers invoke it only after their own transaction
// has committed.
type LedgerBridge interface {
	// PostAPBill posts DR expense and input tax, CR the supplier's AP account.
	PostAPBill(ctx context.Context, companyID, billID int) (int, error)
	// PostSupplierPayment posts DR AP, CR bank.
	PostSupplierPayment(ctx context.Context, companyID, paymentID int) (int, error)
	// PostVendorCredit posts DR AP, CR expense and input tax.
	PostVendorCredit(ctx context.Context, companyID, creditID int) (int, error)
	// ReverseAPBill reverses a cancelled bill's journal entry.
	ReverseAPBill(ctx context.Context, companyID, billID int) (int, error)
}

// Journal reference types and document type codes used by the bridge.
const (
	RefTypeBill    = "AP_BILL"
	RefTypePayment = "AP_PAYMENT"
	RefTypeCredit  = "AP_CREDIT"

	docTypePurchaseInvoice = "PI"
	docTypePayment         = "PP"
	docTypeDebitNote       = "DN"
)

type ledgerBridge struct {
	pool     *pgxpool.Pool
	ledger   LedgerService
	resolver AccountResolver
	log      zerolog.Logger
}

// NewLedgerBridge constructs a LedgerBridge on top of the ledger.
func NewLedgerBridge(pool *pgxpool.Pool, ledger LedgerService, resolver AccountResolver, log zerolog.Logger) LedgerBridge {
	return &ledgerBridge{pool: pool, ledger: ledger, resolver: resolver, log: log.With().Str("component", "ledger_bridge").Logger()}
}

// postingLine is the ledger-relevant part of a bill or credit line.
type postingLine struct {
	accountCode *string
	in          LineInput
}

func (lb *ledgerBridge) loadPostingLines(ctx context.Context, tx pgx.Tx, table, fk string, id int) ([]postingLine, error) {
	rows, err := tx.Query(ctx, fmt.Sprintf(`
		SELECT a.code, l.quantity, l.unit_price, l.discount, l.tax_rate
		FROM %s l
		LEFT JOIN accounts a ON a.id = l.gl_account_id
		WHERE l.%s = $1
		ORDER BY l.line_number`, table, fk), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []postingLine
	for rows.Next() {
		var pl postingLine
		var discount, rate decimal.Decimal
		if err := rows.Scan(&pl.accountCode, &pl.in.Quantity, &pl.in.UnitPrice, &discount, &rate); err != nil {
			return nil, err
		}
		pl.in.Discount = &discount
		pl.in.TaxRate = &rate
		lines = append(lines, pl)
	}
	return lines, rows.Err()
}

// expenseSplit distributes subtotal across line accounts by each line's net.
// When the lines do not add up to the header subtotal the whole subtotal goes
// to the default expense account.
func expenseSplit(lines []postingLine, subtotal decimal.Decimal, defaultAccount string) map[string]decimal.Decimal {
	split := make(map[string]decimal.Decimal)
	sum := decimal.Zero
	for _, pl := range lines {
		net := ComputeLine(pl.in).Net
		code := defaultAccount
		if pl.accountCode != nil {
			code = *pl.accountCode
		}
		split[code] = split[code].Add(net)
		sum = sum.Add(net)
	}
	if len(lines) == 0 || !sum.Equal(subtotal) {
		return map[string]decimal.Decimal{defaultAccount: subtotal}
	}
	return split
}

type documentHeader struct {
	supplierID     int
	apAccount      string
	currency       string
	date           time.Time
	number         string
	subtotal       decimal.Decimal
	tax            decimal.Decimal
	total          decimal.Decimal
	status         string
	journalEntryID *int
}

func (lb *ledgerBridge) PostAPBill(ctx context.Context, companyID, billID int) (int, error) {
	return lb.postDocument(ctx, companyID, billID, documentKind{
		table:      "bills",
		lineTable:  "bill_lines",
		lineFK:     "bill_id",
		numberCol:  "invoice_number",
		dateCol:    "invoice_date",
		docType:    docTypePurchaseInvoice,
		refType:    RefTypeBill,
		keyPrefix:  "ap-bill-",
		postable:   map[string]bool{string(BillPosted): true, string(BillPaid): true},
		isDebitAP:  false,
		entityName: "bill",
	})
}

func (lb *ledgerBridge) PostVendorCredit(ctx context.Context, companyID, creditID int) (int, error) {
	return lb.postDocument(ctx, companyID, creditID, documentKind{
		table:      "vendor_credits",
		lineTable:  "vendor_credit_lines",
		lineFK:     "credit_id",
		numberCol:  "credit_number",
		dateCol:    "credit_date",
		docType:    docTypeDebitNote,
		refType:    RefTypeCredit,
		keyPrefix:  "ap-credit-",
		postable:   map[string]bool{string(CreditApplied): true},
		isDebitAP:  true,
		entityName: "vendor credit",
	})
}

// documentKind describes where a bill-shaped document lives and how it posts.
type documentKind struct {
	table, lineTable, lineFK string
	numberCol, dateCol       string
	docType, refType         string
	keyPrefix                string
	postable                 map[string]bool
	isDebitAP                bool
	entityName               string
}

func (lb *ledgerBridge) postDocument(ctx context.Context, companyID, id int, kind documentKind) (int, error) {
	tx, err := lb.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var h documentHeader
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT d.supplier_id, s.ap_account_code, d.currency, d.%s, d.%s,
		       d.subtotal, d.tax, d.total, d.status, d.journal_entry_id
		FROM %s d
		JOIN suppliers s ON s.id = d.supplier_id
		WHERE d.company_id = $1 AND d.id = $2
		FOR UPDATE OF d`, kind.dateCol, kind.numberCol, kind.table), companyID, id,
	).Scan(&h.supplierID, &h.apAccount, &h.currency, &h.date, &h.number,
		&h.subtotal, &h.tax, &h.total, &h.status, &h.journalEntryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, notFound(kind.entityName, id)
		}
		return 0, fmt.Errorf("load %s %d: %w", kind.entityName, id, err)
	}
	if h.journalEntryID != nil {
		return *h.journalEntryID, nil
	}
	if !kind.postable[h.status] {
		return 0, fmt.Errorf("%s %d is %s: %w", kind.entityName, id, h.status, ErrInvalidState)
	}

	lines, err := lb.loadPostingLines(ctx, tx, kind.lineTable, kind.lineFK, id)
	if err != nil {
		return 0, fmt.Errorf("load %s %d lines: %w", kind.entityName, id, err)
	}
	expenseAccount, err := lb.resolver.Get(ctx, companyID, SettingDefaultExpenseAccount, DefaultExpenseAccount)
	if err != nil {
		return 0, err
	}
	taxAccount, err := lb.resolver.Get(ctx, companyID, SettingInputTaxAccount, DefaultInputTaxAccount)
	if err != nil {
		return 0, err
	}

	b := newLineBuilder()
	for code, amt := range expenseSplit(lines, h.subtotal, expenseAccount) {
		if kind.isDebitAP {
			b.credit(code, amt)
		} else {
			b.debit(code, amt)
		}
	}
	if kind.isDebitAP {
		b.credit(taxAccount, h.tax)
		b.debit(h.apAccount, h.total)
	} else {
		b.debit(taxAccount, h.tax)
		b.credit(h.apAccount, h.total)
	}

	proposal := Proposal{
		DocumentTypeCode:    kind.docType,
		CompanyID:           companyID,
		IdempotencyKey:      kind.keyPrefix + strconv.Itoa(id),
		TransactionCurrency: h.currency,
		ExchangeRate:        decimal.NewFromInt(1),
		Summary:             fmt.Sprintf("%s %s", kind.entityName, h.number),
		PostingDate:         h.date,
		DocumentDate:        h.date,
		ReferenceType:       kind.refType,
		ReferenceID:         strconv.Itoa(id),
		Lines:               b.lines(),
	}
	return lb.commitAndLink(ctx, tx, proposal, kind.table, id)
}

func (lb *ledgerBridge) PostSupplierPayment(ctx context.Context, companyID, paymentID int) (int, error) {
	tx, err := lb.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		apAccount, currency string
		bankCode            *string
		paymentDate         time.Time
		amount              decimal.Decimal
		journalEntryID      *int
	)
	err = tx.QueryRow(ctx, `
		SELECT s.ap_account_code, c.base_currency, ba.code, p.payment_date, p.amount, p.journal_entry_id
		FROM payments p
		JOIN suppliers s ON s.id = p.supplier_id
		JOIN companies c ON c.id = p.company_id
		LEFT JOIN accounts ba ON ba.id = p.bank_account_id
		WHERE p.company_id = $1 AND p.id = $2
		FOR UPDATE OF p`, companyID, paymentID,
	).Scan(&apAccount, &currency, &bankCode, &paymentDate, &amount, &journalEntryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, notFound("payment", paymentID)
		}
		return 0, fmt.Errorf("load payment %d: %w", paymentID, err)
	}
	if journalEntryID != nil {
		return *journalEntryID, nil
	}

	bank := ""
	if bankCode != nil {
		bank = *bankCode
	} else {
		bank, err = lb.resolver.Get(ctx, companyID, SettingBankAccount, DefaultBankAccount)
		if err != nil {
			return 0, err
		}
	}

	b := newLineBuilder()
	b.debit(apAccount, amount)
	b.credit(bank, amount)

	proposal := Proposal{
		DocumentTypeCode:    docTypePayment,
		CompanyID:           companyID,
		IdempotencyKey:      "ap-payment-" + strconv.Itoa(paymentID),
		TransactionCurrency: currency,
		ExchangeRate:        decimal.NewFromInt(1),
		Summary:             fmt.Sprintf("supplier payment %d", paymentID),
		PostingDate:         paymentDate,
		DocumentDate:        paymentDate,
		ReferenceType:       RefTypePayment,
		ReferenceID:         strconv.Itoa(paymentID),
		Lines:               b.lines(),
	}
	return lb.commitAndLink(ctx, tx, proposal, "payments", paymentID)
}

// commitAndLink writes the journal entry and stores its id on the entity in
// the same transaction, so a posted journal never exists without its link.
func (lb *ledgerBridge) commitAndLink(ctx context.Context, tx pgx.Tx, proposal Proposal, table string, id int) (int, error) {
	entryID, err := lb.ledger.CommitTx(ctx, tx, proposal)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET journal_entry_id = $1 WHERE id = $2`, table), entryID, id); err != nil {
		return 0, fmt.Errorf("link journal entry: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit posting: %w", err)
	}
	lb.log.Info().Str("reference_type", proposal.ReferenceType).Int("entity_id", id).
		Int("journal_entry_id", entryID).Msg("posted to ledger")
	return entryID, nil
}

func (lb *ledgerBridge) ReverseAPBill(ctx context.Context, companyID, billID int) (int, error) {
	var (
		status         BillStatus
		journalEntryID *int
	)
	err := lb.pool.QueryRow(ctx,
		`SELECT status, journal_entry_id FROM bills WHERE company_id = $1 AND id = $2`, companyID, billID,
	).Scan(&status, &journalEntryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, notFound("bill", billID)
		}
		return 0, fmt.Errorf("load bill %d: %w", billID, err)
	}
	if status != BillCancelled {
		return 0, fmt.Errorf("bill %d is %s, only cancelled bills are reversed: %w", billID, status, ErrInvalidState)
	}
	if journalEntryID == nil {
		return 0, fmt.Errorf("bill %d has no journal entry: %w", billID, ErrInvalidState)
	}
	return lb.ledger.Reverse(ctx, *journalEntryID, fmt.Sprintf("bill %d cancelled", billID))
}
