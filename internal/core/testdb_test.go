package core_test

import (
	"context"
	"os"
	"testing"
	"time"

	"ap-settlement/internal/core"
	"ap-settlement/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const testCompanyID = 1

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// A dedicated database; every test truncates it.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrations.Apply(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE match_links, vendor_credit_allocations, vendor_credit_lines, vendor_credits,
			payment_allocations, payments, bill_lines, bills,
			grn_lines, goods_received_notes, purchase_order_lines, purchase_orders, suppliers,
			journal_lines, journal_entries, documents, document_sequences,
			account_settings, users, accounts, companies
		RESTART IDENTITY CASCADE;

		INSERT INTO companies (id, company_code, name, base_currency) VALUES (1, '1000', 'Test Company', 'USD');

		INSERT INTO accounts (company_id, code, name, type) VALUES
		(1, '1000', 'Bank', 'asset'),
		(1, '1500', 'Input Tax', 'asset'),
		(1, '2000', 'Accounts Payable', 'liability'),
		(1, '5000', 'Purchases', 'expense'),
		(1, '5100', 'Office Supplies', 'expense');
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}
	return pool
}

// services wires the payables stack against pool. ledger may be replaced to
// simulate posting failures.
type services struct {
	pool      *pgxpool.Pool
	ledger    core.LedgerService
	suppliers core.SupplierService
	bills     core.BillService
	payments  core.PaymentService
	credits   core.VendorCreditService
	postings  core.PostingService
	pos       core.PurchaseOrderService
	grns      core.GoodsReceiptService
	matches   core.MatchService
	aging     core.AgingService
}

func newServices(pool *pgxpool.Pool, ledger core.LedgerService) *services {
	log := zerolog.Nop()
	docs := core.NewDocumentService(pool)
	if ledger == nil {
		ledger = core.NewLedger(pool, docs)
	}
	resolver := core.NewAccountResolver(pool)
	bridge := core.NewLedgerBridge(pool, ledger, resolver, log)
	return &services{
		pool:      pool,
		ledger:    ledger,
		suppliers: core.NewSupplierService(pool, resolver),
		bills:     core.NewBillService(pool, bridge, log),
		payments:  core.NewPaymentService(pool, bridge, log),
		credits:   core.NewVendorCreditService(pool, bridge, log),
		postings:  core.NewPostingService(pool, bridge, log),
		pos:       core.NewPurchaseOrderService(pool, docs, log),
		grns:      core.NewGoodsReceiptService(pool, docs, log),
		matches:   core.NewMatchService(pool, 5, log),
		aging:     core.NewAgingService(pool, ledger, resolver, log),
	}
}

func mustSupplier(t *testing.T, s *services, code string) *core.Supplier {
	t.Helper()
	sup, err := s.suppliers.CreateSupplier(context.Background(), testCompanyID, core.SupplierInput{Code: code, Name: "Supplier " + code})
	if err != nil {
		t.Fatalf("CreateSupplier(%s): %v", code, err)
	}
	return sup
}

// mustPostedBill creates a bill without lines and posts it.
func mustPostedBill(t *testing.T, s *services, supplierID int, invoice string, invoiceDate time.Time, total decimal.Decimal) int {
	t.Helper()
	ctx := context.Background()
	id, err := s.bills.CreateBill(ctx, testCompanyID, core.BillHeader{
		SupplierID:    supplierID,
		InvoiceNumber: invoice,
		InvoiceDate:   invoiceDate,
		Currency:      "USD",
		Total:         total,
	}, nil)
	if err != nil {
		t.Fatalf("CreateBill(%s): %v", invoice, err)
	}
	if _, err := s.bills.PostBill(ctx, testCompanyID, id); err != nil {
		t.Fatalf("PostBill(%s): %v", invoice, err)
	}
	return id
}

func mustBalance(t *testing.T, s *services, billID int) decimal.Decimal {
	t.Helper()
	bal, err := s.bills.GetOutstandingBalance(context.Background(), testCompanyID, billID)
	if err != nil {
		t.Fatalf("GetOutstandingBalance(%d): %v", billID, err)
	}
	return bal
}
