package app

import (
	"ap-settlement/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// BuildServices wires every core service against pool.
func BuildServices(pool *pgxpool.Pool, matchRetries int, log zerolog.Logger) Services {
	docs := core.NewDocumentService(pool)
	ledger := core.NewLedger(pool, docs)
	resolver := core.NewAccountResolver(pool)
	bridge := core.NewLedgerBridge(pool, ledger, resolver, log.With().Str("component", "ledger_bridge").Logger())

	return Services{
		Companies:     core.NewCompanyService(pool),
		Users:         core.NewUserService(pool),
		Suppliers:     core.NewSupplierService(pool, resolver),
		Bills:         core.NewBillService(pool, bridge, log.With().Str("component", "bills").Logger()),
		Payments:      core.NewPaymentService(pool, bridge, log.With().Str("component", "payments").Logger()),
		Credits:       core.NewVendorCreditService(pool, bridge, log.With().Str("component", "vendor_credits").Logger()),
		PurchaseOrder: core.NewPurchaseOrderService(pool, docs, log.With().Str("component", "purchase_orders").Logger()),
		GoodsReceipts: core.NewGoodsReceiptService(pool, docs, log.With().Str("component", "goods_receipts").Logger()),
		Matches:       core.NewMatchService(pool, matchRetries, log.With().Str("component", "matching").Logger()),
		Aging:         core.NewAgingService(pool, ledger, resolver, log.With().Str("component", "aging").Logger()),
		Postings:      core.NewPostingService(pool, bridge, log.With().Str("component", "postings").Logger()),
	}
}
