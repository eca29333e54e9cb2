package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"ap-settlement/internal/app"
	"ap-settlement/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	log       zerolog.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string, log zerolog.Logger) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
		log:       log.With().Str("component", "web").Logger(),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.log))
	r.Use(Recoverer(h.log))
	r.Use(CORS(allowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Auth (public) ─────────────────────────────────────────────────────────
	r.With(RequestBodyLimit(1<<20)).Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes ──────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		r.Route("/api/companies/{code}/ap", func(r chi.Router) {
			r.Use(h.RequireCompany)

			view := h.requirePermission(core.PermViewPayables)
			reports := h.requirePermission(core.PermViewReports)

			// Suppliers
			r.With(view).Get("/suppliers", h.listSuppliers)
			r.With(h.requirePermission(core.PermManagePOs)).Post("/suppliers", h.createSupplier)
			r.With(view).Get("/suppliers/{id}", h.getSupplier)
			r.With(reports).Get("/suppliers/{id}/statement", h.supplierStatement)

			// Bills
			r.With(view).Get("/bills", h.listBills)
			r.With(h.requirePermission(core.PermManageBills)).Post("/bills", h.createBill)
			r.With(view).Get("/bills/{id}", h.getBill)
			r.With(h.requirePermission(core.PermPostBills)).Post("/bills/post", h.postBill)
			r.With(h.requirePermission(core.PermPostBills)).Post("/bills/{id}/post", h.postBill)
			r.With(h.requirePermission(core.PermPostBills)).Post("/bills/{id}/cancel", h.cancelBill)

			// Payments
			r.With(view).Get("/payments", h.listPayments)
			r.With(h.requirePermission(core.PermPayBills)).Post("/payments", h.createPayment)
			r.With(view).Get("/payments/{id}", h.getPayment)

			// Vendor credits
			credits := h.requirePermission(core.PermManageCredits)
			r.With(view).Get("/vendor-credits", h.listVendorCredits)
			r.With(credits).Post("/vendor-credits", h.createVendorCredit)
			r.With(credits).Post("/vendor-credits/apply", h.applyVendorCredit)
			r.With(view).Get("/vendor-credits/{id}", h.getVendorCredit)
			r.With(credits).Post("/vendor-credits/{id}/apply", h.applyVendorCredit)
			r.With(credits).Post("/vendor-credits/{id}/cancel", h.cancelVendorCredit)

			// Purchase orders and goods receipts
			pos := h.requirePermission(core.PermManagePOs)
			r.With(view).Get("/purchase-orders", h.listPurchaseOrders)
			r.With(pos).Post("/purchase-orders", h.createPurchaseOrder)
			r.With(view).Get("/purchase-orders/{id}", h.getPurchaseOrder)
			r.With(pos).Post("/purchase-orders/{id}/approve", h.approvePurchaseOrder)
			r.With(pos).Post("/purchase-orders/{id}/cancel", h.cancelPurchaseOrder)
			r.With(view).Get("/goods-receipts", h.listGoodsReceipts)
			r.With(pos).Post("/goods-receipts", h.receiveGoods)
			r.With(view).Get("/goods-receipts/{id}", h.getGoodsReceipt)
			r.With(pos).Post("/goods-receipts/{id}/cancel", h.cancelGoodsReceipt)

			// Three-way match
			r.With(h.requirePermission(core.PermMatch)).Get("/match/lines", h.matchableLines)
			r.With(h.requirePermission(core.PermMatch)).Post("/match", h.applyMatches)
			r.With(view).Get("/match/links", h.listMatchLinks)

			// Reports
			r.With(reports).Get("/reports/aging", h.aging)
			r.With(reports).Get("/reports/statement", h.supplierStatement)
			r.With(reports).Get("/reports/reconciliation", h.reconcile)

			// Ledger postings
			r.With(view).Get("/postings/unposted", h.listUnposted)
			r.With(h.requirePermission(core.PermRetryPostings)).Post("/postings/retry", h.retryPostings)
		})
	})

	h.router = r
	return r
}

// health returns service status and the loaded company code.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	company, err := h.svc.LoadDefaultCompany(r.Context())
	companyCode := ""
	if err == nil && company != nil {
		companyCode = company.CompanyCode
	}

	type response struct {
		Status  string `json:"status"`
		Company string `json:"company"`
	}

	writeJSON(w, response{Status: "ok", Company: companyCode})
}

// companyCode extracts the {code} URL parameter.
func companyCode(r *http.Request) string {
	return chi.URLParam(r, "code")
}

// pathID parses the {id} URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "id: must be a positive integer", "VALIDATION_ERROR", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter; absent means zero.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, r, name+": must be a non-negative integer", "VALIDATION_ERROR", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
