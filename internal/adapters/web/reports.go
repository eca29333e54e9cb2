package web

import (
	"net/http"
	"time"

	"ap-settlement/internal/core"

	"github.com/go-chi/chi/v5"
)

// queryDate parses an optional YYYY-MM-DD query parameter; absent is the zero time.
func queryDate(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := core.ParseDate(raw)
	if err != nil {
		writeError(w, r, name+": must be "+core.DateLayout, "VALIDATION_ERROR", http.StatusBadRequest)
		return time.Time{}, false
	}
	return t, true
}

// aging handles GET /reports/aging?as_of=. as_of defaults to today.
func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf, ok := queryDate(w, r, "as_of")
	if !ok {
		return
	}
	result, err := h.svc.GetAging(r.Context(), companyCode(r), asOf)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// supplierStatement handles GET /reports/statement?supplier_id=&start_date=&end_date=
// and GET /suppliers/{id}/statement.
func (h *Handler) supplierStatement(w http.ResponseWriter, r *http.Request) {
	var supplierID int
	if chi.URLParam(r, "id") != "" {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		supplierID = id
	} else {
		id, ok := queryInt(w, r, "supplier_id")
		if !ok {
			return
		}
		supplierID = id
	}
	if supplierID == 0 {
		writeError(w, r, "supplier_id: is required", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	statement, err := h.svc.GetSupplierStatement(r.Context(), companyCode(r), supplierID, q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, statement)
}

// reconcile handles GET /reports/reconciliation?as_of=.
func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	asOf, ok := queryDate(w, r, "as_of")
	if !ok {
		return
	}
	result, err := h.svc.ReconcileControlAccount(r.Context(), companyCode(r), asOf)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// ── Ledger postings ───────────────────────────────────────────────────────────

func (h *Handler) listUnposted(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListUnposted(r.Context(), companyCode(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) retryPostings(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RetryPostings(r.Context(), companyCode(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
