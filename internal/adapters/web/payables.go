package web

import (
	"net/http"

	"ap-settlement/internal/app"
	"ap-settlement/internal/core"

	"github.com/go-chi/chi/v5"
)

// ── Suppliers ─────────────────────────────────────────────────────────────────

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListSuppliers(r.Context(), companyCode(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req app.CreateSupplierRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyCode = companyCode(r)
	supplier, err := h.svc.CreateSupplier(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, supplier)
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	supplier, err := h.svc.GetSupplier(r.Context(), companyCode(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, supplier)
}

// ── Bills ─────────────────────────────────────────────────────────────────────

// createBill handles POST /bills and returns {bill_id}.
func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	var req app.CreateBillRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyCode = companyCode(r)
	result, err := h.svc.CreateBill(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, result)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	bill, err := h.svc.GetBill(r.Context(), companyCode(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, bill)
}

// listBills handles GET /bills?supplier_id=&status=.
func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := queryInt(w, r, "supplier_id")
	if !ok {
		return
	}
	filter := core.BillFilter{
		SupplierID: supplierID,
		Status:     core.BillStatus(r.URL.Query().Get("status")),
	}
	result, err := h.svc.ListBills(r.Context(), companyCode(r), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// postBill handles POST /bills/{id}/post and POST /bills/post with {bill_id}.
func (h *Handler) postBill(w http.ResponseWriter, r *http.Request) {
	var billID int
	if chi.URLParam(r, "id") != "" {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		billID = id
	} else {
		var req struct {
			BillID int `json:"bill_id"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.BillID <= 0 {
			writeError(w, r, "bill_id: is required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		billID = req.BillID
	}

	result, err := h.svc.PostBill(r.Context(), companyCode(r), billID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) cancelBill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.CancelBill(r.Context(), companyCode(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, struct{}{})
}

// ── Payments ──────────────────────────────────────────────────────────────────

// createPayment handles POST /payments and returns {payment_id, amount, journal_id, ...}.
func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyCode = companyCode(r)
	result, err := h.svc.CreatePayment(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, result)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	payment, err := h.svc.GetPayment(r.Context(), companyCode(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, payment)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := queryInt(w, r, "supplier_id")
	if !ok {
		return
	}
	result, err := h.svc.ListPayments(r.Context(), companyCode(r), supplierID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// ── Vendor credits ────────────────────────────────────────────────────────────

func (h *Handler) createVendorCredit(w http.ResponseWriter, r *http.Request) {
	var req app.CreateVendorCreditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyCode = companyCode(r)
	result, err := h.svc.CreateVendorCredit(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, result)
}

// applyVendorCredit handles POST /vendor-credits/{id}/apply and
// POST /vendor-credits/apply with credit_id in the body.
func (h *Handler) applyVendorCredit(w http.ResponseWriter, r *http.Request) {
	var req app.ApplyVendorCreditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if chi.URLParam(r, "id") != "" {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		req.CreditID = id
	}
	if req.CreditID <= 0 {
		writeError(w, r, "credit_id: is required", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}
	req.CompanyCode = companyCode(r)
	result, err := h.svc.ApplyVendorCredit(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getVendorCredit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	credit, err := h.svc.GetVendorCredit(r.Context(), companyCode(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, credit)
}

func (h *Handler) listVendorCredits(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := queryInt(w, r, "supplier_id")
	if !ok {
		return
	}
	result, err := h.svc.ListVendorCredits(r.Context(), companyCode(r), supplierID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) cancelVendorCredit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.CancelVendorCredit(r.Context(), companyCode(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, struct{}{})
}
