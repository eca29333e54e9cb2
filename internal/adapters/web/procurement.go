package web

import (
	"net/http"

	"ap-settlement/internal/app"
)

// ── Purchase orders ───────────────────────────────────────────────────────────

func (h *Handler) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePurchaseOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyCode = companyCode(r)
	po, err := h.svc.CreatePurchaseOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, po)
}

func (h *Handler) getPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	po, err := h.svc.GetPurchaseOrder(r.Context(), companyCode(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, po)
}

// listPurchaseOrders handles GET /purchase-orders?status=.
func (h *Handler) listPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListPurchaseOrders(r.Context(), companyCode(r), r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) approvePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	po, err := h.svc.ApprovePurchaseOrder(r.Context(), companyCode(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, po)
}

func (h *Handler) cancelPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.CancelPurchaseOrder(r.Context(), companyCode(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, struct{}{})
}

// ── Goods receipts ────────────────────────────────────────────────────────────

func (h *Handler) receiveGoods(w http.ResponseWriter, r *http.Request) {
	var req app.ReceiveGoodsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyCode = companyCode(r)
	grn, err := h.svc.ReceiveGoods(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, grn)
}

func (h *Handler) getGoodsReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	grn, err := h.svc.GetGoodsReceipt(r.Context(), companyCode(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, grn)
}

// listGoodsReceipts handles GET /goods-receipts?po_id=.
func (h *Handler) listGoodsReceipts(w http.ResponseWriter, r *http.Request) {
	poID, ok := queryInt(w, r, "po_id")
	if !ok {
		return
	}
	result, err := h.svc.ListGoodsReceipts(r.Context(), companyCode(r), poID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) cancelGoodsReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.CancelGoodsReceipt(r.Context(), companyCode(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, struct{}{})
}

// ── Three-way match ───────────────────────────────────────────────────────────

// matchableLines handles GET /match/lines?supplier_id= and returns
// {po_lines, grn_lines, bill_lines} annotated with qty_available.
func (h *Handler) matchableLines(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := queryInt(w, r, "supplier_id")
	if !ok {
		return
	}
	if supplierID == 0 {
		writeError(w, r, "supplier_id: is required", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}
	lines, err := h.svc.GetMatchableLines(r.Context(), companyCode(r), supplierID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, lines)
}

// applyMatches handles POST /match with {matches:[...]} and returns {inserted, errors}.
func (h *Handler) applyMatches(w http.ResponseWriter, r *http.Request) {
	var req app.ApplyMatchesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyCode = companyCode(r)
	result, err := h.svc.ApplyMatches(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) listMatchLinks(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := queryInt(w, r, "supplier_id")
	if !ok {
		return
	}
	result, err := h.svc.ListMatchLinks(r.Context(), companyCode(r), supplierID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
