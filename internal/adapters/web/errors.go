package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"ap-settlement/internal/app"
	"ap-settlement/internal/core"
)

type errorResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeOK(w, http.StatusOK, v)
}

// writeOK encodes v with "ok":true merged into the top-level object. Values
// that do not encode as an object are placed under "data".
func writeOK(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"ok":false,"error":"internal error, please retry","code":"INTERNAL_ERROR"}` + "\n"))
		return
	}

	var out bytes.Buffer
	switch {
	case bytes.Equal(body, []byte("{}")):
		out.WriteString(`{"ok":true}`)
	case len(body) > 0 && body[0] == '{':
		out.WriteString(`{"ok":true,`)
		out.Write(body[1:])
	default:
		out.WriteString(`{"ok":true,"data":`)
		out.Write(body)
		out.WriteByte('}')
	}
	out.WriteByte('\n')

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(out.Bytes())
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string // empty means err.Error() is safe to show
}

var errorMappings = []errorMapping{
	{core.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{core.ErrDuplicateBill, http.StatusConflict, "DUPLICATE_BILL", "Duplicate bill detected"},
	{core.ErrInsufficientPermission, http.StatusForbidden, "INSUFFICIENT_PERMISSION", "insufficient permission"},
	{core.ErrOverAllocation, http.StatusUnprocessableEntity, "OVER_ALLOCATION", "Allocations exceed credit total"},
	{core.ErrBillOverAllocated, http.StatusUnprocessableEntity, "BILL_OVER_ALLOCATED", ""},
	{core.ErrEmptyAllocation, http.StatusUnprocessableEntity, "EMPTY_ALLOCATION", "Allocation total must be greater than zero"},
	{core.ErrEmptyPayment, http.StatusUnprocessableEntity, "EMPTY_PAYMENT", "Payment amount must be greater than zero"},
	{core.ErrAlreadyApplied, http.StatusConflict, "ALREADY_APPLIED", "Vendor credit already applied"},
	{core.ErrOverMatch, http.StatusConflict, "OVER_MATCH", ""},
	{core.ErrNotFound, http.StatusNotFound, "NOT_FOUND", ""},
	{core.ErrInvalidState, http.StatusConflict, "INVALID_STATE", ""},
	{app.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED", "invalid username or password"},
}

// writeServiceError classifies err and writes the matching response. Anything
// unclassified is logged with its cause and surfaced generically.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			writeError(w, r, msg, m.code, m.status)
			return
		}
	}
	h.log.Error().Err(err).
		Str("request_id", requestIDFromContext(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, r, "internal error, please retry", "INTERNAL_ERROR", http.StatusInternalServerError)
}
