package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tvmmachans/Customo/internal/auth"
	"github.com/tvmmachans/Customo/internal/catalog"
	"github.com/tvmmachans/Customo/internal/commerce"
	"github.com/tvmmachans/Customo/internal/device"
	"github.com/tvmmachans/Customo/internal/ticket"
	"github.com/tvmmachans/Customo/internal/validation"
)

// envelope is the body of every REST response.
type envelope struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message,omitempty"`
	Data    any                     `json:"data,omitempty"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
}

// Common response messages.
const (
	msgInternal     = "Internal server error"
	msgInvalidJSON  = "Invalid JSON body"
	msgTokenMissing = "Access token required"
	msgTokenInvalid = "Invalid token"
	msgTokenExpired = "Token expired"
	msgForbidden    = "Insufficient permissions"
	msgValidation   = "Validation failed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeData writes a successful envelope.
func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// writeError writes a failed envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// writeValidationErrors writes a 400 envelope listing every rejected field.
func writeValidationErrors(w http.ResponseWriter, err error) {
	fields := validation.Fields(err)
	message := msgValidation
	if len(fields) <= 1 {
		message = err.Error()
	}
	writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: message, Errors: fields})
}

type errorMapping struct {
	target  error
	status  int
	message string
}

// errorTable maps domain sentinels to responses. The first match wins.
var errorTable = []errorMapping{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{auth.ErrTokenExpired, http.StatusUnauthorized, msgTokenExpired},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, msgTokenInvalid},
	{auth.ErrUserInactive, http.StatusUnauthorized, "Account is deactivated"},
	{auth.ErrForbidden, http.StatusForbidden, msgForbidden},
	{auth.ErrSelfModification, http.StatusBadRequest, "Cannot modify your own account in this way"},

	{device.ErrDeviceNotFound, http.StatusNotFound, "Device not found"},
	{catalog.ErrProductNotFound, http.StatusNotFound, "Product not found"},
	{commerce.ErrOrderNotFound, http.StatusNotFound, "Order not found"},
	{commerce.ErrCartItemNotFound, http.StatusNotFound, "Cart item not found"},
	{ticket.ErrTicketNotFound, http.StatusNotFound, "Service ticket not found"},
	{auth.ErrUserNotFound, http.StatusNotFound, "User not found"},

	{auth.ErrEmailExists, http.StatusConflict, "User already exists with this email"},
	{catalog.ErrDuplicateReview, http.StatusConflict, "You have already reviewed this product"},
	{ticket.ErrStatusConflict, http.StatusConflict, "Service ticket was updated by another request"},
}

// classify returns the status and client-facing message for err.
// ok is false for unexpected errors.
func classify(err error) (status int, message string, ok bool) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, m.message, true
		}
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "Request body too large", true
	}
	return http.StatusInternalServerError, msgInternal, false
}

// writeServiceError maps an error returned by a domain service onto the
// envelope. Unexpected errors are logged with the request id; their text
// reaches the client only outside production.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, validation.ErrInvalid) {
		writeValidationErrors(w, err)
		return
	}

	status, message, ok := classify(err)
	if ok {
		writeError(w, status, message)
		return
	}

	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestIDFrom(r.Context()),
		"error", err,
	)
	resp := envelope{Success: false, Message: msgInternal}
	if !s.cfg.IsProduction() {
		resp.Errors = []validation.FieldError{{Message: err.Error()}}
	}
	writeJSON(w, status, resp)
}
