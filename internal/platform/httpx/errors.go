package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Sentinel errors re-exported for handlers.
var (
	ErrNotFound   = shared.ErrNotFound
	ErrDuplicate  = shared.ErrDuplicate
	ErrValidation = shared.ErrValidation
	ErrForbidden  = errors.New("forbidden")
	ErrTenant     = errors.New("tenant required")
)

// StatusOf maps an error kind to an HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrPrecondition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrIdempotencyConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTenant):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to the failure envelope. Internal errors
// never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		Fail(w, status, shared.CodeOf(err), "internal error")
		return
	}
	code := shared.CodeOf(err)
	if errors.Is(err, ErrTenant) {
		code = "TENANT_REQUIRED"
	}
	Fail(w, status, code, err.Error())
}

// WriteError logs server-side failures for op and writes the failure envelope.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	if StatusOf(err) >= http.StatusInternalServerError && logger != nil {
		logger.ErrorContext(r.Context(), op, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	RespondError(w, err)
}
