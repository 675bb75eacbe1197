package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"digipet-api/internal/middleware"
	"digipet-api/internal/service"
	"digipet-api/pkg/apierror"
	"digipet-api/pkg/response"
)

// toAPIError translates a domain error into its HTTP form.
func toAPIError(err error) *apierror.Error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return apierror.BadRequest(strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": "))
	case errors.Is(err, service.ErrNotFound):
		return apierror.NotFound("pet not found")
	case errors.Is(err, service.ErrUnauthorized):
		return apierror.Forbidden("pet is not owned by caller")
	case errors.Is(err, service.ErrConflict):
		return apierror.Conflict("pet already owned")
	case errors.Is(err, service.ErrLedgerRejected):
		return apierror.LedgerRejected("mint rejected by ledger")
	case errors.Is(err, service.ErrLedgerTimedOut):
		return apierror.LedgerTimeout("mint not confirmed in time")
	case errors.Is(err, service.ErrLedger):
		return apierror.LedgerUnavailable("ledger unavailable")
	case errors.Is(err, service.ErrCancelled):
		return apierror.ServiceUnavailable("adoption cancelled")
	case errors.Is(err, service.ErrTransient):
		return apierror.ServiceUnavailable("")
	default:
		return apierror.InternalError("")
	}
}

// writeError logs server-side failures and writes the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	apiErr := toAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		log.Error("request failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"path", r.URL.Path,
			"status", apiErr.StatusCode,
			"error", err)
	}
	response.Error(w, apiErr)
}
