package apierror

import (
	"encoding/json"
	"net/http"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error"`
}

// New creates an error with an explicit status and code. An empty message
// falls back to the status text.
func New(status int, code, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{StatusCode: status, Code: code, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// WithDetails adds field-level error details.
func (e *Error) WithDetails(details ...FieldError) *Error {
	e.Details = details
	return e
}

// ToJSON converts the error to its response body.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(envelope{Success: false, Error: e})
	return data
}

// BadRequest creates a 400 error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, "BAD_REQUEST", message)
}

// ValidationError creates a 400 error with field details.
func ValidationError(message string, details ...FieldError) *Error {
	return New(http.StatusBadRequest, "VALIDATION_ERROR", message).WithDetails(details...)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *Error {
	return New(http.StatusForbidden, "FORBIDDEN", message)
}

// NotFound creates a 404 error.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, "NOT_FOUND", message)
}

// Conflict creates a 409 error.
func Conflict(message string) *Error {
	return New(http.StatusConflict, "CONFLICT", message)
}

// LedgerRejected creates a 422 error for a mint the ledger refused.
func LedgerRejected(message string) *Error {
	return New(http.StatusUnprocessableEntity, "LEDGER_REJECTED", message)
}

// InternalError creates a 500 error.
func InternalError(message string) *Error {
	return New(http.StatusInternalServerError, "INTERNAL_ERROR", message)
}

// LedgerUnavailable creates a 502 error for a ledger transport failure.
func LedgerUnavailable(message string) *Error {
	return New(http.StatusBadGateway, "LEDGER_ERROR", message)
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *Error {
	return New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message)
}

// LedgerTimeout creates a 504 error for an unconfirmed mint.
func LedgerTimeout(message string) *Error {
	return New(http.StatusGatewayTimeout, "LEDGER_TIMEOUT", message)
}
