package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

const (
	// ErrRateLimitExceeded signals a rejected request (429).
	ErrRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// ErrResourceNotFound signals a missing wishlist or customer (404).
	ErrResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	// ErrValidationInvalidJSON signals an unparseable request body (400).
	ErrValidationInvalidJSON ErrorCode = "VALIDATION_INVALID_JSON"

	// ErrValidationFailed signals a request the backend rejected (4xx).
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"

	// ErrSystemInternal signals an unexpected server failure (500).
	ErrSystemInternal ErrorCode = "SYSTEM_INTERNAL"

	// ErrSystemUnavailable signals a dependency outage (503).
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"
)

// Error is a structured API error.
type Error struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	status    int
}

// ErrorResponse is the top-level error response wrapper.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// NewError creates a structured API error.
func NewError(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

// WithDetails attaches extra fields to the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code.
func (e *Error) Status() int {
	return e.status
}

// RateLimited creates a rate limit exceeded error.
func RateLimited(message string) *Error {
	if message == "" {
		message = "Rate limit exceeded - too many requests"
	}
	return NewError(ErrRateLimitExceeded, message, http.StatusTooManyRequests)
}

// NotFound creates a resource not found error.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return NewError(ErrResourceNotFound, message, http.StatusNotFound)
}

// InvalidJSON creates an unparseable body error.
func InvalidJSON(message string) *Error {
	if message == "" {
		message = "Request body is not valid JSON"
	}
	return NewError(ErrValidationInvalidJSON, message, http.StatusBadRequest)
}

// Internal creates an internal server error.
func Internal(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return NewError(ErrSystemInternal, message, http.StatusInternalServerError)
}

// Unavailable creates a dependency outage error.
func Unavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return NewError(ErrSystemUnavailable, message, http.StatusServiceUnavailable)
}

// WriteError writes a structured error response. The request ID is taken
// from the request context when present.
func WriteError(w http.ResponseWriter, r *http.Request, err *Error) {
	if id := GetRequestID(r.Context()); id != "" {
		err.RequestID = id
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}
