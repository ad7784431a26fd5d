package origin

import (
	"errors"
	"fmt"
)

// Sentinel errors for origin failures.
var (
	// ErrNotFound indicates the origin has no document at the requested
	// path. Callers map this to their own not-found handling instead of
	// retrying or caching.
	ErrNotFound = errors.New("origin resource not found")

	// ErrRetryExhausted indicates all retry attempts failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled indicates the request context was cancelled.
	ErrContextCancelled = errors.New("context cancelled")
)

// Error represents a failed origin request with classification.
type Error struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("origin %s error: %s", e.ErrorClass, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("origin %s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// classOf extracts the error class from err, or ErrorClassNetwork when
// err carries no classification.
func classOf(err error) ErrorClass {
	var originErr *Error
	if errors.As(err, &originErr) {
		return originErr.ErrorClass
	}
	return ErrorClassNetwork
}

// shouldRetry determines whether an error class warrants a retry.
// Client errors are deterministic and never retried.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
