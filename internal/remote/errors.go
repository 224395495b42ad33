package remote

import (
	"errors"
	"fmt"
)

// ErrorCategory determines how a remote failure should be handled: retried
// through the reconnect path, or surfaced to the caller.
type ErrorCategory int

const (
	// Recoverable failures are transient: 5xx, timeouts, network errors.
	Recoverable ErrorCategory = iota
	// Irrecoverable failures will not succeed on retry: 4xx except 408/429.
	Irrecoverable
)

func (c ErrorCategory) String() string {
	switch c {
	case Recoverable:
		return "recoverable"
	case Irrecoverable:
		return "irrecoverable"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// APIError wraps a remote service failure with its classification.
type APIError struct {
	Category   ErrorCategory
	StatusCode int
	Operation  string
	Body       string
	Underlying error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote: %s: HTTP %d (%s)", e.Operation, e.StatusCode, e.Category)
	}
	return fmt.Sprintf("remote: %s: %v (%s)", e.Operation, e.Underlying, e.Category)
}

func (e *APIError) Unwrap() error { return e.Underlying }

// NewHTTPError classifies a non-2xx response.
func NewHTTPError(operation string, statusCode int, body string) *APIError {
	return &APIError{
		Category:   categoryFor(statusCode),
		StatusCode: statusCode,
		Operation:  operation,
		Body:       body,
		Underlying: fmt.Errorf("%s: status %d", operation, statusCode),
	}
}

// NewNetworkError classifies a transport-level failure. Always recoverable.
func NewNetworkError(operation string, err error) *APIError {
	return &APIError{
		Category:   Recoverable,
		Operation:  operation,
		Underlying: err,
	}
}

func categoryFor(statusCode int) ErrorCategory {
	switch {
	case statusCode == 408 || statusCode == 429:
		return Recoverable
	case statusCode >= 400 && statusCode < 500:
		return Irrecoverable
	default:
		return Recoverable
	}
}

// IsIrrecoverable reports whether err should not be retried.
func IsIrrecoverable(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Category == Irrecoverable
	}
	return false
}

// IsAuthError reports whether err is an authentication failure (401/403).
func IsAuthError(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == 401 || ae.StatusCode == 403
	}
	return false
}
