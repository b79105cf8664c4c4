package resilience

import (
	"errors"
	"net"
)

// TransientError marks an upstream failure worth retrying. The clients wrap
// retryable HTTP statuses in it before returning from a single attempt.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient, recording the HTTP status when
// one was involved (zero otherwise).
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient reports whether err deserves another attempt: an explicit
// TransientError anywhere in the chain, or a network timeout. Everything
// else fails fast — the clients classify HTTP statuses themselves via
// IsTransientHTTPStatus before wrapping.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsTransientHTTPStatus reports whether an upstream status is retryable:
// throttling and server-side failures. Client errors (403 bad key, 404
// missing region) are permanent for the life of the request.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
