package connectors

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited marks a 429 (or platform equivalent) response.
	ErrRateLimited = errors.New("connectors: rate limited")
	// ErrStatus marks any other non-2xx response.
	ErrStatus = errors.New("connectors: unexpected status")
	// ErrMalformed marks a body that could not be decoded.
	ErrMalformed = errors.New("connectors: malformed response")
	// ErrUnknownSource is returned by the registry for unregistered names.
	ErrUnknownSource = errors.New("connectors: unknown source")
)

// StatusError carries the HTTP status of a failed upstream call.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("connectors: %s returned %d", e.URL, e.Code)
}

// StatusCode returns the upstream HTTP status.
func (e *StatusError) StatusCode() int { return e.Code }

// Unwrap maps 429 to ErrRateLimited and everything else to ErrStatus.
func (e *StatusError) Unwrap() error {
	if e.Code == 429 {
		return ErrRateLimited
	}
	return ErrStatus
}

// errorKind labels an error for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrStatus):
		return "status"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "transport"
	}
}
