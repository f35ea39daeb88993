package client

import "errors"

var (
	// ErrNilRenderer is returned when no renderer is supplied.
	ErrNilRenderer = errors.New("client: renderer is required")
	// ErrInvalidURL is returned for a stream URL without scheme or host.
	ErrInvalidURL = errors.New("client: invalid stream url")
)
