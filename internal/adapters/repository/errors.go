package repository

import "errors"

// Sentinel kinds for event log errors.
var (
	ErrInvalidID    = errors.New("invalid stream id")
	ErrInvalidLimit = errors.New("invalid read limit")
	ErrClosed       = errors.New("event log closed")
	ErrUnavailable  = errors.New("event log unavailable")
)
