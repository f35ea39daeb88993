package sse

import "errors"

var (
	ErrWrite       = errors.New("sse: write failed")
	ErrStatus      = errors.New("sse: unexpected status")
	ErrNotStream   = errors.New("sse: response is not an event stream")
	ErrLineTooLong = errors.New("sse: line exceeds limit")
)
