package metrics

import (
	"errors"
)

var (
	// ErrGatherFailed is returned when the registry cannot be gathered.
	ErrGatherFailed = errors.New("metrics gather failed")
)
