package scoring

import "errors"

var (
	// ErrNoArray means the reply contained no JSON array.
	ErrNoArray = errors.New("scoring: no JSON array in reply")
	// ErrNotArray means the extracted JSON was not an array.
	ErrNotArray = errors.New("scoring: reply is not an array")
	// ErrMalformed means the extracted array could not be decoded.
	ErrMalformed = errors.New("scoring: malformed reply")
	// ErrCompletion wraps backend failures.
	ErrCompletion = errors.New("scoring: completion failed")
)
