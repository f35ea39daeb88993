package llm

import "errors"

var (
	// ErrMissingAPIKey means no key was configured.
	ErrMissingAPIKey = errors.New("anthropic: api key is required")
	// ErrStatus wraps a non-2xx response.
	ErrStatus = errors.New("anthropic: unexpected status")
	// ErrEmptyResponse means the reply carried no text block.
	ErrEmptyResponse = errors.New("anthropic: empty response")
)
