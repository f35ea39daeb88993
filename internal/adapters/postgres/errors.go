package postgres

import "errors"

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("postgres: not found")
	// ErrNotConfigured means no database URL was provided.
	ErrNotConfigured = errors.New("postgres: database not configured")
	// ErrQuery wraps driver failures.
	ErrQuery = errors.New("postgres: query failed")
)
