// Package repository implements the bounded append-only event log.
package repository

import (
	"context"

	"github.com/okian/lobstream/internal/domain/model"
)

// Earliest is the cursor that reads from the oldest retained entry.
const Earliest = "0-0"

// Store is the shared event log every connector writes to and every stream
// connection reads from. Implementations are safe for concurrent use.
type Store interface {
	// Append stores fields under the next monotonic id and trims the log to
	// its capacity from the oldest end.
	Append(ctx context.Context, fields map[string]string) (string, error)

	// ReadRange returns up to limit entries with id strictly greater than
	// afterID, ascending. Earliest means from the start of what is retained.
	ReadRange(ctx context.Context, afterID string, limit int) ([]model.LogEntry, error)

	// ReadRecent returns the newest count entries, oldest first.
	ReadRecent(ctx context.Context, count int) ([]model.LogEntry, error)

	// Len reports the number of retained entries.
	Len(ctx context.Context) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
