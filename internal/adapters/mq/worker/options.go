package worker

import (
	"time"

	"github.com/okian/lobstream/internal/domain/scoring"
	"github.com/okian/lobstream/pkg/logger"
)

// Option applies a configuration option to the BatchScorer.
type Option func(*BatchScorer)

// WithBatchSize sets how many posts trigger an immediate flush.
func WithBatchSize(n int) Option {
	return func(b *BatchScorer) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithFlushInterval sets the periodic flush for partial batches.
func WithFlushInterval(d time.Duration) Option {
	return func(b *BatchScorer) {
		if d > 0 {
			b.flushInterval = d
		}
	}
}

// WithPolicy sets the relevance gate.
func WithPolicy(p scoring.Policy) Option {
	return func(b *BatchScorer) {
		b.policy = p
	}
}

// WithClock replaces the wall clock used for ingestion timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *BatchScorer) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets a custom logger for the scorer.
func WithLogger(l logger.Logger) Option {
	return func(b *BatchScorer) {
		if l != nil {
			b.logger = l
		}
	}
}
