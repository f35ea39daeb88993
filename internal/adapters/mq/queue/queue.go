// Package queue holds classified posts waiting for Tier 2 scoring.
package queue

import (
	"context"
	"sync"

	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/pkg/metrics"
)

const defaultQueueCapacity = 1000

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a post. It fails with ErrFull or ErrStopped without blocking.
	Enqueue(ctx context.Context, p model.Post) error

	// Dequeue returns the channel posts are delivered on. It is closed by
	// Close once every pending post has been received.
	Dequeue() <-chan model.Post

	Len() int

	// Close stops accepting posts. Pending posts stay readable.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	posts    chan model.Post
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.posts = make(chan model.Post, q.capacity)
	metrics.UpdateScorerQueueSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, p model.Post) error { //nolint:gocritic // hugeParam: posts travel by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrStopped
	}
	select {
	case q.posts <- p:
		metrics.UpdateScorerQueueSize(len(q.posts))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

func (q *InMemoryQueue) Dequeue() <-chan model.Post {
	return q.posts
}

func (q *InMemoryQueue) Len() int {
	n := len(q.posts)
	metrics.UpdateScorerQueueSize(n)
	return n
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.posts)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
