package client

import (
	"net/http"
	"time"
)

const (
	defaultQueueSize  = 200
	defaultSeenWindow = 500
	defaultSeenPrune  = 200
	defaultSettle     = 300 * time.Millisecond
	defaultPace       = 4 * time.Second
)

// Option configures a Consumer.
type Option func(*Consumer)

// WithQueueSize bounds the pending render queue.
func WithQueueSize(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithSeenWindow sets how many recent event ids are remembered and how many
// of the oldest are discarded once the window overflows.
func WithSeenWindow(size, prune int) Option {
	return func(c *Consumer) {
		if size > 0 && prune > 0 && prune <= size {
			c.seen = newWindow(size, prune)
		}
	}
}

// WithSettle sets the delay between the connected acknowledgment and the
// backfill flush.
func WithSettle(d time.Duration) Option {
	return func(c *Consumer) {
		if d >= 0 {
			c.settle = d
		}
	}
}

// WithPace sets the steady-state render period.
func WithPace(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.pace = d
		}
	}
}

// WithSources restricts the stream to the given sources.
func WithSources(sources ...string) Option {
	return func(c *Consumer) { c.sources = append(c.sources, sources...) }
}

// WithTopics restricts the stream to posts carrying any of the topics.
func WithTopics(topics ...string) Option {
	return func(c *Consumer) { c.topics = append(c.topics, topics...) }
}

// WithHTTPClient overrides the HTTP client used for the stream.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Consumer) { c.http = hc }
}
