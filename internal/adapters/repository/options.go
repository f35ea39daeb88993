package repository

import (
	"time"

	"github.com/okian/lobstream/pkg/logger"
)

const (
	defaultCapacity = 500
	defaultKey      = "lobstream:firehose"
)

// Option applies a configuration option to the RingStore.
type Option func(*RingStore)

// WithCapacity sets the maximum number of retained entries.
func WithCapacity(n int) Option {
	return func(s *RingStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock replaces the wall clock used to mint ids.
func WithClock(now func() time.Time) Option {
	return func(s *RingStore) {
		if now != nil {
			s.now = now
		}
	}
}

// RedisOption applies a configuration option to the RedisStore.
type RedisOption func(*RedisStore)

// WithStreamKey sets the Redis stream key.
func WithStreamKey(key string) RedisOption {
	return func(s *RedisStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithMaxLen sets the MAXLEN trim bound.
func WithMaxLen(n int) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxLen = int64(n)
		}
	}
}

// WithExactTrim disables approximate (~) trimming.
func WithExactTrim() RedisOption {
	return func(s *RedisStore) {
		s.approx = false
	}
}

// WithRedisLogger sets the logger used for trim failures.
func WithRedisLogger(l logger.Logger) RedisOption {
	return func(s *RedisStore) {
		if l != nil {
			s.logger = l
		}
	}
}
