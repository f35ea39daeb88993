package repository

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/pkg/logger"
	"github.com/okian/lobstream/pkg/metrics"
)

const redisTimeout = 5 * time.Second

// RedisStore keeps the event log in a Redis stream. It trims with
// XADD MAXLEN ~ by default, or with a follow-up XTRIM when exact trim is set.
type RedisStore struct {
	client *goredis.Client
	key    string
	maxLen int64
	approx bool
	logger logger.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *goredis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		key:    defaultKey,
		maxLen: defaultCapacity,
		approx: true,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DialRedis connects to redisURL and verifies the server answers PING.
func DialRedis(ctx context.Context, redisURL string, opts ...RedisOption) (*RedisStore, error) {
	ropts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse redis url: %w", ErrUnavailable, err)
	}
	ropts.DialTimeout = redisTimeout
	ropts.ReadTimeout = redisTimeout
	ropts.WriteTimeout = redisTimeout

	s := NewRedisStore(goredis.NewClient(ropts), opts...)
	if err := s.Ping(ctx); err != nil {
		_ = s.client.Close()
		return nil, err
	}
	return s, nil
}

func (s *RedisStore) Append(ctx context.Context, fields map[string]string) (string, error) {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	args := &goredis.XAddArgs{
		Stream: s.key,
		ID:     "*",
		Values: values,
	}
	if s.approx {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		metrics.RecordLogAppend("error")
		return "", fmt.Errorf("%w: xadd: %w", ErrUnavailable, err)
	}
	// Exact trim runs as its own XTRIM; "XADD MAXLEN =" is not accepted everywhere.
	// The entry is already stored, so a failed trim only lets the stream run
	// long until the next append trims it.
	if !s.approx {
		if err := s.client.XTrimMaxLen(ctx, s.key, s.maxLen).Err(); err != nil {
			s.logger.Warn(ctx, "trim event log", logger.String("id", id), logger.Error(err))
		}
	}
	metrics.RecordLogAppend("ok")
	return id, nil
}

// ReadRange reads from afterID inclusively and drops the cursor entry itself,
// which yields strictly-after semantics on every Redis version.
func (s *RedisStore) ReadRange(ctx context.Context, afterID string, limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	start := "-"
	if !IsEarliest(afterID) {
		after, err := ParseID(afterID)
		if err != nil {
			return nil, err
		}
		afterID = after.String()
		start = afterID
	}

	msgs, err := s.client.XRangeN(ctx, s.key, start, "+", int64(limit+1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: xrange: %w", ErrUnavailable, err)
	}
	out := make([]model.LogEntry, 0, len(msgs))
	for _, m := range msgs {
		if start != "-" && m.ID == afterID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, toEntry(m))
	}
	return out, nil
}

func (s *RedisStore) ReadRecent(ctx context.Context, count int) ([]model.LogEntry, error) {
	if count <= 0 {
		return []model.LogEntry{}, nil
	}
	msgs, err := s.client.XRevRangeN(ctx, s.key, "+", "-", int64(count)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: xrevrange: %w", ErrUnavailable, err)
	}
	out := make([]model.LogEntry, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = toEntry(m)
	}
	return out, nil
}

func (s *RedisStore) Len(ctx context.Context) (int64, error) {
	n, err := s.client.XLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: xlen: %w", ErrUnavailable, err)
	}
	metrics.UpdateLogLength(n)
	return n, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func toEntry(m goredis.XMessage) model.LogEntry {
	fields := make(map[string]string, len(m.Values))
	for k, v := range m.Values {
		switch t := v.(type) {
		case string:
			fields[k] = t
		case nil:
			fields[k] = ""
		default:
			fields[k] = fmt.Sprint(t)
		}
	}
	return model.LogEntry{ID: m.ID, Fields: fields}
}
