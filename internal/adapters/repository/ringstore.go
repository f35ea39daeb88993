package repository

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/pkg/metrics"
)

type ringEntry struct {
	id     ID
	key    string
	fields map[string]string
}

// RingStore is an in-process event log backed by a fixed-size circular
// buffer. Trimming is exact: the oldest entry is evicted on every append past
// capacity.
type RingStore struct {
	mu       sync.RWMutex
	capacity int
	buf      []ringEntry
	start    int
	count    int
	last     ID
	closed   bool
	now      func() time.Time
}

// NewRingStore creates an in-memory event log.
func NewRingStore(opts ...Option) *RingStore {
	s := &RingStore{
		capacity: defaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.buf = make([]ringEntry, s.capacity)
	return s
}

func (s *RingStore) at(i int) *ringEntry {
	return &s.buf[(s.start+i)%s.capacity]
}

// mint returns the next id; must be called with s.mu held.
func (s *RingStore) mint() ID {
	ms := uint64(s.now().UnixMilli())
	id := ID{Ms: ms}
	if !s.last.Less(id) {
		id = s.last.Next()
	}
	if id == (ID{}) {
		id = id.Next()
	}
	s.last = id
	return id
}

func (s *RingStore) Append(_ context.Context, fields map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		metrics.RecordLogAppend("error")
		return "", ErrClosed
	}

	id := s.mint()
	e := ringEntry{id: id, key: id.String(), fields: maps.Clone(fields)}
	if s.count < s.capacity {
		*s.at(s.count) = e
		s.count++
	} else {
		s.buf[s.start] = e
		s.start = (s.start + 1) % s.capacity
	}

	metrics.RecordLogAppend("ok")
	metrics.UpdateLogLength(int64(s.count))
	return e.key, nil
}

func (s *RingStore) ReadRange(_ context.Context, afterID string, limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	after, err := ParseID(afterID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	first := sort.Search(s.count, func(i int) bool { return after.Less(s.at(i).id) })
	n := s.count - first
	if n > limit {
		n = limit
	}
	return s.collect(first, n), nil
}

func (s *RingStore) ReadRecent(_ context.Context, count int) ([]model.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if count <= 0 {
		return []model.LogEntry{}, nil
	}
	if count > s.count {
		count = s.count
	}
	return s.collect(s.count-count, count), nil
}

// collect copies n entries from logical index first; caller holds s.mu.
func (s *RingStore) collect(first, n int) []model.LogEntry {
	out := make([]model.LogEntry, 0, n)
	for i := first; i < first+n; i++ {
		e := s.at(i)
		out = append(out, model.LogEntry{ID: e.key, Fields: maps.Clone(e.fields)})
	}
	return out
}

func (s *RingStore) Len(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(s.count), nil
}

func (s *RingStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *RingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
