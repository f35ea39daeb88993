// Package dedupe provides bounded seen-ID sets for connector deduplication.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

const (
	defaultMaxSize    = 5000
	defaultPruneRatio = 0.2
)

// Deduper records source-native IDs a connector has already processed.
type Deduper interface {
	// SeenAndRecord reports whether id was already present and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	Size() int64
}

// node is an entry of the insertion-ordered list.
type node struct {
	id         string
	prev, next *node
}

func (n *node) reset() {
	n.id = ""
	n.prev = nil
	n.next = nil
}

// inMemoryDeduper keeps IDs in insertion order. When an insert pushes it over
// maxSize the oldest pruneRatio share is discarded in one pass.
type inMemoryDeduper struct {
	mu         sync.Mutex
	seen       map[string]*node
	oldest     *node
	newest     *node
	maxSize    int
	pruneRatio float64
	size       atomic.Int64
	nodePool   sync.Pool
}

// NewInMemoryDeduper creates a bounded seen-set. A non-positive max size
// disables eviction.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize:    defaultMaxSize,
		pruneRatio: defaultPruneRatio,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*node)
	d.nodePool = sync.Pool{New: func() interface{} { return &node{} }}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}

	n := d.nodePool.Get().(*node)
	n.id = id
	n.prev = d.newest
	if d.newest != nil {
		d.newest.next = n
	} else {
		d.oldest = n
	}
	d.newest = n
	d.seen[id] = n
	d.size.Add(1)

	if d.maxSize > 0 && len(d.seen) > d.maxSize {
		d.prune()
	}
	return false
}

// prune drops the oldest entries. It removes at least one, at least enough
// to get back under capacity, and never the newest. Caller holds d.mu.
func (d *inMemoryDeduper) prune() {
	size := len(d.seen)
	drop := int(float64(d.maxSize) * d.pruneRatio)
	if over := size - d.maxSize; drop < over {
		drop = over
	}
	if drop < 1 {
		drop = 1
	}
	if drop > size-1 {
		drop = size - 1
	}
	for i := 0; i < drop && d.oldest != nil; i++ {
		d.unlink(d.oldest)
	}
}

// unlink removes n from the list and map. Caller holds d.mu.
func (d *inMemoryDeduper) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		d.oldest = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		d.newest = n.prev
	}
	delete(d.seen, n.id)
	n.reset()
	d.nodePool.Put(n)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
