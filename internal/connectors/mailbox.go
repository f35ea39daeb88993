package connectors

import "sync"

// Mailbox is a bounded FIFO between a socket reader and its processor.
// Push never blocks: when full the oldest item is evicted.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	size   int
	notify chan struct{}
}

// NewMailbox creates a mailbox holding up to capacity items.
func NewMailbox[T any](capacity int) *Mailbox[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Mailbox[T]{items: make([]T, capacity), notify: make(chan struct{}, 1)}
}

// Push appends v and reports whether an older item was dropped to fit it.
func (m *Mailbox[T]) Push(v T) (dropped bool) {
	m.mu.Lock()
	c := len(m.items)
	if m.size == c {
		var zero T
		m.items[m.head] = zero
		m.head = (m.head + 1) % c
		m.size--
		dropped = true
	}
	m.items[(m.head+m.size)%c] = v
	m.size++
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return dropped
}

// Pop removes the oldest item.
func (m *Mailbox[T]) Pop() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if m.size == 0 {
		return zero, false
	}
	v := m.items[m.head]
	m.items[m.head] = zero
	m.head = (m.head + 1) % len(m.items)
	m.size--
	return v, true
}

// Ready is signalled after a Push. Drain with Pop until it reports false.
func (m *Mailbox[T]) Ready() <-chan struct{} { return m.notify }

// Len reports the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}
