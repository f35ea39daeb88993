package connectors

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is a connector lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Handle controls one started connector. Stop is idempotent and waits for
// every goroutine the connector launched.
type Handle struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	state  atomic.Int32
	once   sync.Once
	done   chan struct{}
}

// NewHandle creates a running handle whose goroutines stop with parent.
func NewHandle(parent context.Context, name string) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{name: name, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	h.state.Store(int32(StateRunning))
	return h
}

// Go runs fn on a goroutine tied to the handle's context.
func (h *Handle) Go(fn func(ctx context.Context)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn(h.ctx)
	}()
}

// Name returns the connector name.
func (h *Handle) Name() string { return h.name }

// State reports the current lifecycle state.
func (h *Handle) State() State { return State(h.state.Load()) }

// Done is closed once Stop has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Stop cancels timers and sockets and waits for them to exit.
func (h *Handle) Stop() {
	h.once.Do(func() {
		h.state.Store(int32(StateStopping))
		h.cancel()
		h.wg.Wait()
		h.state.Store(int32(StateStopped))
		close(h.done)
	})
	<-h.done
}
