package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Writer emits events on an HTTP response. After Close, or after the first
// failed write, Send becomes a silent no-op.
type Writer struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	closed bool
}

// NewWriter sets the event-stream headers, commits the 200 status and
// flushes so the client sees the stream open immediately.
func NewWriter(w http.ResponseWriter) *Writer {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sw := &Writer{w: w, rc: http.NewResponseController(w)}
	_ = sw.rc.Flush()
	return sw
}

// Send writes one event and flushes it.
func (s *Writer) Send(ev Event) error {
	return s.send(ev, 0)
}

// SendWithDeadline is Send bounded by a write deadline, when the underlying
// connection supports one.
func (s *Writer) SendWithDeadline(ev Event, d time.Duration) error {
	return s.send(ev, d)
}

func (s *Writer) send(ev Event, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	frame, _ := ev.MarshalText()
	if d > 0 {
		_ = s.rc.SetWriteDeadline(time.Now().Add(d))
	}
	if _, err := s.w.Write(frame); err != nil {
		s.closed = true
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := s.rc.Flush(); err != nil {
		s.closed = true
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// Close marks the writer closed. It is safe to call more than once.
func (s *Writer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether further sends are discarded.
func (s *Writer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
