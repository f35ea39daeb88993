// Package sse encodes and decodes text/event-stream frames and provides a
// reconnecting subscriber that resumes with Last-Event-ID.
package sse

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// Event is one server-sent event.
type Event struct {
	ID    string
	Event string
	Data  string
	// Retry is the reconnection delay hint; zero means unset.
	Retry time.Duration
}

// Name returns the event type, defaulting to "message".
func (e Event) Name() string {
	if e.Event == "" {
		return "message"
	}
	return e.Event
}

// MarshalText renders the event as a wire frame terminated by a blank line.
func (e Event) MarshalText() ([]byte, error) {
	var b bytes.Buffer
	if e.ID != "" {
		b.WriteString("id: ")
		b.WriteString(oneLine(e.ID))
		b.WriteByte('\n')
	}
	if e.Event != "" {
		b.WriteString("event: ")
		b.WriteString(oneLine(e.Event))
		b.WriteByte('\n')
	}
	if e.Retry > 0 {
		b.WriteString("retry: ")
		b.WriteString(strconv.FormatInt(e.Retry.Milliseconds(), 10))
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(e.Data, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
