package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/pkg/metrics"
	"github.com/okian/lobstream/pkg/sse"
)

const wikipediaMinLength = 10

// DefaultWikipediaURL is the public recent-changes event stream.
const DefaultWikipediaURL = "https://stream.wikimedia.org/v2/stream/recentchange"

type recentChange struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	User    string `json:"user"`
	Comment string `json:"comment"`
}

// Wikipedia follows the recent-changes event stream and emits commented
// edits. Reconnects resume from the last event id.
type Wikipedia struct {
	base
	URL string
	// Client must not carry a timeout; the stream stays open indefinitely.
	Client  *http.Client
	Backoff Backoff
	Pace    time.Duration
	mb      *Mailbox[frame]
	lastID  string
}

// NewWikipedia creates the edit stream connector.
func NewWikipedia(cfg Config) *Wikipedia {
	return &Wikipedia{
		base:    newBase("wikipedia", defaultSeenCap, cfg),
		URL:     DefaultWikipediaURL,
		Client:  &http.Client{},
		Backoff: DefaultBackoff,
		Pace:    4 * time.Second,
		mb:      NewMailbox[frame](mailboxSize),
	}
}

// Start opens the stream and the paced processor.
func (w *Wikipedia) Start(ctx context.Context, sink Sink) *Handle {
	h := NewHandle(ctx, w.name)
	h.Go(func(ctx context.Context) {
		runSession(ctx, w.Backoff, w.session, w.sessionEnded("recentchange"))
	})
	h.Go(func(ctx context.Context) {
		drainPaced(ctx, w.mb, w.Pace, func(f frame) {
			if p, ok := adaptRecentChange(f.data); ok {
				w.emit(ctx, sink, p)
			}
		})
	})
	return h
}

func (w *Wikipedia) session(ctx context.Context, connected func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", w.cfg.userAgent())
	if w.lastID != "" {
		req.Header.Set("Last-Event-ID", w.lastID)
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, URL: w.URL}
	}
	connected()

	dec := sse.NewDecoder(resp.Body)
	for {
		ev, err := dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode: %w", err)
		}
		if ev.ID != "" {
			w.lastID = ev.ID
		}
		if ev.Name() != "message" || ev.Data == "" {
			continue
		}
		if w.mb.Push(frame{origin: "recentchange", data: []byte(ev.Data)}) {
			metrics.RecordMailboxDropped(w.name)
		}
	}
}

// adaptRecentChange accepts edits that carry a non-empty summary.
func adaptRecentChange(data []byte) (model.Post, bool) {
	var rc recentChange
	if err := json.Unmarshal(data, &rc); err != nil || rc.Type != "edit" {
		return model.Post{}, false
	}
	comment := strings.TrimSpace(rc.Comment)
	if comment == "" {
		return model.Post{}, false
	}
	user := rc.User
	if user == "" {
		user = "Anonymous"
	}
	text, ok := acceptText(fmt.Sprintf("%s edited %s: %s", user, rc.Title, comment), wikipediaMinLength)
	if !ok {
		return model.Post{}, false
	}
	return model.Post{Source: "wikipedia", Text: text, Author: user}, true
}
