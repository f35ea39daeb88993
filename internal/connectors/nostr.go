package connectors

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/lobstream/internal/domain/model"
)

const (
	nostrSubID     = "lobstream"
	nostrSeenCap   = 10000
	nostrMinLength = 10
)

// DefaultNostrRelays are subscribed to when none are configured.
var DefaultNostrRelays = []string{ //nolint:gochecknoglobals // connector defaults
	"wss://relay.damus.io", "wss://nos.lol", "wss://relay.primal.net",
}

type nostrEvent struct {
	ID      string `json:"id"`
	PubKey  string `json:"pubkey"`
	Kind    int    `json:"kind"`
	Content string `json:"content"`
}

// Nostr subscribes to live text notes on several relays. The same note
// usually arrives from more than one relay and is emitted once.
type Nostr struct {
	base
	Relays  []string
	Backoff Backoff
	Pace    time.Duration
	mb      *Mailbox[frame]
}

// NewNostr creates the relay connector.
func NewNostr(cfg Config) *Nostr {
	return &Nostr{
		base:    newBase("nostr", nostrSeenCap, cfg),
		Relays:  DefaultNostrRelays,
		Backoff: DefaultBackoff,
		Pace:    4 * time.Second,
		mb:      NewMailbox[frame](mailboxSize),
	}
}

func nostrSubscribe(conn *websocket.Conn) error {
	return conn.WriteJSON([]any{"REQ", nostrSubID, map[string]any{"kinds": []int{1}, "limit": 0}})
}

// Start opens one session per relay and a paced processor.
func (n *Nostr) Start(ctx context.Context, sink Sink) *Handle {
	h := NewHandle(ctx, n.name)
	for _, relay := range n.Relays {
		h.Go(func(ctx context.Context) {
			runSession(ctx, n.Backoff, n.wsSession(relay, relay, nil, nostrSubscribe, n.mb), n.sessionEnded(relay))
		})
	}
	h.Go(func(ctx context.Context) {
		drainPaced(ctx, n.mb, n.Pace, func(f frame) {
			p, id, ok := adaptNostr(f.data)
			if !ok || !n.fresh(ctx, id) {
				return
			}
			n.emit(ctx, sink, p)
		})
	})
	return h
}

// adaptNostr accepts ["EVENT", subID, event] messages for our subscription.
func adaptNostr(data []byte) (model.Post, string, bool) {
	var msg []json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil || len(msg) < 3 {
		return model.Post{}, "", false
	}
	var typ, sub string
	if json.Unmarshal(msg[0], &typ) != nil || typ != "EVENT" ||
		json.Unmarshal(msg[1], &sub) != nil || sub != nostrSubID {
		return model.Post{}, "", false
	}
	var ev nostrEvent
	if err := json.Unmarshal(msg[2], &ev); err != nil || strings.TrimSpace(ev.Content) == "" {
		return model.Post{}, "", false
	}
	text, ok := acceptText(ev.Content, nostrMinLength)
	if !ok {
		return model.Post{}, "", false
	}
	author := ev.PubKey
	if len(author) > 16 {
		author = author[:16]
	}
	id := ev.ID
	if id == "" {
		id = ev.PubKey + ":" + text
	}
	return model.Post{Source: "nostr", Text: text, Author: author}, id, true
}
