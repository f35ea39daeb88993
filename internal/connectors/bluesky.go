package connectors

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/okian/lobstream/internal/domain/model"
)

const blueskyMinLength = 10

// DefaultJetstreamURL subscribes to newly created feed posts.
const DefaultJetstreamURL = "wss://jetstream2.us-east.bsky.network/subscribe?wantedCollections=app.bsky.feed.post"

type jetstreamEvent struct {
	DID    string `json:"did"`
	Kind   string `json:"kind"`
	Commit *struct {
		Operation string `json:"operation"`
		RKey      string `json:"rkey"`
		Record    *struct {
			Text string `json:"text"`
		} `json:"record"`
	} `json:"commit"`
}

// Bluesky reads the Jetstream firehose. The firehose outpaces any viewer,
// so frames wait in a drop-oldest mailbox and are released at Pace.
type Bluesky struct {
	base
	URL     string
	Backoff Backoff
	Pace    time.Duration
	mb      *Mailbox[frame]
}

// NewBluesky creates the Jetstream connector.
func NewBluesky(cfg Config) *Bluesky {
	return &Bluesky{
		base:    newBase("bluesky", defaultSeenCap, cfg),
		URL:     DefaultJetstreamURL,
		Backoff: DefaultBackoff,
		Pace:    350 * time.Millisecond,
		mb:      NewMailbox[frame](mailboxSize),
	}
}

// Start opens the session and the paced processor.
func (b *Bluesky) Start(ctx context.Context, sink Sink) *Handle {
	h := NewHandle(ctx, b.name)
	h.Go(func(ctx context.Context) {
		runSession(ctx, b.Backoff, b.wsSession(b.URL, "jetstream", nil, nil, b.mb), b.sessionEnded("jetstream"))
	})
	h.Go(func(ctx context.Context) {
		drainPaced(ctx, b.mb, b.Pace, func(f frame) {
			if p, ok := adaptJetstream(f.data); ok {
				b.emit(ctx, sink, p)
			}
		})
	})
	return h
}

// adaptJetstream accepts commit events that create a post with text.
func adaptJetstream(data []byte) (model.Post, bool) {
	var ev jetstreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return model.Post{}, false
	}
	if ev.Kind != "commit" || ev.Commit == nil || ev.Commit.Operation != "create" ||
		ev.Commit.Record == nil || strings.TrimSpace(ev.Commit.Record.Text) == "" {
		return model.Post{}, false
	}
	text, ok := acceptText(ev.Commit.Record.Text, blueskyMinLength)
	if !ok {
		return model.Post{}, false
	}
	return model.Post{Source: "bluesky", Text: text, Author: ev.DID}, true
}
