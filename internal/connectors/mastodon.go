package connectors

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/okian/lobstream/internal/domain/model"
)

const (
	mastodonSeenCap   = 10000
	mastodonMinLength = 10
	mastodonStagger   = 500 * time.Millisecond
)

// DefaultMastodonHosts are streamed when none are configured.
var DefaultMastodonHosts = []string{ //nolint:gochecknoglobals // connector defaults
	"mastodon.social", "hachyderm.io", "fosstodon.org", "mstdn.social", "mas.to",
}

type mastodonEnvelope struct {
	Event   string `json:"event"`
	Payload string `json:"payload"`
}

type mastodonStatus struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Account struct {
		Username string `json:"username"`
	} `json:"account"`
}

// Mastodon streams the public timeline of several instances.
type Mastodon struct {
	base
	Hosts   []string
	Backoff Backoff
	// Endpoint builds the streaming URL for a host.
	Endpoint func(host string) string
	mb       *Mailbox[frame]
}

// NewMastodon creates the federated timeline connector.
func NewMastodon(cfg Config) *Mastodon {
	m := &Mastodon{
		base:    newBase("mastodon", mastodonSeenCap, cfg),
		Hosts:   DefaultMastodonHosts,
		Backoff: DefaultBackoff,
		mb:      NewMailbox[frame](mailboxSize),
	}
	m.Endpoint = m.streamURL
	return m
}

func (m *Mastodon) streamURL(host string) string {
	u := "wss://" + host + "/api/v1/streaming?stream=public"
	if m.cfg.MastodonToken != "" {
		u += "&access_token=" + url.QueryEscape(m.cfg.MastodonToken)
	}
	return u
}

// Start opens one session per host, staggered, and one processor.
func (m *Mastodon) Start(ctx context.Context, sink Sink) *Handle {
	h := NewHandle(ctx, m.name)
	for i, host := range m.Hosts {
		delay := time.Duration(i) * mastodonStagger
		h.Go(func(ctx context.Context) {
			if !sleep(ctx, delay) {
				return
			}
			runSession(ctx, m.Backoff, m.wsSession(m.Endpoint(host), host, nil, nil, m.mb), m.sessionEnded(host))
		})
	}
	h.Go(func(ctx context.Context) {
		drain(ctx, m.mb, func(f frame) {
			if p, id, ok := adaptMastodon(f.origin, f.data); ok {
				if id != "" && !m.fresh(ctx, f.origin+":"+id) {
					return
				}
				m.emit(ctx, sink, p)
			}
		})
	})
	return h
}

// adaptMastodon decodes a streaming envelope. Only "update" events carry
// statuses; their payload is itself a JSON document in a string.
func adaptMastodon(host string, data []byte) (model.Post, string, bool) {
	var env mastodonEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event != "update" {
		return model.Post{}, "", false
	}
	var st mastodonStatus
	if err := json.Unmarshal([]byte(env.Payload), &st); err != nil {
		return model.Post{}, "", false
	}
	text, ok := acceptText(st.Content, mastodonMinLength)
	if !ok {
		return model.Post{}, "", false
	}
	user := st.Account.Username
	if user == "" {
		user = "unknown"
	}
	return model.Post{Source: "mastodon", Text: text, Author: user + "@" + host}, st.ID, true
}
