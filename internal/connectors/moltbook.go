package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/internal/domain/normalize"
	"github.com/okian/lobstream/internal/domain/types"
)

const (
	moltbookSeenCap   = 10000
	moltbookMinLength = 10
	unknownAgent      = "unknown-agent"
)

// DefaultMoltbookURL is the agent network API root.
const DefaultMoltbookURL = "https://www.moltbook.com/api/v1"

// DefaultSubmolts are polled individually on every new-posts cycle.
var DefaultSubmolts = []string{ //nolint:gochecknoglobals // connector defaults
	"consciousness", "blesstheirhearts", "shitposts", "offmychest",
	"aita", "TheClaw", "Crustafarianism",
}

// MoltbookClient reads the agent network API.
type MoltbookClient struct {
	baseURL string
	fetch   *Fetcher
}

// NewMoltbookClient creates an API client; delay spaces consecutive calls.
func NewMoltbookClient(cfg Config, delay time.Duration) *MoltbookClient {
	base := cfg.MoltbookURL
	if base == "" {
		base = DefaultMoltbookURL
	}
	return &MoltbookClient{
		baseURL: strings.TrimRight(base, "/"),
		fetch:   cfg.fetcher(delay, WithBearer(cfg.MoltbookAPIKey)),
	}
}

// Posts fetches one listing path such as /posts?sort=new&limit=25.
func (c *MoltbookClient) Posts(ctx context.Context, path string) ([]moltbookPost, error) {
	var raw json.RawMessage
	if err := c.fetch.GetJSON(ctx, c.baseURL+path, &raw); err != nil {
		return nil, err
	}
	posts, err := unwrapList[moltbookPost](raw, "posts", "data")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
	}
	return posts, nil
}

// Comments fetches the comment thread of one post. Upstream failures are
// returned as *StatusError.
func (c *MoltbookClient) Comments(ctx context.Context, postID string) ([]types.Comment, error) {
	var raw json.RawMessage
	if err := c.fetch.GetJSON(ctx, c.baseURL+"/posts/"+url.PathEscape(postID)+"/comments", &raw); err != nil {
		return nil, err
	}
	items, err := unwrapList[moltbookComment](raw, "comments", "data")
	if err != nil {
		return nil, fmt.Errorf("%w: comments: %w", ErrMalformed, err)
	}
	out := make([]types.Comment, 0, len(items))
	for _, it := range items {
		out = append(out, adaptComment(it))
	}
	return out, nil
}

func adaptComment(it moltbookComment) types.Comment { //nolint:gocritic // hugeParam: decoded values
	c := types.Comment{
		ID:         firstNonEmpty(string(it.ID), string(it.AltID)),
		AuthorName: firstNonEmpty(refName(it.Agent), refName(it.Author), it.AgentName, unknownAgent),
		Content:    firstNonEmpty(it.Content, it.Text, it.Body),
		Upvotes:    int(it.Upvotes),
		Downvotes:  int(it.Downvotes),
	}
	c.AuthorID = optional(firstNonEmpty(refID(it.Agent), refID(it.Author)))
	c.ParentID = optional(firstNonEmpty(string(it.ParentID), string(it.ParentAlt)))
	c.CreatedAt = optional(firstNonEmpty(it.Created, it.CreatedAlt))
	return c
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Moltbook polls the agent network's new and hot feeds plus a fixed set of
// submolts.
type Moltbook struct {
	base
	Submolts    []string
	NewInterval time.Duration
	HotInterval time.Duration
	HotStagger  time.Duration
	Delay       time.Duration
	client      *MoltbookClient
}

// NewMoltbook creates the agent network connector.
func NewMoltbook(cfg Config) *Moltbook {
	return &Moltbook{
		base:        newBase("moltbook", moltbookSeenCap, cfg),
		Submolts:    DefaultSubmolts,
		NewInterval: 45 * time.Second,
		HotInterval: 120 * time.Second,
		HotStagger:  15 * time.Second,
		Delay:       time.Second,
	}
}

// Start launches the new and hot loops.
func (m *Moltbook) Start(ctx context.Context, sink Sink) *Handle {
	m.client = NewMoltbookClient(m.cfg, m.Delay)
	if m.cfg.MoltbookAPIKey == "" {
		m.log.Info(ctx, "starting unauthenticated")
	}
	h := NewHandle(ctx, m.name)
	h.Go(func(ctx context.Context) {
		runPoll(ctx, PollTask{Name: "moltbook-new", Interval: m.NewInterval, Run: func(ctx context.Context) error {
			m.pull(ctx, sink, "/posts?sort=new&limit=25")
			for _, sub := range m.Submolts {
				if ctx.Err() != nil {
					return nil
				}
				m.pull(ctx, sink, "/submolts/"+url.PathEscape(sub)+"/posts?sort=new&limit=10")
			}
			return nil
		}}, nil)
	})
	h.Go(func(ctx context.Context) {
		runPoll(ctx, PollTask{Name: "moltbook-hot", Interval: m.HotInterval, Stagger: m.HotStagger, Run: func(ctx context.Context) error {
			m.pull(ctx, sink, "/posts?sort=hot&limit=25")
			return nil
		}}, nil)
	})
	return h
}

func (m *Moltbook) pull(ctx context.Context, sink Sink, path string) {
	posts, err := m.client.Posts(ctx, path)
	if err != nil {
		m.fail(ctx, path, err)
		return
	}
	for _, raw := range posts {
		if !m.fresh(ctx, firstNonEmpty(string(raw.ID), string(raw.AltID))) {
			continue
		}
		p, reason, ok := adaptMoltbook(raw)
		if !ok {
			m.reject(reason)
			continue
		}
		m.emit(ctx, sink, p)
	}
}

// adaptMoltbook converts one agent post. It reports a rejection reason
// when the post is dropped.
func adaptMoltbook(raw moltbookPost) (model.Post, string, bool) { //nolint:gocritic // hugeParam: decoded values
	title := strings.TrimSpace(raw.Title)
	content := strings.TrimSpace(raw.Content)
	text := title
	if content != "" {
		if text != "" {
			text += " — "
		}
		text += content
	}
	text = normalize.Truncate(normalize.Clean(text), normalize.MaxTextLength, "…")
	if len([]rune(text)) < moltbookMinLength {
		return model.Post{}, "too_short", false
	}
	if !normalize.IsMostlyEnglish(text) {
		return model.Post{}, "not_english", false
	}
	if reason, spam := normalize.Spam(text); spam {
		return model.Post{}, reason, false
	}

	agent := firstNonEmpty(refName(raw.Agent), refName(raw.Author), raw.AgentName, unknownAgent)
	var sub moltbookRef
	if raw.Submolt != nil {
		sub = raw.Submolt.moltbookRef
	}
	submolt := firstNonEmpty(sub.Name, raw.SubmoltName)
	author := agent
	if submolt != "" {
		author = agent + " in m/" + submolt
	}

	p := model.Post{
		Source:       "moltbook",
		Text:         text,
		Author:       author,
		ImageURL:     moltbookImage(raw),
		Upvotes:      int(raw.Upvotes),
		Downvotes:    int(raw.Downvotes),
		CommentCount: int(raw.CommentCount),
		ExternalID:   firstNonEmpty(string(raw.ID), string(raw.AltID)),
		Community: &model.Community{
			AgentName:      agent,
			AgentID:        firstNonEmpty(refID(raw.Agent), refID(raw.Author)),
			SubmoltName:    submolt,
			SubmoltID:      string(sub.ID),
			SubmoltDisplay: sub.DisplayName,
			Title:          title,
			Content:        content,
		},
	}
	if t, err := time.Parse(time.RFC3339Nano, raw.CreatedAt); err == nil {
		p.CreatedAt = &t
	}
	return p, "", true
}

func moltbookImage(raw moltbookPost) string { //nolint:gocritic // hugeParam: decoded values
	switch {
	case raw.ImageURL != "":
		return raw.ImageURL
	case raw.Media != nil && raw.Media.URL != "":
		return raw.Media.URL
	case raw.Thumbnail != "":
		return raw.Thumbnail
	case imageExt.MatchString(raw.URL):
		return raw.URL
	}
	return ""
}
