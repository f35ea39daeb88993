package connectors

import (
	"context"
	"strings"
	"time"

	"github.com/okian/lobstream/internal/domain/model"
)

const (
	lobstersSeenCap   = 2000
	lobstersMinLength = 10
)

type lobstersStory struct {
	ShortID       string   `json:"short_id"`
	Title         string   `json:"title"`
	Tags          []string `json:"tags"`
	SubmitterUser struct {
		Username string `json:"username"`
	} `json:"submitter_user"`
}

// Lobsters polls the newest stories feed.
type Lobsters struct {
	base
	FeedURL  string
	Interval time.Duration
	fetch    *Fetcher
}

// NewLobsters creates the link-aggregator connector.
func NewLobsters(cfg Config) *Lobsters {
	return &Lobsters{
		base:     newBase("lobsters", lobstersSeenCap, cfg),
		FeedURL:  "https://lobste.rs/newest.json",
		Interval: 90 * time.Second,
	}
}

// Start launches the poll loop.
func (l *Lobsters) Start(ctx context.Context, sink Sink) *Handle {
	l.fetch = l.cfg.fetcher(0)
	h := NewHandle(ctx, l.name)
	h.Go(func(ctx context.Context) {
		runPoll(ctx, PollTask{Name: l.name, Interval: l.Interval, Run: func(ctx context.Context) error {
			return l.cycle(ctx, sink)
		}}, l.pollErrors("newest"))
	})
	return h
}

func (l *Lobsters) cycle(ctx context.Context, sink Sink) error {
	var stories []lobstersStory
	if err := l.fetch.GetJSON(ctx, l.FeedURL, &stories); err != nil {
		return err
	}
	for _, s := range stories {
		if !l.fresh(ctx, s.ShortID) {
			continue
		}
		p, ok := adaptLobsters(s)
		if !ok {
			l.reject("filtered")
			continue
		}
		l.emit(ctx, sink, p)
	}
	return nil
}

// adaptLobsters converts one story; tags are appended in brackets.
func adaptLobsters(s lobstersStory) (model.Post, bool) { //nolint:gocritic // hugeParam: decoded values
	title, ok := acceptText(strings.TrimSpace(s.Title), lobstersMinLength)
	if !ok {
		return model.Post{}, false
	}
	if len(s.Tags) > 0 {
		title += " [" + strings.Join(s.Tags, ", ") + "]"
	}
	author := s.SubmitterUser.Username
	if author == "" {
		author = "anonymous"
	}
	return model.Post{Source: "lobsters", Text: title, Author: author}, true
}
