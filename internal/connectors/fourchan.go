package connectors

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/internal/domain/normalize"
)

const (
	fourchanSeenCap   = 10000
	fourchanMinLength = 10
)

// DefaultBoards are polled when none are configured.
var DefaultBoards = []string{"pol", "news", "g", "sci", "biz"} //nolint:gochecknoglobals // connector defaults

var quoteLink = regexp.MustCompile(`>>\d{5,}`) //nolint:gochecknoglobals // compiled once

type fourchanPage struct {
	Threads []fourchanThread `json:"threads"`
}

type fourchanThread struct {
	fourchanItem
	LastReplies []fourchanItem `json:"last_replies"`
}

type fourchanItem struct {
	No   int64  `json:"no"`
	Name string `json:"name"`
	Com  string `json:"com"`
}

// FourChan polls each board catalog and emits opening posts and their
// latest replies.
type FourChan struct {
	base
	BaseURL  string
	Boards   []string
	Interval time.Duration
	Delay    time.Duration
	fetch    *Fetcher
}

// NewFourChan creates the imageboard connector.
func NewFourChan(cfg Config) *FourChan {
	return &FourChan{
		base:     newBase("fourchan", fourchanSeenCap, cfg),
		BaseURL:  "https://a.4cdn.org",
		Boards:   DefaultBoards,
		Interval: 60 * time.Second,
		Delay:    1100 * time.Millisecond,
	}
}

// Start launches the poll loop.
func (f *FourChan) Start(ctx context.Context, sink Sink) *Handle {
	f.fetch = f.cfg.fetcher(f.Delay)
	h := NewHandle(ctx, f.name)
	h.Go(func(ctx context.Context) {
		runPoll(ctx, PollTask{Name: f.name, Interval: f.Interval, Run: func(ctx context.Context) error {
			f.cycle(ctx, sink)
			return nil
		}}, nil)
	})
	return h
}

func (f *FourChan) cycle(ctx context.Context, sink Sink) {
	for _, board := range f.Boards {
		if ctx.Err() != nil {
			return
		}
		var pages []fourchanPage
		if err := f.fetch.GetJSON(ctx, fmt.Sprintf("%s/%s/catalog.json", f.BaseURL, board), &pages); err != nil {
			f.fail(ctx, "/"+board+"/", err)
			continue
		}
		for _, page := range pages {
			for _, th := range page.Threads {
				f.consider(ctx, sink, board, th.fourchanItem)
				for _, reply := range th.LastReplies {
					f.consider(ctx, sink, board, reply)
				}
			}
		}
	}
}

// consider marks the item seen before filtering so rejected items are not
// re-evaluated on the next cycle.
func (f *FourChan) consider(ctx context.Context, sink Sink, board string, it fourchanItem) {
	if !f.fresh(ctx, board+":"+strconv.FormatInt(it.No, 10)) {
		return
	}
	p, ok := adaptFourChan(board, it)
	if !ok {
		f.reject("filtered")
		return
	}
	f.emit(ctx, sink, p)
}

// adaptFourChan converts one catalog item.
func adaptFourChan(board string, it fourchanItem) (model.Post, bool) {
	if it.Com == "" {
		return model.Post{}, false
	}
	text := normalize.StripHTML(it.Com)
	text = quoteLink.ReplaceAllString(text, "")
	text, ok := acceptPlain(text, fourchanMinLength)
	if !ok {
		return model.Post{}, false
	}
	name := strings.TrimSpace(it.Name)
	if name == "" {
		name = "Anonymous"
	}
	return model.Post{
		Source: "4chan",
		Text:   text,
		Author: fmt.Sprintf("%s /%s/", name, board),
	}, true
}
