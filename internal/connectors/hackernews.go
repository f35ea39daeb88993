package connectors

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/internal/domain/normalize"
)

const (
	hnMinLength = 10
	hnBatch     = 15
	hnParallel  = 5
)

// DefaultHackerNewsURL is the public item API root.
const DefaultHackerNewsURL = "https://hacker-news.firebaseio.com/v0"

type hnItem struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	By      string `json:"by"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	Deleted bool   `json:"deleted"`
	Dead    bool   `json:"dead"`
}

// HackerNews walks new item ids forward from the current maximum.
type HackerNews struct {
	base
	BaseURL  string
	Interval time.Duration
	fetch    *Fetcher

	mu       sync.Mutex
	lastSeen int64
}

// NewHackerNews creates the item walker.
func NewHackerNews(cfg Config) *HackerNews {
	return &HackerNews{
		base:     newBase("hackernews", defaultSeenCap, cfg),
		BaseURL:  DefaultHackerNewsURL,
		Interval: 7 * time.Second,
	}
}

// Start seeds the cursor then polls.
func (n *HackerNews) Start(ctx context.Context, sink Sink) *Handle {
	n.fetch = n.cfg.fetcher(0)
	h := NewHandle(ctx, n.name)
	h.Go(func(ctx context.Context) {
		if top, err := n.maxItem(ctx); err == nil {
			n.setLastSeen(top)
		} else {
			n.fail(ctx, "maxitem", err)
		}
		runPoll(ctx, PollTask{Name: n.name, Interval: n.Interval, Stagger: n.Interval, Run: func(ctx context.Context) error {
			return n.cycle(ctx, sink)
		}}, n.pollErrors("items"))
	})
	return h
}

func (n *HackerNews) setLastSeen(id int64) {
	n.mu.Lock()
	n.lastSeen = id
	n.mu.Unlock()
}

// LastSeen reports the highest item id processed.
func (n *HackerNews) LastSeen() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastSeen
}

func (n *HackerNews) maxItem(ctx context.Context) (int64, error) {
	var top int64
	if err := n.fetch.GetJSON(ctx, n.BaseURL+"/maxitem.json", &top); err != nil {
		return 0, err
	}
	return top, nil
}

// cycle fetches up to hnBatch ids past the cursor in parallel. Items that
// fail to load are skipped; the cursor still advances past them.
func (n *HackerNews) cycle(ctx context.Context, sink Sink) error {
	top, err := n.maxItem(ctx)
	if err != nil {
		return err
	}
	last := n.LastSeen()
	if last == 0 {
		n.setLastSeen(top)
		return nil
	}
	start, end := last+1, min(top, last+hnBatch)
	if end < start {
		return nil
	}

	items := make([]*hnItem, end-start+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hnParallel)
	for id := start; id <= end; id++ {
		g.Go(func() error {
			var it hnItem
			if err := n.fetch.GetJSON(gctx, fmt.Sprintf("%s/item/%d.json", n.BaseURL, id), &it); err != nil {
				return nil //nolint:nilerr // a missing item must not stall the walk
			}
			items[id-start] = &it
			return nil
		})
	}
	_ = g.Wait()
	n.setLastSeen(end)

	for _, it := range items {
		if it == nil {
			continue
		}
		p, ok := adaptHackerNews(*it)
		if !ok {
			n.reject("filtered")
			continue
		}
		n.emit(ctx, sink, p)
	}
	return nil
}

// adaptHackerNews converts a live story or comment.
func adaptHackerNews(it hnItem) (model.Post, bool) {
	if it.Deleted || it.Dead {
		return model.Post{}, false
	}
	var raw string
	switch {
	case it.Type == "story" && it.Title != "":
		raw = strings.TrimSpace(it.Title)
	case it.Type == "comment" && it.Text != "":
		raw = normalize.StripHTML(it.Text)
	default:
		return model.Post{}, false
	}
	text, ok := acceptPlain(raw, hnMinLength)
	if !ok {
		return model.Post{}, false
	}
	author := it.By
	if author == "" {
		author = "anonymous"
	}
	return model.Post{Source: "hackernews", Text: text, Author: author}, true
}
