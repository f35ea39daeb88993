// Package client consumes the post stream the way a viewer does: it
// deduplicates events, buffers them in a bounded queue, flushes an initial
// backfill batch and then releases one post per pace tick.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/pkg/logger"
	"github.com/okian/lobstream/pkg/metrics"
	"github.com/okian/lobstream/pkg/sse"
)

// Item is one post ready for display.
type Item struct {
	ID        string
	Source    string
	Author    string
	Text      string
	ImageURL  string
	Topics    []string
	Sentiment string
}

// Renderer displays posts. Backfill batches arrive together and are shown
// without animation.
type Renderer interface {
	Render(items []Item, backfill bool)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(items []Item, backfill bool)

// Render calls f.
func (f RenderFunc) Render(items []Item, backfill bool) { f(items, backfill) }

// Stats counts what the consumer has seen.
type Stats struct {
	Received   int64
	Duplicates int64
	Dropped    int64
	Rendered   int64
	Queued     int
}

// Consumer subscribes to a stream endpoint and paces posts into a Renderer.
type Consumer struct {
	url       string
	render    Renderer
	http      *http.Client
	sources   []string
	topics    []string
	queueSize int
	settle    time.Duration
	pace      time.Duration
	log       logger.Logger

	mu    sync.Mutex
	seen  *window
	queue []Item
	stats Stats

	connected  chan struct{}
	backfilled bool
}

// New creates a consumer for the stream at streamURL.
func New(streamURL string, r Renderer, opts ...Option) (*Consumer, error) {
	if r == nil {
		return nil, ErrNilRenderer
	}
	c := &Consumer{
		render:    r,
		queueSize: defaultQueueSize,
		settle:    defaultSettle,
		pace:      defaultPace,
		seen:      newWindow(defaultSeenWindow, defaultSeenPrune),
		connected: make(chan struct{}, 1),
		log:       logger.Get().Named("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	u, err := url.Parse(streamURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, streamURL)
	}
	q := u.Query()
	if len(c.sources) > 0 {
		q.Set("sources", strings.Join(c.sources, ","))
	}
	if len(c.topics) > 0 {
		q.Set("topics", strings.Join(c.topics, ","))
	}
	u.RawQuery = q.Encode()
	c.url = u.String()
	return c, nil
}

// URL returns the stream URL including filters.
func (c *Consumer) URL() string { return c.url }

// Run subscribes until ctx ends. Reconnection and resumption are left to
// the event stream client, which replays the last delivered id.
func (c *Consumer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.loop(ctx)
	}()

	stream := sse.NewClient(c.url,
		sse.WithHTTPClient(c.http),
		sse.WithOnDisconnect(func(err error) {
			c.log.Warn(ctx, "stream disconnected, reconnecting", logger.Error(err))
		}),
	)
	err := stream.Subscribe(ctx, c.handle)
	cancel()
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stats returns a snapshot of the counters.
func (c *Consumer) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Queued = len(c.queue)
	return s
}

func (c *Consumer) handle(ev sse.Event) error {
	switch ev.Name() {
	case "connected":
		select {
		case c.connected <- struct{}{}:
		default:
		}
	case "post":
		c.enqueue(ev)
	case "error":
		var body struct {
			Message string `json:"message"`
		}
		if json.Unmarshal([]byte(ev.Data), &body) == nil && body.Message != "" {
			c.log.Warn(context.Background(), "server error", logger.String("message", body.Message))
		}
	}
	return nil
}

func (c *Consumer) enqueue(ev sse.Event) {
	var fields map[string]string
	if err := json.Unmarshal([]byte(ev.Data), &fields); err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Received++
	if ev.ID != "" && !c.seen.add(ev.ID) {
		c.stats.Duplicates++
		return
	}
	if len(c.queue) >= c.queueSize {
		c.stats.Dropped++
		return
	}
	c.queue = append(c.queue, toItem(ev.ID, fields))
}

func toItem(id string, fields map[string]string) Item {
	p := model.FromFields(fields)
	return Item{
		ID:        id,
		Source:    p.Source,
		Author:    p.Author,
		Text:      p.Text,
		ImageURL:  p.ImageURL,
		Topics:    p.Topics,
		Sentiment: string(p.Sentiment),
	}
}

// loop owns the backfill phase and the pace timer.
func (c *Consumer) loop(ctx context.Context) {
	tick := time.NewTicker(c.pace)
	defer tick.Stop()
	var settle *time.Timer
	var settled <-chan time.Time
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.connected:
			if !c.backfilled && settle == nil {
				settle = time.NewTimer(c.settle)
				settled = settle.C
			}
		case <-settled:
			settled = nil
			c.flushBackfill()
		case <-tick.C:
			if c.backfilled {
				c.popOne()
			}
		}
	}
}

func (c *Consumer) flushBackfill() {
	c.mu.Lock()
	batch := c.queue
	c.queue = nil
	c.stats.Rendered += int64(len(batch))
	c.mu.Unlock()

	c.backfilled = true
	if len(batch) == 0 {
		return
	}
	metrics.RecordClientRendered("backfill", len(batch))
	c.render.Render(batch, true)
}

func (c *Consumer) popOne() {
	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	it := c.queue[0]
	c.queue[0] = Item{}
	c.queue = c.queue[1:]
	c.stats.Rendered++
	c.mu.Unlock()

	metrics.RecordClientRendered("paced", 1)
	c.render.Render([]Item{it}, false)
}
