package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"
)

const defaultRetry = 3 * time.Second

// Handler receives decoded events. Returning an error ends Subscribe.
type Handler func(Event) error

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for connections.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetry sets the reconnect delay used until the server sends a hint.
func WithRetry(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.retry = d
		}
	}
}

// WithHeader adds a request header sent on every connection.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithLastEventID seeds the resume cursor for the first connection.
func WithLastEventID(id string) ClientOption {
	return func(c *Client) { c.lastID = id }
}

// WithOnDisconnect registers a callback invoked with the error that ended
// each connection before the client waits to reconnect.
func WithOnDisconnect(fn func(error)) ClientOption {
	return func(c *Client) { c.onDisconnect = fn }
}

// Client subscribes to an event stream and reconnects whenever the server
// closes it, resuming from the last event id it saw.
type Client struct {
	url          string
	http         *http.Client
	header       http.Header
	onDisconnect func(error)

	mu     sync.Mutex
	lastID string
	retry  time.Duration
}

// NewClient returns a client for url.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:    url,
		http:   &http.Client{},
		header: make(http.Header),
		retry:  defaultRetry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LastEventID returns the most recent event id received.
func (c *Client) LastEventID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastID
}

// Subscribe streams events to fn until ctx is done or fn returns an error.
// Connection failures and server-side closes trigger a reconnect.
func (c *Client) Subscribe(ctx context.Context, fn Handler) error {
	for {
		err := c.stream(ctx, fn)
		var herr handlerError
		if errors.As(err, &herr) {
			return herr.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.onDisconnect != nil {
			c.onDisconnect(err)
		}

		t := time.NewTimer(c.retryDelay())
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

type handlerError struct{ err error }

func (h handlerError) Error() string { return h.err.Error() }

func (c *Client) retryDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retry
}

func (c *Client) stream(ctx context.Context, fn Handler) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("sse: build request: %w", err)
	}
	for k, vs := range c.header {
		req.Header[k] = vs
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if id := c.LastEventID(); id != "" {
		req.Header.Set("Last-Event-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sse: connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		return fmt.Errorf("%w: %q", ErrNotStream, resp.Header.Get("Content-Type"))
	}

	dec := NewDecoder(resp.Body)
	for {
		ev, err := dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return fmt.Errorf("sse: read: %w", err)
		}
		c.mu.Lock()
		if ev.ID != "" {
			c.lastID = ev.ID
		}
		if ev.Retry > 0 {
			c.retry = ev.Retry
		}
		c.mu.Unlock()

		if err := fn(ev); err != nil {
			return handlerError{err: err}
		}
	}
}
