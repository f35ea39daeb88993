// Package connectors ingests posts from external platforms. Each connector
// owns its seen-set and schedule, converts raw items with a pure adapter
// function and hands canonical posts to a Sink.
package connectors

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/okian/lobstream/internal/domain/dedupe"
	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/internal/domain/normalize"
	"github.com/okian/lobstream/pkg/logger"
	"github.com/okian/lobstream/pkg/metrics"
)

// DefaultUserAgent identifies the relay to upstream platforms.
const DefaultUserAgent = "lobstream-relay/1.0 (art installation; contact: github.com/gtdrag/lobstream)"

// imageExt matches URLs that point straight at an image file.
var imageExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)(\?|$)`) //nolint:gochecknoglobals // compiled once

// Sink receives canonical posts. Emit must not block for long.
type Sink interface {
	Emit(ctx context.Context, p model.Post)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, p model.Post)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, p model.Post) { f(ctx, p) } //nolint:gocritic // hugeParam: posts travel by value

// Connector is one ingestion source.
type Connector interface {
	Name() string
	// Start launches the connector's loops and returns immediately.
	Start(ctx context.Context, sink Sink) *Handle
}

// Config carries the settings shared by the registry's connectors.
type Config struct {
	UserAgent      string
	HTTPClient     *http.Client
	MoltbookAPIKey string
	MoltbookURL    string
	GitHubToken    string
	MastodonToken  string
}

func (c Config) userAgent() string {
	if c.UserAgent == "" {
		return DefaultUserAgent
	}
	return c.UserAgent
}

func (c Config) fetcher(delay time.Duration, opts ...FetchOption) *Fetcher {
	all := []FetchOption{WithUserAgent(c.userAgent()), WithHTTPClient(c.HTTPClient), WithDelay(delay)}
	return NewFetcher(append(all, opts...)...)
}

// base holds the bookkeeping every connector shares.
type base struct {
	name string
	cfg  Config
	log  logger.Logger
	seen dedupe.Deduper
}

// defaultSeenCap bounds the seen-set of connectors that pass no cap.
const defaultSeenCap = 5000

func newBase(name string, seenCap int, cfg Config) base {
	if seenCap <= 0 {
		seenCap = defaultSeenCap
	}
	return base{
		name: name,
		cfg:  cfg,
		log:  logger.Get().Named(name),
		seen: dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(seenCap)),
	}
}

// Name returns the registry name.
func (b *base) Name() string { return b.name }

// fresh marks key seen and reports whether it was new.
func (b *base) fresh(ctx context.Context, key string) bool {
	if key == "" {
		return false
	}
	if b.seen.SeenAndRecord(ctx, key) {
		metrics.RecordPostDuplicate(b.name)
		return false
	}
	return true
}

func (b *base) emit(ctx context.Context, sink Sink, p model.Post) { //nolint:gocritic // hugeParam: posts travel by value
	metrics.RecordPostIngested(b.name)
	sink.Emit(ctx, p)
}

func (b *base) reject(reason string) {
	metrics.RecordPostRejected(b.name, reason)
}

// fail records an isolated failure for one host, board or feed.
func (b *base) fail(ctx context.Context, scope string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	kind := errorKind(err)
	metrics.RecordConnectorError(b.name, kind)
	if kind == "rate_limited" {
		b.log.Warn(ctx, "rate limited", logger.String("scope", scope))
		return
	}
	b.log.Warn(ctx, "fetch failed", logger.String("scope", scope), logger.Error(err))
}

// pollErrors adapts fail for runPoll.
func (b *base) pollErrors(scope string) func(context.Context, error) {
	return func(ctx context.Context, err error) { b.fail(ctx, scope, err) }
}

// acceptText normalizes raw and applies the language filter.
func acceptText(raw string, minLen int) (string, bool) {
	return accept(normalize.Normalize(raw, nil, minLen))
}

// acceptPlain is acceptText for text the adapter already stripped and
// decoded, so escaped markup stays as written.
func acceptPlain(text string, minLen int) (string, bool) {
	return accept(normalize.NormalizePlain(text, nil, minLen))
}

func accept(res normalize.Result, ok bool) (string, bool) {
	if !ok || !normalize.IsMostlyEnglish(res.Text) {
		return "", false
	}
	return res.Text, true
}
