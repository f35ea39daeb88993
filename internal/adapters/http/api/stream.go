package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/lobstream/internal/adapters/repository"
	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/pkg/logger"
	"github.com/okian/lobstream/pkg/metrics"
	"github.com/okian/lobstream/pkg/sse"
)

// Stream event names.
const (
	EventConnected = "connected"
	EventPost      = "post"
	EventHeartbeat = "heartbeat"
	EventError     = "error"
)

const streamWriteTimeout = 5 * time.Second

// LogReader is the part of the event log the stream reads.
type LogReader interface {
	ReadRange(ctx context.Context, afterID string, limit int) ([]model.LogEntry, error)
	ReadRecent(ctx context.Context, count int) ([]model.LogEntry, error)
}

// StreamConfig bounds one stream connection.
type StreamConfig struct {
	MaxDuration       time.Duration
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	Backfill          int
	PageLimit         int
}

// DefaultStreamConfig returns the production stream settings.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		MaxDuration:       25 * time.Second,
		PollInterval:      1500 * time.Millisecond,
		HeartbeatInterval: 10 * time.Second,
		Backfill:          30,
		PageLimit:         20,
	}
}

// StreamFilter holds the optional allow-lists of one connection.
type StreamFilter struct {
	Sources []string
	Topics  []string
}

// ParseStreamFilter reads the sources and topics comma lists.
func ParseStreamFilter(r *http.Request) StreamFilter {
	q := r.URL.Query()
	return StreamFilter{Sources: splitList(q.Get("sources")), Topics: splitList(q.Get("topics"))}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Match reports whether the entry fields pass both allow-lists.
func (f StreamFilter) Match(fields map[string]string) bool {
	if len(f.Sources) > 0 && !contains(f.Sources, fields[model.FieldSource]) {
		return false
	}
	if len(f.Topics) == 0 {
		return true
	}
	for _, t := range model.SplitTopics(fields[model.FieldTopics]) {
		if contains(f.Topics, t) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ResolveCursor picks the resume position: Last-Event-ID, then ?after=.
// fresh is true when neither is present or the supplied id is unusable.
func ResolveCursor(r *http.Request) (cursor string, fresh bool) {
	for _, c := range []string{r.Header.Get("Last-Event-ID"), r.URL.Query().Get("after")} {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if repository.IsEarliest(c) {
			return repository.Earliest, false
		}
		if _, err := repository.ParseID(c); err == nil {
			return c, false
		}
	}
	return repository.Earliest, true
}

// StreamHandler serves the SSE fan-out of the event log.
type StreamHandler struct {
	log    LogReader
	cfg    StreamConfig
	logger logger.Logger
	now    func() time.Time
	active atomic.Int64
}

// NewStreamHandler creates a stream handler reading from log.
func NewStreamHandler(log LogReader, cfg StreamConfig) *StreamHandler {
	def := DefaultStreamConfig()
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = def.MaxDuration
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = def.PageLimit
	}
	if cfg.Backfill < 0 {
		cfg.Backfill = 0
	}
	return &StreamHandler{log: log, cfg: cfg, logger: logger.Get().Named("stream"), now: time.Now}
}

// Active reports the number of open stream connections.
func (h *StreamHandler) Active() int64 { return h.active.Load() }

// streamConn is the per-connection state.
type streamConn struct {
	w        *sse.Writer
	filter   StreamFilter
	cursor   string
	lastSent time.Time
}

func (c *streamConn) send(name, id, data string) {
	if err := c.w.SendWithDeadline(sse.Event{ID: id, Event: name, Data: data}, streamWriteTimeout); err == nil && !c.w.Closed() {
		metrics.RecordStreamEvent(name)
	}
}

// HandleStream handles GET /api/stream. The connection ends after
// MaxDuration regardless of activity; clients reconnect with Last-Event-ID.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.MaxDuration)
	defer cancel()

	connID := uuid.NewString()
	log := h.logger.With(logger.String("conn", connID))
	h.active.Add(1)
	metrics.StreamConnectionOpened()
	defer func() {
		h.active.Add(-1)
		metrics.StreamConnectionClosed()
	}()

	conn := &streamConn{w: sse.NewWriter(w), filter: ParseStreamFilter(r), lastSent: h.now()}
	defer conn.w.Close()

	conn.send(EventConnected, "", `{"status":"ok"}`)

	cursor, fresh := ResolveCursor(r)
	conn.cursor = cursor
	if fresh {
		h.backfill(ctx, conn)
	}
	log.Debug(ctx, "stream opened", logger.String("cursor", conn.cursor), logger.Bool("fresh", fresh))

	h.tail(ctx, conn)
	log.Debug(context.Background(), "stream closed", logger.String("cursor", conn.cursor))
}

// tail polls the log until the lifetime expires or the client goes away.
func (h *StreamHandler) tail(ctx context.Context, conn *streamConn) {
	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()
	for {
		h.poll(ctx, conn)
		if conn.w.Closed() {
			return
		}
		if h.now().Sub(conn.lastSent) >= h.cfg.HeartbeatInterval {
			conn.send(EventHeartbeat, "", `{"ts":`+strconv.FormatInt(h.now().UnixMilli(), 10)+`}`)
			conn.lastSent = h.now()
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// backfill emits the newest entries oldest-first and moves the cursor to the
// newest of them. An empty log leaves the cursor at the start.
func (h *StreamHandler) backfill(ctx context.Context, conn *streamConn) {
	if h.cfg.Backfill <= 0 {
		return
	}
	recent, err := h.log.ReadRecent(ctx, h.cfg.Backfill)
	if err != nil {
		h.sendError(ctx, conn, err)
		return
	}
	h.emit(conn, recent)
}

func (h *StreamHandler) poll(ctx context.Context, conn *streamConn) {
	entries, err := h.log.ReadRange(ctx, conn.cursor, h.cfg.PageLimit)
	if err != nil {
		if ctx.Err() == nil {
			h.sendError(ctx, conn, err)
		}
		return
	}
	h.emit(conn, entries)
}

// emit writes the entries that pass the filter and advances the cursor past
// every entry, matched or not.
func (h *StreamHandler) emit(conn *streamConn, entries []model.LogEntry) {
	for _, e := range entries {
		conn.cursor = e.ID
		if !conn.filter.Match(e.Fields) {
			continue
		}
		data, err := json.Marshal(e.Fields)
		if err != nil {
			continue
		}
		conn.send(EventPost, e.ID, string(data))
		conn.lastSent = h.now()
	}
}

func (h *StreamHandler) sendError(ctx context.Context, conn *streamConn, err error) {
	h.logger.Warn(ctx, "stream read failed", logger.Error(err))
	metrics.RecordErrorByComponent("stream", "read")
	data, _ := json.Marshal(map[string]string{"message": err.Error()})
	conn.send(EventError, "", string(data))
}
