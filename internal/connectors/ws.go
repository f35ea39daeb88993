package connectors

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/lobstream/pkg/logger"
	"github.com/okian/lobstream/pkg/metrics"
)

const (
	wsIdleTimeout  = 2 * time.Minute
	wsCloseTimeout = time.Second
	mailboxSize    = 200
)

// frame is one inbound message tagged with the endpoint it came from.
type frame struct {
	origin string
	data   []byte
}

// wsDialer is shared by every websocket connector; tests may replace it.
var wsDialer = websocket.DefaultDialer //nolint:gochecknoglobals // dialer shared by sessions

// wsSession dials url, runs onOpen once the socket is up and pushes every
// text frame into mb until the socket fails or ctx ends.
func (b *base) wsSession(url, origin string, header http.Header, onOpen func(*websocket.Conn) error, mb *Mailbox[frame]) SessionFunc {
	return func(ctx context.Context, connected func()) error {
		conn, resp, err := wsDialer.DialContext(ctx, url, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return fmt.Errorf("dial %s: %w", origin, err)
		}
		defer conn.Close()

		if onOpen != nil {
			if err := onOpen(conn); err != nil {
				return fmt.Errorf("open %s: %w", origin, err)
			}
		}
		connected()
		b.log.Info(ctx, "connected", logger.String("endpoint", origin))

		stop := context.AfterFunc(ctx, func() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsCloseTimeout))
			_ = conn.Close()
		})
		defer stop()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("read %s: %w", origin, err)
			}
			if kind != websocket.TextMessage {
				continue
			}
			if mb.Push(frame{origin: origin, data: data}) {
				metrics.RecordMailboxDropped(b.name)
			}
		}
	}
}

// sessionEnded logs a finished session and counts the reconnect.
func (b *base) sessionEnded(origin string) func(context.Context, error, time.Duration) {
	return func(ctx context.Context, err error, wait time.Duration) {
		metrics.RecordConnectorReconnect(b.name)
		if err != nil {
			metrics.RecordConnectorError(b.name, errorKind(err))
		}
		b.log.Warn(ctx, "disconnected, reconnecting",
			logger.String("endpoint", origin), logger.Duration("wait", wait), logger.Error(err))
	}
}

// drain hands queued items to fn until ctx ends.
func drain[T any](ctx context.Context, mb *Mailbox[T], fn func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-mb.Ready():
		}
		for {
			v, ok := mb.Pop()
			if !ok {
				break
			}
			fn(v)
		}
	}
}

// drainPaced hands at most one item to fn per pace tick. With a
// non-positive pace it behaves like drain.
func drainPaced[T any](ctx context.Context, mb *Mailbox[T], pace time.Duration, fn func(T)) {
	if pace <= 0 {
		drain(ctx, mb, fn)
		return
	}
	t := time.NewTicker(pace)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if v, ok := mb.Pop(); ok {
				fn(v)
			}
		}
	}
}
