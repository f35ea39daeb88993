package connectors

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff bounds reconnect delays of a persistent session.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff starts at 1s and doubles to a 30s ceiling.
var DefaultBackoff = Backoff{Base: time.Second, Max: 30 * time.Second} //nolint:gochecknoglobals // immutable default

// NextDelay doubles prev up to Max. A non-positive prev yields Base.
func (b Backoff) NextDelay(prev time.Duration) time.Duration {
	if prev <= 0 {
		return b.Base
	}
	next := prev * 2
	if next > b.Max || next <= 0 {
		return b.Max
	}
	return next
}

// Jitter scales d by a factor in [0.5, 1.5) drawn from rnd and caps it at Max.
func (b Backoff) Jitter(d time.Duration, rnd func() float64) time.Duration {
	j := time.Duration(float64(d) * (0.5 + rnd()))
	if j > b.Max {
		return b.Max
	}
	return j
}

// SessionFunc runs one connection until it ends. It calls connected once
// the connection is established so the backoff resets.
type SessionFunc func(ctx context.Context, connected func()) error

// runSession reconnects fn with jittered exponential backoff until ctx is
// done. onEnd observes each session's terminating error.
func runSession(ctx context.Context, b Backoff, fn SessionFunc, onEnd func(context.Context, error, time.Duration)) {
	delay := b.Base
	for ctx.Err() == nil {
		err := fn(ctx, func() { delay = b.Base })
		if ctx.Err() != nil {
			return
		}
		wait := b.Jitter(delay, rand.Float64)
		if onEnd != nil {
			onEnd(ctx, err, wait)
		}
		if !sleep(ctx, wait) {
			return
		}
		delay = b.NextDelay(delay)
	}
}
