package connectors

import (
	"context"
	"time"
)

// PollTask is a fixed-interval, non-overlapping job. The next cycle is
// scheduled Interval after the previous one returns.
type PollTask struct {
	Name     string
	Interval time.Duration
	// Stagger delays the first cycle.
	Stagger time.Duration
	Run     func(ctx context.Context) error
}

// runPoll executes task until ctx is done. Cycle errors are reported to
// onError and never stop the loop.
func runPoll(ctx context.Context, task PollTask, onError func(context.Context, error)) {
	if !sleep(ctx, task.Stagger) {
		return
	}
	for {
		if err := task.Run(ctx); err != nil && ctx.Err() == nil && onError != nil {
			onError(ctx, err)
		}
		if !sleep(ctx, task.Interval) {
			return
		}
	}
}

// sleep waits d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
