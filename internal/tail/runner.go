// Package tail implements the lobstream-tail tool: a terminal viewer that
// follows the relay stream through the client consumer.
package tail

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/okian/lobstream/internal/client"
	"github.com/okian/lobstream/pkg/logger"
)

// Run follows the stream until ctx is done or cfg.Duration elapses.
func Run(ctx context.Context, cfg *Config, out io.Writer) error {
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	opts := []client.Option{
		client.WithSources(cfg.Sources...),
		client.WithTopics(cfg.Topics...),
		client.WithPace(cfg.Rate),
		client.WithSettle(cfg.Settle),
	}
	consumer, err := client.New(cfg.URL, NewPrinter(out), opts...)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	log := logger.Get().Named("tail")
	log.Info(ctx, "following stream",
		logger.String("url", consumer.URL()),
		logger.Duration("rate", cfg.Rate))

	err = consumer.Run(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	s := consumer.Stats()
	if cfg.Verbose {
		fmt.Fprintf(out, "received=%d duplicates=%d dropped=%d rendered=%d queued=%d\n",
			s.Received, s.Duplicates, s.Dropped, s.Rendered, s.Queued)
	}
	if err != nil {
		return fmt.Errorf("follow stream: %w", err)
	}
	return nil
}

// ShowHelp prints usage information for the tail tool.
func ShowHelp(out io.Writer) {
	_, _ = io.WriteString(out, `lobstream-tail
==============

Follows a lobstream relay stream and prints posts at a readable pace.

Usage:
  lobstream-tail [options]

Options:
  -url string
        Stream endpoint (default "http://localhost:9080/api/stream")
  -sources string
        Comma list of sources to keep, e.g. reddit,nostr
  -topics string
        Comma list of topics to keep, e.g. ai,politics
  -rate duration
        Interval between paced posts (default 4s)
  -settle duration
        Wait after connecting before printing the backfill (default 300ms)
  -for duration
        Stop after this long (default: run until interrupted)
  -verbose
        Print consumer counters on exit
  -help
        Show this help message

Examples:
  lobstream-tail -url http://localhost:9080/api/stream -topics ai -rate 2s
`)
}
