package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/lobstream/internal/tail"
	"github.com/okian/lobstream/pkg/logger"
)

// Default configuration constants.
const (
	defaultURL    = "http://localhost:9080/api/stream"
	defaultRate   = 4 * time.Second
	defaultSettle = 300 * time.Millisecond
)

func main() {
	var (
		streamURL = flag.String("url", defaultURL, "Stream endpoint")
		sources   = flag.String("sources", "", "Comma list of sources to keep")
		topics    = flag.String("topics", "", "Comma list of topics to keep")
		rate      = flag.Duration("rate", defaultRate, "Interval between paced posts")
		settle    = flag.Duration("settle", defaultSettle, "Wait after connecting before printing the backfill")
		duration  = flag.Duration("for", 0, "Stop after this long (0 runs until interrupted)")
		verbose   = flag.Bool("verbose", false, "Print consumer counters and logs to stderr")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		tail.ShowHelp(os.Stdout)
		return
	}

	// Logs go to stderr so stdout stays a clean post feed.
	var logOut io.Writer = io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	if err := logger.Init(logger.WithOutput(logOut)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &tail.Config{
		URL:      *streamURL,
		Sources:  tail.SplitList(*sources),
		Topics:   tail.SplitList(*topics),
		Rate:     *rate,
		Settle:   *settle,
		Duration: *duration,
		Verbose:  *verbose,
	}
	if err := tail.Run(ctx, cfg, os.Stdout); err != nil {
		os.Stderr.WriteString("tail failed: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
