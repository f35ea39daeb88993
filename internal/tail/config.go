package tail

import (
	"strings"
	"time"
)

// Config holds the tail tool settings.
type Config struct {
	URL      string        // Stream endpoint, e.g. http://localhost:9080/api/stream
	Sources  []string      // Optional source allow-list
	Topics   []string      // Optional topic allow-list
	Rate     time.Duration // Paced render interval
	Settle   time.Duration // Wait after connecting before the backfill is shown
	Duration time.Duration // Stop after this long; zero runs until interrupted
	Verbose  bool          // Print a summary line on exit
}

// SplitList parses a comma list flag, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
