// Package config defines relay configuration and its defaults.
//
// Conventions:
// - Flat koanf keys, one per field, matching the LOBSTREAM_ env names.
// - New() returns defaults; Load layers file and env on top of them.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Event log backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// AllSources lists every connector the relay knows how to run.
var AllSources = []string{ //nolint:gochecknoglobals // fixed registry of connector names
	"mastodon", "fourchan", "reddit", "lobsters", "github",
	"moltbook", "bluesky", "nostr", "wikipedia", "hackernews",
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr is the API and stream listen address.
	Addr string `koanf:"addr"`
	// HealthPort serves the relay health document.
	HealthPort int `koanf:"health_port"`

	LogBackend string `koanf:"log_backend"`
	RedisURL   string `koanf:"redis_url"`
	StreamKey  string `koanf:"stream_key"`
	LogMaxLen  int    `koanf:"log_max_len"`
	// LogExactTrim trims the redis stream to exactly log_max_len after each append.
	LogExactTrim bool `koanf:"log_exact_trim"`

	// ClassificationEnabled gates Tier 1 tagging and therefore Tier 2 routing.
	ClassificationEnabled bool `koanf:"classification_enabled"`

	AnthropicAPIKey       string        `koanf:"anthropic_api_key"`
	AnthropicAPIURL       string        `koanf:"anthropic_api_url"`
	ScorerModel           string        `koanf:"scorer_model"`
	ScorerMaxTokens       int           `koanf:"scorer_max_tokens"`
	ScorerBatchSize       int           `koanf:"scorer_batch_size"`
	ScorerFlushInterval   time.Duration `koanf:"scorer_flush_interval"`
	ScorerThreshold       float64       `koanf:"scorer_threshold"`
	ScorerKeepAtThreshold bool          `koanf:"scorer_keep_at_threshold"`
	ScorerQueueSize       int           `koanf:"scorer_queue_size"`
	ScorerTimeout         time.Duration `koanf:"scorer_timeout"`

	StreamMaxDuration       time.Duration `koanf:"stream_max_duration"`
	StreamPollInterval      time.Duration `koanf:"stream_poll_interval"`
	StreamHeartbeatInterval time.Duration `koanf:"stream_heartbeat_interval"`
	StreamBackfill          int           `koanf:"stream_backfill"`
	StreamPageLimit         int           `koanf:"stream_page_limit"`

	// Sources is a comma list or YAML list of connector names; empty means all.
	Sources []string `koanf:"sources"`

	MoltbookAPIKey string `koanf:"moltbook_api_key"`
	MoltbookAPIURL string `koanf:"moltbook_api_url"`
	GitHubToken    string `koanf:"github_token"`
	MastodonToken  string `koanf:"mastodon_token"`
	UserAgent      string `koanf:"user_agent"`

	DatabaseURL     string `koanf:"database_url"`
	DatabaseMigrate bool   `koanf:"database_migrate"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:   "info",
		LogFormat:  "text",
		Addr:       ":9080",
		HealthPort: 3001,

		LogBackend: BackendMemory,
		StreamKey:  "lobstream:firehose",
		LogMaxLen:  500,

		ClassificationEnabled: true,

		AnthropicAPIURL:       "https://api.anthropic.com",
		ScorerModel:           "claude-haiku-4-5-20251001",
		ScorerMaxTokens:       1024,
		ScorerBatchSize:       15,
		ScorerFlushInterval:   30 * time.Second,
		ScorerThreshold:       0.4,
		ScorerKeepAtThreshold: true,
		ScorerQueueSize:       1000,
		ScorerTimeout:         30 * time.Second,

		StreamMaxDuration:       25 * time.Second,
		StreamPollInterval:      1500 * time.Millisecond,
		StreamHeartbeatInterval: 10 * time.Second,
		StreamBackfill:          30,
		StreamPageLimit:         20,

		MoltbookAPIURL: "https://www.moltbook.com/api/v1",
		UserAgent:      "lobstream-relay/1.0 (art installation; contact: github.com/gtdrag/lobstream)",

		DatabaseMigrate: true,
	}
}

// EnabledSources returns the normalized connector list, defaulting to all.
func (c *Config) EnabledSources() []string {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range c.Sources {
		for _, s := range strings.Split(raw, ",") {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), AllSources...)
	}
	return out
}

// Validate checks the configuration for values the relay cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.HealthPort < 0 || c.HealthPort > 65535:
		return fmt.Errorf("%w: health_port %d out of range", ErrInvalidConfig, c.HealthPort)
	case c.LogBackend != BackendMemory && c.LogBackend != BackendRedis:
		return fmt.Errorf("%w: unknown log_backend %q", ErrInvalidConfig, c.LogBackend)
	case c.LogBackend == BackendRedis && c.RedisURL == "":
		return fmt.Errorf("%w: redis_url is required for the redis backend", ErrInvalidConfig)
	case c.StreamKey == "":
		return fmt.Errorf("%w: stream_key must not be empty", ErrInvalidConfig)
	case c.LogMaxLen <= 0:
		return fmt.Errorf("%w: log_max_len must be positive", ErrInvalidConfig)
	case c.ScorerBatchSize <= 0 || c.ScorerQueueSize <= 0 || c.ScorerMaxTokens <= 0:
		return fmt.Errorf("%w: scorer sizes must be positive", ErrInvalidConfig)
	case c.ScorerFlushInterval <= 0 || c.ScorerTimeout <= 0:
		return fmt.Errorf("%w: scorer intervals must be positive", ErrInvalidConfig)
	case c.ScorerThreshold < 0 || c.ScorerThreshold > 1:
		return fmt.Errorf("%w: scorer_threshold must be within [0,1]", ErrInvalidConfig)
	case c.StreamMaxDuration <= 0 || c.StreamPollInterval <= 0 || c.StreamHeartbeatInterval <= 0:
		return fmt.Errorf("%w: stream intervals must be positive", ErrInvalidConfig)
	case c.StreamBackfill < 0 || c.StreamPageLimit <= 0:
		return fmt.Errorf("%w: stream_backfill and stream_page_limit are invalid", ErrInvalidConfig)
	}

	known := make(map[string]bool, len(AllSources))
	for _, s := range AllSources {
		known[s] = true
	}
	for _, s := range c.EnabledSources() {
		if !known[s] {
			return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, s)
		}
	}
	return nil
}
