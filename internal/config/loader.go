package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix   = "LOBSTREAM_"
	envFilePath = "LOBSTREAM_CONFIG"
)

// wellKnownEnv maps conventional unprefixed variables onto config keys.
var wellKnownEnv = map[string]string{ //nolint:gochecknoglobals // static mapping
	"ANTHROPIC_API_KEY": "anthropic_api_key",
	"MOLTBOOK_API_KEY":  "moltbook_api_key",
	"REDIS_URL":         "redis_url",
	"DATABASE_URL":      "database_url",
	"GITHUB_TOKEN":      "github_token",
	"MASTODON_TOKEN":    "mastodon_token",
	"PORT":              "health_port",
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if LOBSTREAM_CONFIG is set
//  3. well-known unprefixed env (ANTHROPIC_API_KEY, REDIS_URL, PORT, ...)
//  4. env (prefix LOBSTREAM_)
func Load(_ context.Context) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path := os.Getenv(envFilePath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	wellKnown := env.Provider("", ".", func(s string) string {
		return wellKnownEnv[s]
	})
	if err := k.Load(wellKnown, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// LOBSTREAM_SCORER_BATCH_SIZE -> scorer_batch_size
	prefixed := env.Provider(envPrefix, ".", func(s string) string {
		if s == envFilePath {
			return ""
		}
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
