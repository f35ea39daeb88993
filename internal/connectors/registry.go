package connectors

import (
	"fmt"
	"sort"
)

// factories maps registry names to constructors.
var factories = map[string]func(Config) Connector{ //nolint:gochecknoglobals // fixed registry
	"mastodon":   func(c Config) Connector { return NewMastodon(c) },
	"fourchan":   func(c Config) Connector { return NewFourChan(c) },
	"reddit":     func(c Config) Connector { return NewReddit(c) },
	"lobsters":   func(c Config) Connector { return NewLobsters(c) },
	"github":     func(c Config) Connector { return NewGitHub(c) },
	"moltbook":   func(c Config) Connector { return NewMoltbook(c) },
	"bluesky":    func(c Config) Connector { return NewBluesky(c) },
	"nostr":      func(c Config) Connector { return NewNostr(c) },
	"wikipedia":  func(c Config) Connector { return NewWikipedia(c) },
	"hackernews": func(c Config) Connector { return NewHackerNews(c) },
}

// New builds the connector registered under name.
func New(name string, cfg Config) (Connector, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return f(cfg), nil
}

// Build constructs every named connector, failing on the first unknown name.
func Build(names []string, cfg Config) ([]Connector, error) {
	out := make([]Connector, 0, len(names))
	for _, n := range names {
		c, err := New(n, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Names lists the registered connector names in sorted order.
func Names() []string {
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
