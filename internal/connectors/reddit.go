package connectors

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/internal/domain/normalize"
)

const (
	redditSeenCap   = 10000
	redditMaxText   = 500
	redditMinLength = 15
)

// DefaultSubreddits are polled when none are configured.
var DefaultSubreddits = []string{ //nolint:gochecknoglobals // connector defaults
	"artificial", "MachineLearning", "ChatGPT", "ClaudeAI",
	"LocalLLM", "singularity", "StableDiffusion", "Futurology",
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Selftext  string `json:"selftext"`
	Author    string `json:"author"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Preview   *struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
}

// Reddit polls the newest listing of each subreddit.
type Reddit struct {
	base
	BaseURL    string
	Subreddits []string
	Interval   time.Duration
	Delay      time.Duration
	fetch      *Fetcher
}

// NewReddit creates the reddit connector.
func NewReddit(cfg Config) *Reddit {
	return &Reddit{
		base:       newBase("reddit", redditSeenCap, cfg),
		BaseURL:    "https://www.reddit.com",
		Subreddits: DefaultSubreddits,
		Interval:   60 * time.Second,
		Delay:      2500 * time.Millisecond,
	}
}

// Start launches the poll loop.
func (r *Reddit) Start(ctx context.Context, sink Sink) *Handle {
	r.fetch = r.cfg.fetcher(r.Delay)
	h := NewHandle(ctx, r.name)
	h.Go(func(ctx context.Context) {
		runPoll(ctx, PollTask{Name: r.name, Interval: r.Interval, Run: func(ctx context.Context) error {
			r.cycle(ctx, sink)
			return nil
		}}, nil)
	})
	return h
}

func (r *Reddit) cycle(ctx context.Context, sink Sink) {
	for _, sub := range r.Subreddits {
		if ctx.Err() != nil {
			return
		}
		var listing redditListing
		u := fmt.Sprintf("%s/r/%s/new.json?limit=25&raw_json=1", r.BaseURL, url.PathEscape(sub))
		if err := r.fetch.GetJSON(ctx, u, &listing); err != nil {
			r.fail(ctx, "r/"+sub, err)
			continue
		}
		for _, c := range listing.Data.Children {
			if !r.fresh(ctx, c.Data.Name) {
				continue
			}
			p, ok := adaptReddit(c.Data)
			if !ok {
				r.reject("filtered")
				continue
			}
			r.emit(ctx, sink, p)
		}
	}
}

// adaptReddit converts one listing child.
func adaptReddit(rp redditPost) (model.Post, bool) { //nolint:gocritic // hugeParam: decoded values
	raw := strings.TrimSpace(rp.Title)
	if self := strings.TrimSpace(rp.Selftext); self != "" {
		raw += " — " + self
	}
	text := normalize.CollapseWhitespace(normalize.DecodeEntities(raw))
	text = normalize.Truncate(text, redditMaxText, "...")
	text, ok := acceptPlain(text, redditMinLength)
	if !ok {
		return model.Post{}, false
	}
	author := rp.Author
	if author == "" {
		author = "anonymous"
	}
	return model.Post{
		Source:   "reddit",
		Text:     text,
		Author:   "u/" + author,
		ImageURL: redditImage(rp),
	}, true
}

func redditImage(rp redditPost) string { //nolint:gocritic // hugeParam: decoded values
	if rp.Preview != nil && len(rp.Preview.Images) > 0 && rp.Preview.Images[0].Source.URL != "" {
		return strings.ReplaceAll(rp.Preview.Images[0].Source.URL, "&amp;", "&")
	}
	if imageExt.MatchString(rp.URL) {
		return rp.URL
	}
	if strings.HasPrefix(rp.Thumbnail, "http") {
		return rp.Thumbnail
	}
	return ""
}
