package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/okian/lobstream/internal/domain/model"
)

const (
	githubSeenCap   = 5000
	githubMinLength = 15
	githubPerPage   = 15
	githubMaxBody   = 200
)

// DefaultRepos are watched when none are configured.
var DefaultRepos = []string{ //nolint:gochecknoglobals // connector defaults
	"openai/openai-cookbook",
	"langchain-ai/langchain",
	"anthropics/anthropic-cookbook",
	"huggingface/transformers",
	"ollama/ollama",
	"ggerganov/llama.cpp",
	"microsoft/autogen",
	"Significant-Gravitas/AutoGPT",
}

type githubPayload struct {
	Action  string `json:"action"`
	Ref     string `json:"ref"`
	RefType string `json:"ref_type"`
	Commits []struct {
		Message string `json:"message"`
	} `json:"commits"`
	Issue *struct {
		Title string `json:"title"`
	} `json:"issue"`
	Comment *struct {
		Body string `json:"body"`
	} `json:"comment"`
	PullRequest *struct {
		Title string `json:"title"`
	} `json:"pull_request"`
}

// GitHub polls the public event feed of a fixed set of repositories.
type GitHub struct {
	base
	Repos    []string
	Interval time.Duration
	Delay    time.Duration
	// BaseURL overrides the API endpoint; it must end with a slash.
	BaseURL string
	client  *gh.Client
}

// NewGitHub creates the repository activity connector.
func NewGitHub(cfg Config) *GitHub {
	return &GitHub{
		base:     newBase("github", githubSeenCap, cfg),
		Repos:    DefaultRepos,
		Interval: 120 * time.Second,
		Delay:    3 * time.Second,
	}
}

func (g *GitHub) newClient(ctx context.Context) (*gh.Client, error) {
	hc := g.cfg.HTTPClient
	if g.cfg.GitHubToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: g.cfg.GitHubToken})
		hc = oauth2.NewClient(ctx, ts)
		hc.Timeout = defaultFetchTimeout
	}
	if hc == nil {
		hc = &http.Client{Timeout: defaultFetchTimeout}
	}
	c := gh.NewClient(hc)
	c.UserAgent = g.cfg.userAgent()
	if g.BaseURL != "" {
		u, err := url.Parse(g.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
		c.BaseURL = u
	}
	return c, nil
}

// Start launches the poll loop.
func (g *GitHub) Start(ctx context.Context, sink Sink) *Handle {
	h := NewHandle(ctx, g.name)
	h.Go(func(ctx context.Context) {
		client, err := g.newClient(ctx)
		if err != nil {
			g.fail(ctx, "client", err)
			return
		}
		g.client = client
		runPoll(ctx, PollTask{Name: g.name, Interval: g.Interval, Run: func(ctx context.Context) error {
			g.cycle(ctx, sink)
			return nil
		}}, nil)
	})
	return h
}

func (g *GitHub) cycle(ctx context.Context, sink Sink) {
	for i, full := range g.Repos {
		if i > 0 && !sleep(ctx, g.Delay) {
			return
		}
		owner, repo, ok := strings.Cut(full, "/")
		if !ok {
			continue
		}
		events, _, err := g.client.Activity.ListRepositoryEvents(ctx, owner, repo, &gh.ListOptions{PerPage: githubPerPage})
		if err != nil {
			g.fail(ctx, full, wrapGitHubError(err))
			continue
		}
		for _, ev := range events {
			if !g.fresh(ctx, ev.GetID()) {
				continue
			}
			p, ok := adaptGitHub(ev)
			if !ok {
				g.reject("filtered")
				continue
			}
			g.emit(ctx, sink, p)
		}
	}
}

// wrapGitHubError maps go-github failures onto connector sentinels.
func wrapGitHubError(err error) error {
	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		return fmt.Errorf("%w: %s", ErrRateLimited, rle.Message)
	}
	var are *gh.AbuseRateLimitError
	if errors.As(err, &are) {
		return fmt.Errorf("%w: %s", ErrRateLimited, are.Message)
	}
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		se := &StatusError{Code: er.Response.StatusCode, URL: "github"}
		if er.Response.Request != nil {
			se.URL = er.Response.Request.URL.String()
		}
		if se.Code == http.StatusForbidden {
			return fmt.Errorf("%w: %w", ErrRateLimited, se)
		}
		return se
	}
	return err
}

// adaptGitHub renders one repository event as a sentence. Unsupported
// event types and events without usable text are dropped.
func adaptGitHub(ev *gh.Event) (model.Post, bool) {
	text := githubText(ev)
	if text == "" {
		return model.Post{}, false
	}
	text, ok := acceptText(text, githubMinLength)
	if !ok {
		return model.Post{}, false
	}
	author := ev.GetActor().GetLogin()
	if author == "" {
		author = "anonymous"
	}
	return model.Post{Source: "github", Text: text, Author: author}, true
}

func githubText(ev *gh.Event) string {
	repo := ev.GetRepo().GetName()
	actor := ev.GetActor().GetLogin()
	if actor == "" {
		actor = "someone"
	}
	var pl githubPayload
	if ev.RawPayload != nil {
		_ = json.Unmarshal(*ev.RawPayload, &pl)
	}
	action := pl.Action
	if action == "" {
		action = "opened"
	}

	switch ev.GetType() {
	case "PushEvent":
		if len(pl.Commits) == 0 {
			return ""
		}
		first, _, _ := strings.Cut(pl.Commits[len(pl.Commits)-1].Message, "\n")
		if first = strings.TrimSpace(first); first == "" {
			return ""
		}
		return fmt.Sprintf("%s pushed to %s: %s", actor, repo, first)
	case "IssuesEvent":
		if pl.Issue == nil || pl.Issue.Title == "" {
			return ""
		}
		return fmt.Sprintf("%s %s issue on %s: %s", actor, action, repo, pl.Issue.Title)
	case "IssueCommentEvent":
		if pl.Comment == nil || pl.Comment.Body == "" {
			return ""
		}
		body := pl.Comment.Body
		if r := []rune(body); len(r) > githubMaxBody {
			body = string(r[:githubMaxBody])
		}
		return fmt.Sprintf("%s commented on %s: %s", actor, repo, body)
	case "PullRequestEvent":
		if pl.PullRequest == nil || pl.PullRequest.Title == "" {
			return ""
		}
		return fmt.Sprintf("%s %s PR on %s: %s", actor, action, repo, pl.PullRequest.Title)
	case "WatchEvent":
		return fmt.Sprintf("%s starred %s", actor, repo)
	case "ForkEvent":
		return fmt.Sprintf("%s forked %s", actor, repo)
	case "CreateEvent":
		refType := pl.RefType
		if refType == "" {
			refType = "repository"
		}
		if pl.Ref != "" {
			return fmt.Sprintf("%s created %s %s in %s", actor, refType, pl.Ref, repo)
		}
		return fmt.Sprintf("%s created %s %s", actor, refType, repo)
	default:
		return ""
	}
}
