// Package llm is a minimal client for the Anthropic Messages API used by the
// Tier 2 scorer.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const (
	defaultAPIURL     = "https://api.anthropic.com"
	defaultModel      = "claude-haiku-4-5-20251001"
	defaultMaxTokens  = 1024
	anthropicVersion  = "2023-06-01"
	maxErrorBodyBytes = 4096
)

// Client sends single-turn, non-streaming message requests.
type Client struct {
	http      *http.Client
	apiKey    string
	apiURL    string
	model     string
	maxTokens int

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	executor   failsafe.Executor[*http.Response]
}

// New creates a client. An empty key is an error: callers that want Tier 2
// disabled should not build a client at all.
func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		http:       &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		apiURL:     defaultAPIURL,
		model:      defaultModel,
		maxTokens:  defaultMaxTokens,
		maxRetries: 2,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.executor = failsafe.With(newRetryPolicy(c.maxRetries, c.baseDelay, c.maxDelay))
	return c, nil
}

//nolint:bodyclose // generic type parameter, not a live response
func newRetryPolicy(maxRetries int, base, maxDelay time.Duration) retrypolicy.RetryPolicy[*http.Response] {
	return retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(base, maxDelay).
		WithMaxRetries(maxRetries).
		WithJitterFactor(0.1).
		HandleIf(shouldRetry).
		Build()
}

// statusError is a non-2xx reply. Its body has already been consumed.
type statusError struct {
	code   int
	status string
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %s: %s", ErrStatus, e.status, e.body)
}

func (e *statusError) Unwrap() error { return ErrStatus }

// shouldRetry retries network errors, server errors and rate limits.
func shouldRetry(resp *http.Response, err error) bool {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return retryableStatus(se.code)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case err != nil, resp == nil:
		return true
	}
	return retryableStatus(resp.StatusCode)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	}
	return false
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends system and user as one request and returns the first text block.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(messageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	resp, err := c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v1/messages", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, fmt.Errorf("anthropic: create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)
		req.Header.Set("Anthropic-Version", anthropicVersion)
		r, doErr := c.http.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
			defer r.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBodyBytes))
			return nil, &statusError{code: r.StatusCode, status: r.Status, body: strings.TrimSpace(string(body))}
		}
		return r, nil
	})
	if err != nil {
		if errors.Is(err, ErrStatus) {
			return "", err
		}
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	var out messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	for _, block := range out.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", ErrEmptyResponse
}
