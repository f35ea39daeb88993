package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultFetchTimeout = 20 * time.Second
	maxBodyBytes        = 8 << 20
)

// Fetcher performs rate-limited JSON GETs with a fixed user agent and an
// optional bearer token. The limiter enforces the inter-request delay.
type Fetcher struct {
	http      *http.Client
	userAgent string
	token     string
	limiter   *rate.Limiter
	accept    string
}

// FetchOption configures a Fetcher.
type FetchOption func(*Fetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) FetchOption {
	return func(f *Fetcher) {
		if hc != nil {
			f.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetchOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithBearer sends Authorization: Bearer token when token is not empty.
func WithBearer(token string) FetchOption {
	return func(f *Fetcher) { f.token = token }
}

// WithDelay spaces consecutive requests at least d apart.
func WithDelay(d time.Duration) FetchOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
}

// WithAccept sets the Accept header.
func WithAccept(accept string) FetchOption {
	return func(f *Fetcher) { f.accept = accept }
}

// NewFetcher creates a fetcher with no delay and a default timeout.
func NewFetcher(opts ...FetchOption) *Fetcher {
	f := &Fetcher{
		http:      &http.Client{Timeout: defaultFetchTimeout},
		userAgent: DefaultUserAgent,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		accept:    "application/json",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetJSON waits for the limiter, GETs url and decodes the body into v.
func (f *Fetcher) GetJSON(ctx context.Context, url string, v any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate wait: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", f.accept)
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, URL: url}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, url, err)
	}
	return nil
}
