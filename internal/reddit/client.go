// Package reddit is a minimal client for the provider's OAuth API: the
// newest-submissions listing, a polling rate cap, and typed rate-limit
// rejections carrying the provider's backoff hints.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"pulse/ingest/internal/ratelimit"
)

const (
	defaultBaseURL  = "https://oauth.reddit.com"
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	// requestTimeout bounds every provider call so a stalled connection
	// cannot hang the single-threaded ingest loop.
	requestTimeout = 10 * time.Second

	// MaxPageSize is the provider's listing page cap.
	MaxPageSize = 100
)

// RateLimitError is returned when the provider rejects a request with 429.
// It carries the response's backoff hints for the governor.
type RateLimitError struct {
	Hints ratelimit.Hints
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider rate limited (retry_after=%.0fs reset=%.0fs)", e.Hints.RetryAfter, e.Hints.Reset)
}

// Config configures the provider client.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	RPS          float64 // polling rate cap; <= 0 disables pacing

	// Overridable in tests.
	BaseURL  string
	TokenURL string
}

// Client talks to the provider API with app-only OAuth credentials.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
}

// NewClient builds a provider client. The oauth2 transport refreshes the
// app-only token as needed; the limiter paces requests to the configured cap.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("provider client id and secret are required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}
	httpClient := cc.Client(ctx)
	httpClient.Timeout = requestTimeout

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}

	return &Client{
		http:      httpClient,
		baseURL:   baseURL,
		userAgent: cfg.UserAgent,
		limiter:   limiter,
	}, nil
}

// NewSubmissions fetches one page of the newest-first submission listing for
// the '+'-joined subreddit set. after is the pagination cursor from the
// previous page; empty starts at the newest item.
func (c *Client) NewSubmissions(ctx context.Context, subreddits, after string, limit int) (*Listing, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("raw_json", "1")
	if after != "" {
		q.Set("after", after)
	}

	u := fmt.Sprintf("%s/r/%s/new?%s", c.baseURL, url.PathEscape(subreddits), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{Hints: ratelimit.HintsFromHeaders(resp.Header)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing request failed: status %d", resp.StatusCode)
	}

	var envelope listingEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	listing := &Listing{After: envelope.Data.After}
	for _, child := range envelope.Data.Children {
		listing.Items = append(listing.Items, child.Data)
	}
	return listing, nil
}
