package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidBaseURL is returned by NewClient for a base URL that is not an
// absolute http or https URL.
var ErrInvalidBaseURL = errors.New("invalid analysis base url")

// RetryPolicy controls how retryable responses (429, 5xx) are re-sent.
type RetryPolicy struct {
	MaxRetries int           // Re-sends after the first request
	BaseDelay  time.Duration // Doubles per retry, jittered by +/-50%
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second}
}

// Client talks to the analysis service.
type Client struct {
	base       *url.URL
	header     http.Header
	httpClient *http.Client
	logger     *slog.Logger
	retry      RetryPolicy
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client rooted at baseURL. A trailing slash is ignored.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawPath = ""

	c := &Client{
		base:       base,
		header:     http.Header{"Accept": []string{"application/json"}},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		retry:      DefaultRetryPolicy(),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "analysis_api", "base_url", c.BaseURL())

	return c, nil
}

// WithAPIKey sends key as a bearer token. An empty key sends nothing.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		if key == "" {
			c.header.Del("Authorization")
			return
		}
		c.header.Set("Authorization", "Bearer "+key)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.header.Set("User-Agent", ua)
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetryPolicy replaces the retry policy. Negative values are treated as
// zero.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = RetryPolicy{
			MaxRetries: max(p.MaxRetries, 0),
			BaseDelay:  max(p.BaseDelay, 0),
		}
	}
}

// WithLogger sets the logger. Nil keeps the default.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client. Nil keeps the default.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// endpoint resolves path against the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
