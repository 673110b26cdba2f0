// Package httpapi is the small JSON-over-HTTP client shared by the DevOps backends.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/hrygo/chatops/plugin/ai/timeout"
)

// maxErrorBody is how much of a failed response body is kept in a StatusError.
const maxErrorBody = 512

// maxBody caps successful response bodies.
const maxBody = 8 << 20

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	Backend    string
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s %s returned %d: %s", e.Backend, e.Method, e.URL, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	// Backend names the upstream in errors and logs.
	Backend string
	BaseURL string
	// Token is sent as a bearer token.
	Token string
	// Username and Password enable basic auth when Token is empty.
	Username string
	Password string
	// TrustedHosts lists extra hosts that receive credentials. The base url host
	// always does; any other host is requested without credentials.
	TrustedHosts []string
	// Accept overrides the Accept header. Defaults to application/json.
	Accept string
	// RPS limits outgoing requests per second. Zero disables limiting.
	RPS   float64
	Burst int

	// CacheTTL caches successful JSON responses for this long. Zero disables caching.
	CacheTTL time.Duration

	Timeout   time.Duration
	Transport http.RoundTripper
}

// Client performs authenticated GET requests against one backend.
type Client struct {
	backend string
	baseURL string
	accept  string
	http    *http.Client
	limiter *rate.Limiter
	cache   *responseCache
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%s: base url is required", opts.Backend)
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: invalid base url %q", opts.Backend, opts.BaseURL)
	}

	requestTimeout := opts.Timeout
	if requestTimeout <= 0 {
		requestTimeout = timeout.HTTPClientTimeout
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var authed http.RoundTripper
	switch {
	case opts.Token != "":
		authed = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
			Base:   base,
		}
	case opts.Username != "" || opts.Password != "":
		authed = &basicAuthTransport{username: opts.Username, password: opts.Password, base: base}
	default:
		authed = base
	}
	transport := newHostScopedTransport(authed, base, append([]string{u.Host}, opts.TrustedHosts...)...)

	accept := opts.Accept
	if accept == "" {
		accept = "application/json"
	}

	c := &Client{
		backend: opts.Backend,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		accept:  accept,
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	if opts.CacheTTL > 0 {
		c.cache = newResponseCache(DefaultCacheCapacity, opts.CacheTTL)
	}
	return c, nil
}

// BaseURL returns the configured base url without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON requests path (already escaped, relative to the base url) and decodes the body into out.
// Responses are served from the cache when one is configured.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	data, cached := c.cached(target)
	if !cached {
		body, err := c.get(ctx, target, c.accept)
		if err != nil {
			return err
		}
		defer body.Close()

		data, err = io.ReadAll(io.LimitReader(body, maxBody))
		if err != nil {
			return fmt.Errorf("%s: failed to read response from %s: %w", c.backend, path, err)
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to decode response from %s: %w", c.backend, path, err)
	}
	if !cached && c.cache != nil {
		c.cache.set(target, data)
	}
	return nil
}

// InvalidateCache drops every cached response.
func (c *Client) InvalidateCache() {
	if c.cache != nil {
		c.cache.invalidate("")
	}
}

func (c *Client) cached(target string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.get(target)
}

// GetText requests an absolute url and returns the body as text.
// Credentials are sent only when the url host is trusted.
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	body, err := c.get(ctx, rawURL, "text/plain, */*")
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxBody))
	if err != nil {
		return "", fmt.Errorf("%s: failed to read response from %s: %w", c.backend, rawURL, err)
	}
	return string(data), nil
}

func (c *Client) get(ctx context.Context, target, accept string) (io.ReadCloser, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limit wait: %w", c.backend, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", c.backend, err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "chatops")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", c.backend, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Backend:    c.backend,
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	return resp.Body, nil
}
