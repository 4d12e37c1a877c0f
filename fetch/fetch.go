// Package fetch provides a reference implementation of classify.Fetcher:
// a rate-limited HTTP client that caps requests per host, plus a couple of
// bundled classify.CategoryClassifier implementations (PDF magic-byte
// sniffing, HTML alternate-link extraction).
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dissemin/urltheory/classify"
)

// Config tunes the Client's rate limiting and HTTP behavior.
type Config struct {
	// RequestsPerSecond caps outbound requests to any single host. Zero
	// means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	// Burst is the rate limiter's burst size; if zero, defaults to 1.
	Burst int `mapstructure:"burst"`
	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxBodyBytes caps how much of a response body is read. Zero means no
	// cap.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
	// UserAgent is sent on every request.
	UserAgent string `mapstructure:"user_agent"`
}

// DefaultConfig returns conservative defaults suitable for crawling
// third-party hosts politely.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 1,
		Burst:             1,
		Timeout:           15 * time.Second,
		MaxBodyBytes:      1 << 20,
		UserAgent:         "urltheory-fetch/1.0",
	}
}

// Client is classify.Fetcher, backed by net/http with a per-host
// golang.org/x/time/rate limiter, mirroring the teacher corpus's crawler
// rate-limiting pattern (one limiter, Wait(ctx) before every request).
type Client struct {
	cfg    Config
	http   *http.Client
	mu     sync.Mutex
	limits map[string]*rate.Limiter
}

var _ classify.Fetcher = (*Client)(nil)

// New builds a Client. The underlying http.Client is configured to not
// follow redirects automatically: classify.Classifier owns redirect
// following so it can bound history length and detect cycles.
func New(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limits: make(map[string]*rate.Limiter),
	}
}

func (c *Client) limiterFor(host string) *rate.Limiter {
	if c.cfg.RequestsPerSecond <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limits[host]
	if !ok {
		burst := c.cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(c.cfg.RequestsPerSecond), burst)
		c.limits[host] = l
	}
	return l
}

// Fetch implements classify.Fetcher. It issues a GET (never following
// redirects itself) and reports a 3xx response's Location as the Redirect
// field instead of an error.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*classify.Response, error) {
	target, err := normalizeForFetch(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	if l := c.limiterFor(target.Host); l != nil {
		if err := l.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetch: rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	out := &classify.Response{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Header:     map[string][]string(resp.Header),
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		out.Redirect = resp.Header.Get("Location")
		return out, nil
	}

	var reader io.Reader = resp.Body
	if c.cfg.MaxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, c.cfg.MaxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading body: %w", err)
	}
	out.Body = body
	return out, nil
}

// normalizeForFetch adds an https scheme when the input (as the tokenizer
// accepts) omits one, since net/http requires an absolute URL. A bare
// "host/path" is read as a host followed by a path.
func normalizeForFetch(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		if !strings.HasPrefix(raw, "//") {
			raw = "//" + raw
		}
		return url.Parse("https:" + raw)
	}
	return u, nil
}
