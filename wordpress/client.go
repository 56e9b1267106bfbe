// Package wordpress is a read-only client for the WordPress REST API
// (wp-json/wp/v2). Responses go through the tag cache when one is configured,
// tagged so the revalidation webhook can drop them.
package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eringen/headpress/cache"
	"github.com/eringen/headpress/metrics"
)

const (
	apiPrefix = "/wp-json/wp/v2/"

	headerTotal      = "X-WP-Total"
	headerTotalPages = "X-WP-TotalPages"

	maxBodyBytes = 16 << 20
)

// Client fetches content from one WordPress site.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *cache.TagCache
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache routes every GET through tc.
func WithCache(tc *cache.TagCache) Option {
	return func(c *Client) { c.cache = tc }
}

// WithLogger sets the logger for swallowed list failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Client for the site at baseURL (e.g.
// "https://cms.example.com").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the CMS origin the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// endpoint builds the absolute URL for path with query. url.Values.Encode
// sorts keys, so equal queries always produce the same cache key.
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// get issues a cached GET and returns the raw body and pagination headers.
func (c *Client) get(ctx context.Context, kind Kind, path string, query url.Values, tags []string) (cache.Entry, error) {
	endpoint := c.endpoint(path, query)
	return c.cache.Fetch(ctx, endpoint, tags, func(ctx context.Context) (cache.Entry, error) {
		return c.do(ctx, kind, endpoint)
	})
}

func (c *Client) do(ctx context.Context, kind Kind, endpoint string) (cache.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return cache.Entry{}, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveFetch(kind.Endpoint, 0, time.Since(start))
		return cache.Entry{}, fmt.Errorf("wordpress: fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveFetch(kind.Endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return cache.Entry{}, &Error{Status: resp.StatusCode, Endpoint: endpoint}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return cache.Entry{}, fmt.Errorf("wordpress: read %s: %w", endpoint, err)
	}
	header := http.Header{}
	for _, h := range []string{headerTotal, headerTotalPages} {
		if v := resp.Header.Get(h); v != "" {
			header.Set(h, v)
		}
	}
	return cache.Entry{Body: body, Header: header}, nil
}

func decode[T any](e cache.Entry) (T, error) {
	var v T
	if err := json.Unmarshal(e.Body, &v); err != nil {
		return v, fmt.Errorf("wordpress: decode %s: %w", e.Key, err)
	}
	return v, nil
}

func headerInt(h http.Header, key string) int {
	n, err := strconv.Atoi(h.Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
