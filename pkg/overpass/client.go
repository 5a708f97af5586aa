// Package overpass is a minimal client for the Overpass API, the public
// read-only query service over OpenStreetMap data.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultEndpoint  = "https://overpass-api.de/api/interpreter"
	DefaultUserAgent = "amenity-finder/1.0"

	defaultHTTPTimeout = 30 * time.Second
	defaultCacheTTL    = time.Hour
)

// Cache stores raw Overpass responses keyed by query text.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Client queries an Overpass endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
	cache      Cache
	cacheTTL   time.Duration
	inflight   *semaphore.Weighted
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (used for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithEndpoint overrides the interpreter URL.
func WithEndpoint(endpoint string) Option {
	return func(cl *Client) {
		if strings.TrimSpace(endpoint) != "" {
			cl.endpoint = endpoint
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// WithCache enables response caching.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = cache
		if ttl > 0 {
			cl.cacheTTL = ttl
		}
	}
}

// WithMaxConcurrent caps the number of requests in flight to the endpoint.
func WithMaxConcurrent(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.inflight = semaphore.NewWeighted(n)
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		endpoint:   DefaultEndpoint,
		userAgent:  DefaultUserAgent,
		cacheTTL:   defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Around runs q and returns the decoded response. A single GET is issued per
// call unless the cache already holds the query.
func (c *Client) Around(ctx context.Context, q Query) (*Response, error) {
	ql := q.String()
	key := "overpass:" + ql

	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, key); err == nil && len(cached) > 0 {
			var resp Response
			if err := json.Unmarshal(cached, &resp); err == nil {
				log.Debug().Str("query", ql).Msg("overpass cache hit")
				return &resp, nil
			}
		}
	}

	body, err := c.fetch(ctx, ql)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, body, c.cacheTTL); err != nil {
			log.Warn().Err(err).Msg("failed to cache overpass response")
		}
	}
	return &resp, nil
}

func (c *Client) fetch(ctx context.Context, ql string) ([]byte, error) {
	if c.inflight != nil {
		if err := c.inflight.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("wait for overpass slot: %w", err)
		}
		defer c.inflight.Release(1)
	}

	reqURL := fmt.Sprintf("%s?data=%s", c.endpoint, url.QueryEscape(ql))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build overpass request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request failed: %w", err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("query", ql).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("overpass request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("overpass returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
