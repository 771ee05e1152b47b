package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fieldops/portal-sync/internal/common"
	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/metrics"

	"golang.org/x/sync/singleflight"
)

// Options configures a Client
type Options struct {
	BaseURL        string
	APIKey         string
	BearerToken    string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	CacheTTL       time.Duration
	PageSize       int
}

// RequestOptions tunes a single Request call
type RequestOptions struct {
	Query url.Values
	Body  any
	// NoCache skips the cache lookup and request collapsing; the fresh
	// response still refreshes the cache.
	NoCache bool
}

// Client is the single choke point for upstream HTTP calls
type Client struct {
	baseURL     string
	apiKey      string
	bearerToken string
	timeout     time.Duration
	maxRetries  int
	baseDelay   time.Duration
	cacheTTL    time.Duration
	pageSize    int

	http    *http.Client
	limiter RateLimiter
	cache   common.CacheInterface
	group   singleflight.Group
	metrics *metrics.MetricsRegistry
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client. Exactly one of APIKey or BearerToken must be set.
// cache may be nil to disable response caching.
func NewClient(opts Options, limiter RateLimiter, cache common.CacheInterface, m *metrics.MetricsRegistry) (*Client, error) {
	if (opts.APIKey == "") == (opts.BearerToken == "") {
		return nil, errors.New("upstream: exactly one of api key or bearer token must be configured")
	}
	if opts.BaseURL == "" {
		return nil, errors.New("upstream: base url is required")
	}
	if limiter == nil {
		limiter = NewHeaderRateLimiter(0, m)
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		bearerToken: opts.BearerToken,
		timeout:     opts.Timeout,
		maxRetries:  opts.MaxRetries,
		baseDelay:   opts.RetryBaseDelay,
		cacheTTL:    opts.CacheTTL,
		pageSize:    opts.PageSize,
		http:        &http.Client{},
		limiter:     limiter,
		cache:       cache,
		metrics:     m,
		sleep:       sleepContext,
	}, nil
}

// SetSleeper replaces the backoff sleeper, for tests
func (c *Client) SetSleeper(sleep func(ctx context.Context, d time.Duration) error) {
	c.sleep = sleep
}

// Request performs method on endpoint and decodes the JSON response into out
// (which may be nil). GET responses are cached and concurrent identical GETs
// share one round trip. A successful write invalidates every cached GET of
// the same resource, list pages included.
func (c *Client) Request(ctx context.Context, method, endpoint string, opts RequestOptions, out any) error {
	start := time.Now()

	var body []byte
	if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return fmt.Errorf("upstream: failed to marshal request body: %w", err)
		}
		body = b
	}

	target := endpoint
	if len(opts.Query) > 0 {
		target = endpoint + "?" + opts.Query.Encode()
	}
	key := cacheKey(method, target, body)
	cacheable := method == http.MethodGet && c.cache != nil

	if cacheable && !opts.NoCache {
		if v, ok := c.cache.Get(key); ok {
			if s, ok := v.(string); ok {
				c.metrics.ObserveCache(string(constants.CachePrefixUpstream), true)
				c.metrics.ObserveUpstream(method, "cache_hit", time.Since(start).Seconds())
				return decode([]byte(s), out)
			}
		}
		c.metrics.ObserveCache(string(constants.CachePrefixUpstream), false)
	}

	var data []byte
	var err error
	if method == http.MethodGet && !opts.NoCache {
		var v any
		v, err, _ = c.group.Do(key, func() (any, error) {
			return c.doWithRetry(ctx, method, target, body)
		})
		if err == nil {
			data = v.([]byte)
		}
	} else {
		data, err = c.doWithRetry(ctx, method, target, body)
	}

	if err != nil {
		outcome := ErrorCode(err)
		if outcome == "" {
			outcome = "error"
		}
		c.metrics.ObserveUpstream(method, outcome, time.Since(start).Seconds())
		return err
	}
	c.metrics.ObserveUpstream(method, "ok", time.Since(start).Seconds())

	if cacheable {
		c.cache.Set(key, string(data), c.cacheTTL)
	} else if method != http.MethodGet && c.cache != nil {
		c.invalidate(endpoint)
	}

	return decode(data, out)
}

func (c *Client) doWithRetry(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		data, err := c.do(ctx, method, target, body)
		if err == nil {
			return data, nil
		}
		if !IsRetryable(err) || attempt >= c.maxRetries {
			return nil, err
		}

		delay := c.baseDelay * time.Duration(1<<(attempt-1))
		c.metrics.ObserveRetry(ErrorCode(err))
		logging.Warn("Upstream request failed, retrying",
			"method", method,
			"endpoint", target,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+"/"+strings.TrimLeft(target, "/"), reader)
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}

	// 429 responses carry the window too, so the next attempt waits for it
	c.limiter.Update(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, data)
	}
	return data, nil
}

// invalidate drops cached reads of the resource endpoint belongs to:
// "job/abc.json" clears "job.json?..." pages and "job/..." objects.
func (c *Client) invalidate(endpoint string) {
	resource, _, _ := strings.Cut(strings.TrimPrefix(endpoint, "/"), "/")
	resource = strings.TrimSuffix(resource, ".json")
	c.cache.DeletePrefix(keyPrefix(http.MethodGet, resource+".json"))
	c.cache.DeletePrefix(keyPrefix(http.MethodGet, resource+"/"))
}

func keyPrefix(method, target string) string {
	return string(constants.CachePrefixUpstream) + method + ":" + target
}

func cacheKey(method, target string, body []byte) string {
	return keyPrefix(method, target) + ":" + string(body)
}

func decode(data []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return newError(constants.ErrCodeInvalidResponse, 0, string(data), err)
	}
	return nil
}
