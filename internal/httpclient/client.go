// Package httpclient wraps net/http for outbound calls to third-party
// services with per-host rate limiting, retry of transient failures and a
// per-host circuit breaker.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"vidlink/internal/retry"
)

// maxBodySize bounds how much of a response body is read into memory.
const maxBodySize = 1 << 20

// Config holds client configuration.
type Config struct {
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// Retry controls attempts on transient failures.
	Retry retry.Config
	// UserAgent is sent unless the caller sets one.
	UserAgent string
	// RateLimiter configures per-host token buckets.
	RateLimiter RateLimiterConfig
	// CircuitBreaker configures per-host failure tracking.
	CircuitBreaker CircuitBreakerConfig
	// Transport overrides the round tripper, mostly for tests.
	Transport http.RoundTripper
	// Logger receives debug logs for retries and breaker trips.
	Logger *zap.Logger
}

// DefaultConfig returns defaults suited to short interactive calls.
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		Retry:          retry.DefaultConfig(),
		UserAgent:      "vidlink/1.0",
		RateLimiter:    DefaultRateLimiterConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
	}
}

// Client performs HTTP requests with retry, rate limiting and circuit breaking.
type Client struct {
	base    *http.Client
	config  Config
	limiter *RateLimiter
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// New creates a client from cfg.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		}
	}

	breaker := NewCircuitBreaker(cfg.CircuitBreaker)
	breaker.onChange = func(host string, from, to CircuitState) {
		logger.Warn("circuit breaker state changed",
			zap.String("host", host),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}

	return &Client{
		base:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		config:  cfg,
		limiter: NewRateLimiter(cfg.RateLimiter),
		breaker: breaker,
		logger:  logger,
	}
}

// Get performs a GET request against rawURL.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	host := hostOf(rawURL)

	if err := c.breaker.Allow(host); err != nil {
		return nil, err
	}

	var resp *Response
	err := retry.Do(ctx, c.config.Retry, c.isRetryable, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx, host); err != nil {
			return retry.Permanent(err)
		}

		r, err := c.attempt(ctx, rawURL, headers)
		if err != nil {
			var rl *RateLimitError
			if errors.As(err, &rl) {
				c.limiter.Backoff(host, rl.RetryAfter)
			}
			c.logger.Debug("http attempt failed",
				zap.String("host", host),
				zap.Error(err),
			)
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		c.breaker.RecordFailure(host, err)
		return nil, err
	}

	c.breaker.RecordSuccess(host)
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	r, err := c.base.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case isRateLimited(r.StatusCode, r.Header):
		return nil, &RateLimitError{
			StatusCode: r.StatusCode,
			RetryAfter: parseRetryAfter(r.Header),
		}
	case r.StatusCode < 200 || r.StatusCode >= 300:
		return nil, &HTTPError{StatusCode: r.StatusCode, Body: body}
	}

	return &Response{StatusCode: r.StatusCode, Header: r.Header, Body: body}, nil
}

func (c *Client) isRetryable(err error) bool {
	return retry.IsRetryable(err) && IsTransient(err)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.base.CloseIdleConnections()
	return nil
}

// isRateLimited reports 429 and 503, and 403 responses that carry rate
// limit headers.
func isRateLimited(status int, header http.Header) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	case http.StatusForbidden:
		return header.Get("Retry-After") != "" || header.Get("X-RateLimit-Remaining") == "0"
	}
	return false
}

// parseRetryAfter reads Retry-After as seconds or an HTTP date, falling back
// to X-RateLimit-Reset in seconds.
func parseRetryAfter(header http.Header) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	if seconds, err := strconv.Atoi(header.Get("X-RateLimit-Reset")); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}
