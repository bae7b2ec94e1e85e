package httpclient

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig defines per-host token buckets.
type RateLimiterConfig struct {
	// RequestsPerSecond applies to hosts without a custom rate. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the bucket size. Defaults to 1.
	Burst int
	// CustomRates maps host names to their own rate.
	CustomRates map[string]float64
}

// DefaultRateLimiterConfig allows a modest steady rate per host.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 5,
		Burst:             5,
	}
}

// hostBucket is the limiter state of one host. limiter is nil when the
// host is unlimited.
type hostBucket struct {
	limiter     *rate.Limiter
	pausedUntil time.Time
}

// RateLimiter holds one token bucket per host and honors server-requested
// pauses from Retry-After headers.
type RateLimiter struct {
	mu     sync.Mutex
	hosts  map[string]*hostBucket
	config RateLimiterConfig
}

// NewRateLimiter creates a rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &RateLimiter{
		hosts:  make(map[string]*hostBucket),
		config: cfg,
	}
}

// Wait blocks until host may be contacted or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	if rl == nil {
		return nil
	}

	rl.mu.Lock()
	b := rl.bucket(host)
	pause := time.Until(b.pausedUntil)
	limiter := b.limiter
	rl.mu.Unlock()

	if pause > 0 {
		t := time.NewTimer(pause)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// Backoff pauses requests to host for d. A longer pause already in place
// is kept.
func (rl *RateLimiter) Backoff(host string, d time.Duration) {
	if rl == nil || d <= 0 {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b := rl.bucket(host)
	if until := time.Now().Add(d); until.After(b.pausedUntil) {
		b.pausedUntil = until
	}
}

// bucket must be called with mu held.
func (rl *RateLimiter) bucket(host string) *hostBucket {
	if b, ok := rl.hosts[host]; ok {
		return b
	}
	rps := rl.config.RequestsPerSecond
	if custom, ok := rl.config.CustomRates[host]; ok {
		rps = custom
	}
	b := &hostBucket{}
	if rps > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(rps), rl.config.Burst)
	}
	rl.hosts[host] = b
	return b
}

// hostOf returns the host name of a URL without port, or "unknown".
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
