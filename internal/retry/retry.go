// Package retry provides exponential backoff retry logic with jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	// MaxRetries is the number of attempts made after the first one.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
	// Multiplier grows the backoff after each attempt.
	Multiplier float64
	// JitterFraction is the fraction of backoff used for jitter (0.0-1.0).
	JitterFraction float64
	// OnRetry, when set, is called before each wait with the 1-based retry
	// number and the error that caused it.
	OnRetry func(retry int, err error, wait time.Duration)
}

// DefaultConfig suits interactive chat requests: a user waits on the result,
// so attempts are few and short.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// ErrorClassifier determines if an error is retryable.
type ErrorClassifier func(error) bool

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that IsRetryable rejects it. Do returns the
// wrapped error unchanged, so callers never see the marker.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// IsRetryable is the default classifier: context errors and errors marked
// Permanent stop the loop, everything else is retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !IsPermanent(err)
}

// Do calls fn until it succeeds, the classifier rejects its error, the
// attempts run out or ctx is done. A nil classifier means IsRetryable.
// Errors marked Permanent are returned without the marker.
func Do(ctx context.Context, cfg Config, classifier ErrorClassifier, fn func(context.Context) error) error {
	if classifier == nil {
		classifier = IsRetryable
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = unwrapPermanent(err)
		if !classifier(err) {
			return lastErr
		}
		if attempt >= cfg.MaxRetries {
			return &ExhaustedError{Err: lastErr, Retries: cfg.MaxRetries}
		}

		wait := cfg.Delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Delay is the jittered wait after the given zero-based attempt:
// InitialBackoff * Multiplier^attempt, capped at MaxBackoff.
func (c Config) Delay(attempt int) time.Duration {
	d := float64(c.InitialBackoff)
	if c.Multiplier > 1 {
		d *= math.Pow(c.Multiplier, float64(attempt))
	}
	if c.MaxBackoff > 0 && d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	wait := time.Duration(d) + jitter(time.Duration(d), c.JitterFraction)
	if c.MaxBackoff > 0 && wait > c.MaxBackoff {
		wait = c.MaxBackoff
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func unwrapPermanent(err error) error {
	if p, ok := err.(*permanentError); ok {
		return p.err
	}
	return err
}

// jitter spreads d by up to ±fraction.
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return 0
	}
	return time.Duration((rand.Float64()*2 - 1) * fraction * float64(d))
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Err     error
	Retries int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d retries: %v", e.Retries, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
