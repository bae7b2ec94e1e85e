package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// ErrCircuitOpen is returned while a host's circuit breaker is open.
var ErrCircuitOpen = errors.New("httpclient: circuit breaker is open")

// RateLimitError indicates the server asked us to slow down.
type RateLimitError struct {
	// StatusCode is 429 or 503.
	StatusCode int
	// RetryAfter is the server's requested delay, zero if none was sent.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d): retry after %v", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// HTTPError indicates a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}

// IsTransient reports whether err is worth retrying and should count
// against the circuit breaker: rate limits, 5xx and transport failures.
// Other 4xx responses are the caller's fault.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == 429
	}

	return !errors.Is(err, ErrCircuitOpen)
}
