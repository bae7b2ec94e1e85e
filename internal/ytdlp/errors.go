package ytdlp

import (
	"errors"
	"strings"
)

// Sentinel errors for extractor failures.
var (
	ErrTimeout      = errors.New("ytdlp: timed out")
	ErrRateLimited  = errors.New("ytdlp: rate limited")
	ErrUnavailable  = errors.New("ytdlp: video unavailable")
	ErrNoFormats    = errors.New("ytdlp: no formats listed")
	ErrNoLink       = errors.New("ytdlp: no direct link returned")
	ErrNotInstalled = errors.New("ytdlp: yt-dlp not installed")
)

// ExtractionError wraps an extractor failure with the operation and URL.
// Stderr holds the raw tool output for logs; it is not part of Error().
type ExtractionError struct {
	Op     string // "list", "resolve", "metadata"
	URL    string
	Stderr string
	Err    error
}

func (e *ExtractionError) Error() string {
	return "ytdlp: " + e.Op + " " + e.URL + ": " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// classifyStderr maps yt-dlp diagnostics to a sentinel, or nil if unknown.
func classifyStderr(stderr string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return ErrRateLimited
	case strings.Contains(msg, "video unavailable"),
		strings.Contains(msg, "private video"),
		strings.Contains(msg, "has been removed"),
		strings.Contains(msg, "not available"),
		strings.Contains(msg, "unsupported url"):
		return ErrUnavailable
	}
	return nil
}

// isRetryable lets rate limiting and timeouts through to another attempt.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}
