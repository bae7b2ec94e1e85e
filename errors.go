package vidlink

import (
	"vidlink/internal/config"
	"vidlink/internal/dispatch"
	"vidlink/internal/httpclient"
	"vidlink/internal/link"
	"vidlink/internal/retry"
	"vidlink/internal/session"
	"vidlink/internal/shortener"
	"vidlink/internal/storage"
	"vidlink/internal/ytdlp"
)

// Error types.
type (
	// ExtractionError wraps a failed yt-dlp invocation with its stderr.
	ExtractionError = ytdlp.ExtractionError
	// ShortenError wraps a failed shortener call.
	ShortenError = shortener.Error
	// StorageError wraps errors during storage operations.
	StorageError = storage.StorageError
	// HTTPError is a non-2xx response from an outbound call.
	HTTPError = httpclient.HTTPError
	// RateLimitError is a 429 or 503 response.
	RateLimitError = httpclient.RateLimitError
	// ExhaustedError wraps the last error once retries run out.
	ExhaustedError = retry.ExhaustedError
)

// Sentinel errors.
var (
	ErrInvalidLink = link.ErrInvalidLink

	// yt-dlp
	ErrTimeout      = ytdlp.ErrTimeout
	ErrRateLimited  = ytdlp.ErrRateLimited
	ErrUnavailable  = ytdlp.ErrUnavailable
	ErrNoFormats    = ytdlp.ErrNoFormats
	ErrNoLink       = ytdlp.ErrNoLink
	ErrNotInstalled = ytdlp.ErrNotInstalled

	// ErrSelectionExpired is returned when a pending selection is gone.
	ErrSelectionExpired = session.ErrNotFound
	// ErrBadPayload is returned for button data the bot did not issue.
	ErrBadPayload = dispatch.ErrBadPayload

	ErrMalformedResponse = shortener.ErrMalformedResponse
	ErrCircuitOpen       = httpclient.ErrCircuitOpen

	// Storage errors
	ErrNotFound       = storage.ErrNotFound
	ErrInvalidInput   = storage.ErrInvalidInput
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	ErrLockTimeout    = storage.ErrLockTimeout
	ErrUnknownBackend = storage.ErrUnknownBackend

	ErrNoToken = config.ErrNoToken
)

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}
