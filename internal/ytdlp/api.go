package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"vidlink/internal/link"
	"vidlink/internal/retry"
)

// ErrNotYouTube is returned by APIMetadata for links without a video id.
var ErrNotYouTube = errors.New("ytdlp: not a youtube video link")

// APIMetadata fetches metadata through the YouTube Data API v3. Each lookup
// costs one quota unit.
type APIMetadata struct {
	service     *youtube.Service
	RetryConfig *retry.Config
}

// NewAPIMetadata creates a Data API metadata source.
func NewAPIMetadata(ctx context.Context, apiKey string, opts ...option.ClientOption) (*APIMetadata, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	cfg := retry.DefaultConfig()
	return &APIMetadata{service: service, RetryConfig: &cfg}, nil
}

// FetchMetadata implements MetadataFetcher.
func (a *APIMetadata) FetchMetadata(ctx context.Context, url string) (*Metadata, error) {
	id, ok := link.VideoID(url)
	if !ok {
		return nil, ErrNotYouTube
	}

	cfg := a.RetryConfig
	if cfg == nil {
		defaultCfg := retry.DefaultConfig()
		cfg = &defaultCfg
	}

	var meta *Metadata
	err := retry.Do(ctx, *cfg, apiErrorClassifier, func(ctx context.Context) error {
		resp, err := a.service.Videos.List([]string{"snippet", "contentDetails"}).
			Id(id).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			return retry.Permanent(&ExtractionError{Op: "metadata", URL: url, Err: ErrUnavailable})
		}

		item := resp.Items[0]
		meta = &Metadata{ID: item.Id}
		if item.Snippet != nil {
			meta.Title = item.Snippet.Title
			meta.Description = item.Snippet.Description
			meta.Uploader = item.Snippet.ChannelTitle
		}
		if item.ContentDetails != nil {
			meta.Duration = parseISODuration(item.ContentDetails.Duration)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// apiErrorClassifier retries quota and server errors only.
func apiErrorClassifier(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == 429 || gerr.Code >= 500 {
			return true
		}
		return strings.Contains(gerr.Message, "rateLimitExceeded")
	}
	return true
}

var isoDurationRegex = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseISODuration converts durations like "PT1H2M3S" to time.Duration.
// Unparseable input yields zero.
func parseISODuration(s string) time.Duration {
	m := isoDurationRegex.FindStringSubmatch(s)
	if m == nil {
		return 0
	}

	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		d += time.Duration(n) * unit
	}
	return d
}
