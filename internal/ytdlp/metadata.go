package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Metadata is the display information shown next to a delivered link.
type Metadata struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Duration    time.Duration `json:"duration"`
	Uploader    string        `json:"uploader"`
}

// MetadataFetcher looks up display metadata for a video URL.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, url string) (*Metadata, error)
}

// ytdlpInfo is the subset of `yt-dlp -J` output we read.
type ytdlpInfo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Uploader    string  `json:"uploader"`
	Channel     string  `json:"channel"`
}

// FetchMetadata runs `yt-dlp -J` and extracts title, duration, description
// and uploader.
func (c *Client) FetchMetadata(ctx context.Context, url string) (*Metadata, error) {
	args := append([]string{"-J", "--no-warnings", "--skip-download"}, c.cookieArgs()...)

	var meta *Metadata
	err := c.retry(ctx, func(ctx context.Context) error {
		out, err := c.run(ctx, "metadata", url, args)
		if err != nil {
			return err
		}
		meta, err = parseMetadata(out)
		if err != nil {
			return &ExtractionError{Op: "metadata", URL: url, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func parseMetadata(data []byte) (*Metadata, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse metadata JSON: %w", err)
	}
	if info.Title == "" {
		return nil, errors.New("invalid metadata: missing title")
	}

	uploader := info.Uploader
	if uploader == "" {
		uploader = info.Channel
	}
	return &Metadata{
		ID:          info.ID,
		Title:       info.Title,
		Description: info.Description,
		Duration:    time.Duration(info.Duration * float64(time.Second)),
		Uploader:    uploader,
	}, nil
}

// MetadataChain tries each source in order and returns the first success.
type MetadataChain struct {
	Sources []MetadataFetcher
	Logger  *zap.Logger
}

// FetchMetadata implements MetadataFetcher.
func (m *MetadataChain) FetchMetadata(ctx context.Context, url string) (*Metadata, error) {
	if len(m.Sources) == 0 {
		return nil, errors.New("ytdlp: no metadata sources")
	}

	var errs []error
	for _, src := range m.Sources {
		meta, err := src.FetchMetadata(ctx, url)
		if err == nil {
			return meta, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if m.Logger != nil {
			m.Logger.Debug("metadata source failed, trying next",
				zap.String("source", fmt.Sprintf("%T", src)),
				zap.Error(err),
			)
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
