// Package ytdlp drives the yt-dlp executable: format listing, direct link
// resolution and metadata lookup.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"vidlink/internal/ladder"
	"vidlink/internal/retry"
)

const (
	defaultPath    = "yt-dlp"
	defaultTimeout = 2 * time.Minute

	// waitDelay bounds how long a killed process may hold its output pipes.
	waitDelay = 2 * time.Second

	// SelectorBest asks yt-dlp for its own best single-file pick.
	SelectorBest = "best"
)

// formatLineRegex matches listing rows, which start with a numeric id.
var formatLineRegex = regexp.MustCompile(`^\d+`)

// Client runs yt-dlp as a subprocess.
type Client struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// Timeout bounds each invocation. Defaults to 2 minutes.
	Timeout time.Duration

	// CookiesFile is passed as --cookies when set.
	CookiesFile string

	// ExtraArgs are appended before the URL on every invocation.
	ExtraArgs []string

	// RetryConfig controls retries of rate-limited or timed out calls.
	RetryConfig *retry.Config

	Logger *zap.Logger
}

// NewClient creates a yt-dlp client with default settings.
func NewClient() *Client {
	cfg := retry.DefaultConfig()
	return &Client{
		Path:        defaultPath,
		Timeout:     defaultTimeout,
		RetryConfig: &cfg,
		Logger:      zap.NewNop(),
	}
}

// ListFormats runs `yt-dlp -F` and returns the parsed listing in extractor
// order. An empty listing is an error.
func (c *Client) ListFormats(ctx context.Context, url string) ([]ladder.FormatEntry, error) {
	args := append([]string{"-F"}, c.cookieArgs()...)

	var entries []ladder.FormatEntry
	err := c.retry(ctx, func(ctx context.Context) error {
		out, err := c.run(ctx, "list", url, args)
		if err != nil {
			return err
		}
		entries = ParseFormatListing(out)
		if len(entries) == 0 {
			return retry.Permanent(&ExtractionError{Op: "list", URL: url, Err: ErrNoFormats})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger().Debug("formats listed", zap.String("url", url), zap.Int("count", len(entries)))
	return entries, nil
}

// ParseFormatListing extracts rows that begin with a numeric token. The
// first field is the format id and the remaining fields, joined by single
// spaces, are the descriptor.
func ParseFormatListing(out []byte) []ladder.FormatEntry {
	var entries []ladder.FormatEntry
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !formatLineRegex.MatchString(line) {
			continue
		}
		fields := strings.Fields(line)
		entries = append(entries, ladder.FormatEntry{
			FormatID:   fields[0],
			Descriptor: strings.Join(fields[1:], " "),
		})
	}
	return entries
}

// ResolveDirectLink runs `yt-dlp -g -f selector` and returns the first URL
// printed.
func (c *Client) ResolveDirectLink(ctx context.Context, url, selector string) (string, error) {
	if selector == "" {
		selector = SelectorBest
	}
	args := append([]string{"-g"}, c.cookieArgs()...)
	args = append(args, "-f", selector)

	var direct string
	err := c.retry(ctx, func(ctx context.Context) error {
		out, err := c.run(ctx, "resolve", url, args)
		if err != nil {
			return err
		}
		direct = firstLine(out)
		if direct == "" {
			return retry.Permanent(&ExtractionError{Op: "resolve", URL: url, Err: ErrNoLink})
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return direct, nil
}

// CheckInstalled verifies that yt-dlp can be executed.
func (c *Client) CheckInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.path(), "--version")
	if err := cmd.Run(); err != nil {
		return &ExtractionError{Op: "version", Err: ErrNotInstalled}
	}
	return nil
}

func (c *Client) retry(ctx context.Context, fn func(context.Context) error) error {
	cfg := retry.DefaultConfig()
	if c.RetryConfig != nil {
		cfg = *c.RetryConfig
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = func(n int, err error, wait time.Duration) {
			c.logger().Info("retrying yt-dlp",
				zap.Int("retry", n),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}
	}
	return retry.Do(ctx, cfg, func(err error) bool {
		return !retry.IsPermanent(err) && isRetryable(err)
	}, fn)
}

// run executes one bounded yt-dlp invocation and returns stdout. Failures
// come back as *ExtractionError; unavailable videos are marked permanent.
func (c *Client) run(ctx context.Context, op, url string, args []string) ([]byte, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := make([]string, 0, len(args)+len(c.ExtraArgs)+1)
	full = append(full, args...)
	full = append(full, c.ExtraArgs...)
	full = append(full, url)

	cmd := exec.CommandContext(cmdCtx, c.path(), full...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	c.logger().Debug("yt-dlp finished",
		zap.String("op", op),
		zap.String("url", url),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	if err == nil {
		return stdout.Bytes(), nil
	}

	errMsg := strings.TrimSpace(stderr.String())
	if ctx.Err() != nil {
		return nil, retry.Permanent(&ExtractionError{Op: op, URL: url, Stderr: errMsg, Err: ctx.Err()})
	}
	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return nil, &ExtractionError{Op: op, URL: url, Stderr: errMsg, Err: ErrTimeout}
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) || errors.Is(err, os.ErrNotExist) {
		return nil, retry.Permanent(&ExtractionError{Op: op, URL: url, Err: ErrNotInstalled})
	}

	if sentinel := classifyStderr(errMsg); sentinel != nil {
		xerr := &ExtractionError{Op: op, URL: url, Stderr: errMsg, Err: sentinel}
		if errors.Is(sentinel, ErrUnavailable) {
			return nil, retry.Permanent(xerr)
		}
		return nil, xerr
	}

	return nil, retry.Permanent(&ExtractionError{Op: op, URL: url, Stderr: errMsg,
		Err: fmt.Errorf("yt-dlp failed: %w", err)})
}

func (c *Client) cookieArgs() []string {
	if c.CookiesFile == "" {
		return nil
	}
	return []string{"--cookies", c.CookiesFile}
}

func (c *Client) path() string {
	if c.Path != "" {
		return c.Path
	}
	return defaultPath
}

func (c *Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func firstLine(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}
