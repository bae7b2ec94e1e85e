// Package shortener turns long direct-download URLs into short links.
package shortener

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"vidlink/internal/httpclient"
)

// DefaultEndpoint is the TinyURL creation API. The long URL is appended as
// the url query parameter.
const DefaultEndpoint = "https://tinyurl.com/api-create.php"

// ErrMalformedResponse is returned when the service answers 200 with
// something other than a link.
var ErrMalformedResponse = errors.New("shortener: response is not a link")

// Error describes a failed shortening attempt.
type Error struct {
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("shortener: %s: %v", e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client calls a shortening service over HTTP.
type Client struct {
	Endpoint string
	HTTP     *httpclient.Client
	Logger   *zap.Logger
}

// New returns a client for endpoint using hc. An empty endpoint selects
// DefaultEndpoint.
func New(endpoint string, hc *httpclient.Client, logger *zap.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if hc == nil {
		hc = httpclient.New(httpclient.DefaultConfig())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{Endpoint: endpoint, HTTP: hc, Logger: logger}
}

// Shorten returns a short link for longURL. It never fails: when the
// service cannot produce a link the failure is logged and longURL is
// returned unchanged.
func (c *Client) Shorten(ctx context.Context, longURL string) string {
	short, err := c.TryShorten(ctx, longURL)
	if err != nil {
		c.Logger.Warn("shortening failed, using long link",
			zap.String("endpoint", c.Endpoint),
			zap.Error(err),
		)
		return longURL
	}
	return short
}

// TryShorten is Shorten with the failure reported as an *Error.
func (c *Client) TryShorten(ctx context.Context, longURL string) (string, error) {
	reqURL, err := c.requestURL(longURL)
	if err != nil {
		return "", &Error{Endpoint: c.Endpoint, Err: err}
	}

	resp, err := c.HTTP.Get(ctx, reqURL, map[string]string{"Accept": "text/plain"})
	if err != nil {
		return "", &Error{Endpoint: c.Endpoint, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &Error{Endpoint: c.Endpoint, Err: &httpclient.HTTPError{StatusCode: resp.StatusCode, Body: resp.Body}}
	}

	short := strings.TrimSpace(string(resp.Body))
	if !isLink(short) {
		return "", &Error{Endpoint: c.Endpoint, Err: ErrMalformedResponse}
	}
	return short, nil
}

func (c *Client) requestURL(longURL string) (string, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", longURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isLink(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
