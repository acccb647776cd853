// Package httpx is the small JSON-over-HTTP layer shared by the catalog adapters.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	ErrRateLimited  = errors.New("upstream rate limit exceeded")
	ErrUnauthorized = errors.New("upstream request unauthorized (check API key)")
	ErrNotFound     = errors.New("upstream resource not found")
	ErrServerError  = errors.New("upstream server error")
)

// DefaultTimeout matches request_timeout_seconds' default.
const DefaultTimeout = 10 * time.Second

// Client performs JSON requests with a fixed timeout and optional default headers.
type Client struct {
	HTTP    *http.Client
	Headers map[string]string
}

// New returns a Client whose requests are logged at debug level.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: &LoggingTransport{Transport: http.DefaultTransport},
		},
	}
}

// GetJSON issues a GET to rawURL with query and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	u := rawURL
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// PostJSON marshals body, POSTs it and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s returned %d: %w", req.Method, req.URL.Path, resp.StatusCode, StatusError(resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// StatusError maps a non-2xx status to one of the sentinel errors.
func StatusError(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return ErrServerError
	}
	return fmt.Errorf("unexpected status %d", code)
}

// LoggingTransport logs each outbound request at debug level.
type LoggingTransport struct {
	Transport http.RoundTripper
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.Transport.RoundTrip(req)
	entry := log.WithFields(log.Fields{
		"method":   req.Method,
		"url":      req.URL.Redacted(),
		"duration": time.Since(start).Round(time.Millisecond),
	})
	if err != nil {
		entry.WithError(err).Debug("upstream request failed")
		return nil, err
	}
	entry.WithField("status", resp.StatusCode).Debug("upstream request")
	return resp, nil
}
