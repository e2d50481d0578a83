package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// DefaultMaxBodySize bounds how much of a response body HTTPSource reads.
const DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

// Source fetches raw page content.
//
// A failed fetch returns empty content and a non-nil error describing the
// failure. The engine never surfaces that error: the page is recorded as a
// page without links.
type Source interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// HTTPSource is a Source backed by an *http.Client.
type HTTPSource struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// SourceOption configures an HTTPSource.
type SourceOption func(*HTTPSource)

// WithUserAgent sets the User-Agent header. Empty keeps Go's default.
func WithUserAgent(ua string) SourceOption {
	return func(s *HTTPSource) {
		s.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per page.
// Non-positive values keep the default.
func WithMaxBodySize(size int64) SourceOption {
	return func(s *HTTPSource) {
		if size > 0 {
			s.maxBodySize = size
		}
	}
}

// NewHTTPSource creates an HTTPSource using client.
// The client carries transport concerns (proxy, timeout, injected headers);
// see the transport package.
func NewHTTPSource(client *http.Client, opts ...SourceOption) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	s := &HTTPSource{
		client:      client,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch GETs pageURL and returns the body as a string.
// Bodies larger than the configured limit are truncated.
func (s *HTTPSource) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
		return "", &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read body of %s: %w", pageURL, err)
	}
	return string(body), nil
}
