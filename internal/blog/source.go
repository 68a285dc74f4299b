package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	httputil "github.com/lepinkainen/blog-mirror/pkg/http"
	"github.com/lepinkainen/blog-mirror/pkg/metrics"
)

// ErrUpstreamUnavailable marks every failure to obtain the feed document:
// transport errors, timeouts, non-200 responses and oversized bodies
var ErrUpstreamUnavailable = errors.New("upstream feed unavailable")

// maxDocumentSize is the largest upstream document accepted; larger ones fail the fetch
const maxDocumentSize = 5 << 20

// Source provides the raw feed document
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// HTTPSource fetches the feed document from a fixed URL
type HTTPSource struct {
	url    string
	client *httputil.Client
}

// NewHTTPSource creates a source for feedURL; a nil config uses the client defaults
func NewHTTPSource(feedURL string, config *httputil.ClientConfig) *HTTPSource {
	return &HTTPSource{
		url:    feedURL,
		client: httputil.NewClient(config),
	}
}

// URL returns the upstream feed address
func (s *HTTPSource) URL() string {
	return s.url
}

// Fetch downloads the document and converts it to UTF-8
func (s *HTTPSource) Fetch(ctx context.Context) (string, error) {
	start := time.Now()
	document, err := s.fetch(ctx)
	metrics.RecordUpstreamFetch(err, time.Since(start).Seconds())

	if err != nil {
		slog.Warn("Failed to fetch feed", "url", s.url, "error", err)
		return "", err
	}

	slog.Debug("Fetched feed", "url", s.url, "bytes", len(document), "duration", time.Since(start))
	return document, nil
}

func (s *HTTPSource) fetch(ctx context.Context) (string, error) {
	resp, err := s.client.GetWithContext(ctx, s.url)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	if err := httputil.EnsureStatusOK(resp); err != nil {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("Failed to close response body", "error", closeErr)
		}
		return "", fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	contentType := httputil.GetContentType(resp)
	body, err := httputil.ReadResponseBody(resp, maxDocumentSize)
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %w", ErrUpstreamUnavailable, err)
	}

	return toUTF8(body, contentType), nil
}

// toUTF8 converts body to UTF-8. A declared charset wins; otherwise valid
// UTF-8 is kept as is and anything else goes through the sniffed encoding.
func toUTF8(body []byte, contentType string) string {
	encoding, name, certain := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(body)) {
		return string(body)
	}

	converted, err := encoding.NewDecoder().Bytes(body)
	if err != nil {
		slog.Debug("Failed to convert charset, assuming UTF-8", "charset", name, "error", err)
		return string(body)
	}
	return string(converted)
}
