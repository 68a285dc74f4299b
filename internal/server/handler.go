// Package server exposes the blog feed over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lepinkainen/blog-mirror/internal/blog"
)

// Response statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Feed is the read side of the cache gateway
type Feed interface {
	Get(ctx context.Context) (*blog.Result, error)
}

// PostsResponse is the success envelope for GET /api/blog
type PostsResponse struct {
	Status    string        `json:"status"`
	Posts     []blog.Record `json:"posts"`
	Count     int           `json:"count"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Cached    bool          `json:"cached"`
}

// ErrorResponse is returned when the feed cannot be served
type ErrorResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	FallbackURL string `json:"fallbackUrl,omitempty"`
}

// NewPostsResponse builds the success envelope. Posts is never null.
func NewPostsResponse(result *blog.Result) PostsResponse {
	posts := result.Records
	if posts == nil {
		posts = []blog.Record{}
	}
	return PostsResponse{
		Status:    StatusSuccess,
		Posts:     posts,
		Count:     len(posts),
		UpdatedAt: result.UpdatedAt,
		Cached:    result.Cached,
	}
}

// Handler serves the blog endpoints
type Handler struct {
	feed           Feed
	fallbackURL    string
	requestTimeout time.Duration
}

// NewHandler creates a handler. A zero requestTimeout leaves requests unbounded.
func NewHandler(feed Feed, fallbackURL string, requestTimeout time.Duration) *Handler {
	return &Handler{
		feed:           feed,
		fallbackURL:    fallbackURL,
		requestTimeout: requestTimeout,
	}
}

// Posts handles GET /api/blog
func (h *Handler) Posts(c echo.Context) error {
	ctx := c.Request().Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	result, err := h.feed.Get(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to serve blog posts", "error", err)
		return c.JSON(statusFor(err), ErrorResponse{
			Status:      StatusError,
			Message:     "Unable to load blog posts right now",
			FallbackURL: h.fallbackURL,
		})
	}

	return c.JSON(http.StatusOK, NewPostsResponse(result))
}

// Health handles GET /healthz
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, blog.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
