package http

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestGetContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		expected    string
	}{
		{
			name:        "rss with charset",
			contentType: "application/rss+xml; charset=utf-8",
			expected:    "application/rss+xml; charset=utf-8",
		},
		{
			name:        "text/xml",
			contentType: "text/xml",
			expected:    "text/xml",
		},
		{
			name:        "empty content type",
			contentType: "",
			expected:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				Header: make(http.Header),
			}
			resp.Header.Set("Content-Type", tt.contentType)

			result := GetContentType(resp)
			if result != tt.expected {
				t.Errorf("GetContentType() = %q, expected %q", result, tt.expected)
			}
		})
	}
}

func TestEnsureStatusOK(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		status      string
		expectError bool
	}{
		{
			name:        "200 OK",
			statusCode:  http.StatusOK,
			status:      "200 OK",
			expectError: false,
		},
		{
			name:        "201 Created",
			statusCode:  http.StatusCreated,
			status:      "201 Created",
			expectError: true,
		},
		{
			name:        "404 Not Found",
			statusCode:  http.StatusNotFound,
			status:      "404 Not Found",
			expectError: true,
		},
		{
			name:        "500 Internal Server Error",
			statusCode:  http.StatusInternalServerError,
			status:      "500 Internal Server Error",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tt.statusCode,
				Status:     tt.status,
			}

			err := EnsureStatusOK(resp)
			if (err != nil) != tt.expectError {
				t.Errorf("EnsureStatusOK() error = %v, expectError = %v", err, tt.expectError)
			}

			if err == nil {
				return
			}

			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("EnsureStatusOK() error should be *StatusError, got %T", err)
			}
			if statusErr.StatusCode != tt.statusCode {
				t.Errorf("StatusError.StatusCode = %d, want %d", statusErr.StatusCode, tt.statusCode)
			}
			if !strings.Contains(err.Error(), "unexpected status code") {
				t.Errorf("EnsureStatusOK() error should contain 'unexpected status code', got: %v", err)
			}
		})
	}
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestReadResponseBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		limit    int64
		expected string
		wantErr  error
	}{
		{
			name:     "no limit",
			body:     "<rss></rss>",
			limit:    0,
			expected: "<rss></rss>",
		},
		{
			name:     "limit larger than body",
			body:     "<rss></rss>",
			limit:    1024,
			expected: "<rss></rss>",
		},
		{
			name:     "body exactly at limit",
			body:     "<rss></rss>",
			limit:    11,
			expected: "<rss></rss>",
		},
		{
			name:    "body over limit is rejected",
			body:    "<rss></rss>",
			limit:   5,
			wantErr: ErrBodyTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := &closeTracker{Reader: strings.NewReader(tt.body)}
			resp := &http.Response{Body: body}

			data, err := ReadResponseBody(resp, tt.limit)
			if !body.closed {
				t.Error("ReadResponseBody() should close the body")
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ReadResponseBody() error = %v, want %v", err, tt.wantErr)
				}
				if data != nil {
					t.Errorf("ReadResponseBody() = %q, want nil on error", data)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadResponseBody() error = %v", err)
			}
			if string(data) != tt.expected {
				t.Errorf("ReadResponseBody() = %q, want %q", data, tt.expected)
			}
		})
	}
}
