package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrBodyTooLarge is returned by ReadResponseBody when the body exceeds the limit
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError is returned by EnsureStatusOK for non-200 responses
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d %s", e.StatusCode, e.Status)
}

// ReadResponseBody reads the body and closes it. A body longer than limit
// fails with ErrBodyTooLarge instead of being cut short.
// A limit of zero or less reads the whole body.
func ReadResponseBody(resp *http.Response, limit int64) ([]byte, error) {
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("Failed to close response body", "error", closeErr)
		}
	}()

	if limit <= 0 {
		return io.ReadAll(resp.Body)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, limit)
	}
	return data, nil
}

// GetContentType returns the content type of the response
func GetContentType(resp *http.Response) string {
	return resp.Header.Get("Content-Type")
}

// EnsureStatusOK checks if the response status is 200 OK
func EnsureStatusOK(resp *http.Response) error {
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}
