package services

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/wdx/internal/shared"
)

// StatusError is a non-2xx response from the catalog API.
//
// Transient codes (429, 5xx) are retried by [Client]; fatal codes (401, 403,
// 404, malformed payloads) surface immediately. A 429 carries the server's
// Retry-After duration when present.
type StatusError struct {
	Code       int
	RetryAfter time.Duration
	Body       string
}

func (e *StatusError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("spotify API error: status %d (retry after %s)", e.Code, e.RetryAfter)
	}
	return fmt.Sprintf("spotify API error: status %d", e.Code)
}

// Unwrap maps well-known status codes onto the shared sentinels so callers
// can test with errors.Is without knowing about StatusError.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized:
		return shared.ErrTokenExpired
	case http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case http.StatusForbidden:
		return shared.ErrAuthFailed
	case http.StatusNotFound:
		return shared.ErrPlaylistNotFound
	default:
		return nil
	}
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// newStatusError builds a StatusError from a response, parsing Retry-After
// for rate-limit signals.
func newStatusError(resp *http.Response, body string) *StatusError {
	se := &StatusError{Code: resp.StatusCode, Body: body}
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return se
}

// IsTransient reports whether an error is retryable: a transient StatusError,
// a network timeout, or a temporary network failure.
func IsTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
