package newsapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// codeRateLimited is the NewsAPI error code for an exhausted request quota.
const codeRateLimited = "rateLimited"

// HTTPError is returned for non-2xx responses, malformed bodies and
// responses whose status field is not "ok".
type HTTPError struct {
	StatusCode int
	Path       string
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("newsapi %s returned status %d", e.Path, e.StatusCode)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *HTTPError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == codeRateLimited
}

// IsRateLimited reports whether err carries an upstream rate-limit signal.
func IsRateLimited(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.RateLimited()
	}
	return false
}

// RetryAfterOf returns the Retry-After hint carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.RetryAfter
	}
	return 0
}
