package httpclient

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RetryableError reports a request that kept failing after every allowed
// retry. Attempts counts what was spent. RetryAfter carries the backoff the
// next attempt would have used.
type RetryableError struct {
	StatusCode int
	Message    string
	Attempts   int
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	var b strings.Builder
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, "HTTP %d: ", e.StatusCode)
	}
	b.WriteString(e.Message)
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.RetryAfter > 0 {
		fmt.Fprintf(&b, " (retry after %v)", e.RetryAfter)
	}
	return b.String()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryableError reports whether err is a RetryableError.
func IsRetryableError(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
