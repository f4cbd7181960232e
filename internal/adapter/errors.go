package adapter

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoListings is returned when a fetch run produced no listings at all.
var ErrNoListings = errors.New("no listings fetched")

// ScrapeError is a transport or parse failure for one source or one
// listing. It is recoverable per item via bounded retry.
type ScrapeError struct {
	Source string
	Detail string
	Err    error
}

// Error returns the error message.
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scrape %s: %s: %v", e.Source, e.Detail, e.Err)
	}
	return fmt.Sprintf("scrape %s: %s", e.Source, e.Detail)
}

// Unwrap returns the underlying error.
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError wraps an error as a per-item scrape failure.
func NewScrapeError(source, detail string, err error) *ScrapeError {
	return &ScrapeError{Source: source, Detail: detail, Err: err}
}

// RateLimitedError signals upstream throttling. It is not an item failure;
// the scheduler recovers via backoff and egress rotation.
type RateLimitedError struct {
	Source     string
	RetryAfter time.Duration
}

// Error returns the error message.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("source %s throttled, retry after %s", e.Source, e.RetryAfter)
	}
	return fmt.Sprintf("source %s throttled", e.Source)
}

// IsRateLimited reports whether err signals upstream throttling.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}
