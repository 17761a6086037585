package common

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrFetch        = fmt.Errorf("fetch failed")
	ErrParse        = fmt.Errorf("cannot parse playlist")
	ErrNoSegments   = fmt.Errorf("playlist contains no segments")
	ErrEmptyOutput  = fmt.Errorf("no segment bytes were written")
	ErrConversion   = fmt.Errorf("conversion failed")
	ErrFileTooLarge = fmt.Errorf("output file exceeds size limit")
	ErrJobNotFound  = fmt.Errorf("job not found")
)

// RateLimitError is returned by a Notifier when the messaging channel asks
// the caller to back off. RetryAfter is the wait the channel requested.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Kind maps an error to a stable machine-readable failure kind.
func Kind(err error) string {
	var rl *RateLimitError

	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNoSegments):
		return "no_segments"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrEmptyOutput):
		return "empty_output"
	case errors.Is(err, ErrConversion):
		return "conversion"
	case errors.Is(err, ErrFileTooLarge):
		return "too_large"
	case errors.Is(err, ErrJobNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &rl):
		return "rate_limited"
	}

	return "internal"
}
