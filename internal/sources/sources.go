// Package sources holds what every Candidate Source shares: the loosely typed record shape,
// the error taxonomy, and payload parsing for model output
package sources

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethanbaker/riskwatch/internal/planner"
	"github.com/ethanbaker/riskwatch/pkg/entry"
)

// Record is one raw candidate as a source returned it. Shapes vary by provider and prompt
// revision; the miner owns turning it into a draft entry
type Record map[string]any

// ErrMalformedPayload marks source output that could not be parsed into records
var ErrMalformedPayload = errors.New("malformed candidate payload")

// RateLimitError indicates the provider rejected the request for rate limiting
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry after %v", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Provider)
}

// StatusError is a non-success response from a provider
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited reports whether err is (or wraps) a RateLimitError
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Request is one mining call: a topic, how many candidates to ask for, and hints
type Request struct {
	Topic      planner.Topic
	Count      int
	Today      entry.Date
	KnownTerms []string // recently updated terms the source should avoid repeating
}

// ParseRetryAfter reads a Retry-After header given in seconds. Anything else yields zero
func ParseRetryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
