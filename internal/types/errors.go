package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrElementNotFound      = errors.New("element not found")
	ErrTitleMissing         = errors.New("title missing")
	ErrMissingField         = errors.New("expected field missing from response")
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
	ErrJobRunning           = errors.New("job is already running")
	ErrUnknownJob           = errors.New("unknown job")
	ErrInvalidURL           = errors.New("invalid URL")
)

// FetchError wraps failures talking to an external source.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ExtractionError is a structural failure: a required element was absent
// and no article could be extracted.
type ExtractionError struct {
	Stage    string
	URL      string
	Selector string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("extraction error for %s at %s (selector=%q): %v", e.URL, e.Stage, e.Selector, e.Err)
	}
	return fmt.Sprintf("extraction error for %s at %s: %v", e.URL, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StorageError wraps errors returned by a durable store.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("storage error (%s/%s): %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur while normalizing a candidate.
type PipelineError struct {
	Stage     string
	Candidate *NewsCandidate
	Err       error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// IsStructural reports whether err means the page shape changed enough
// that no article was reached.
func IsStructural(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
