package lidarr

import (
	"fmt"
	"time"
)

// TransientError is a network failure, timeout, 429 or 5xx response.
type TransientError struct {
	Op         string
	StatusCode int
	Cause      error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("lidarr %s: HTTP %d: %v", e.Op, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("lidarr %s: %v", e.Op, e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// Transient marks the error as retryable.
func (e *TransientError) Transient() bool { return true }

// RetryDelay returns the server-requested wait before the next attempt.
func (e *TransientError) RetryDelay() time.Duration { return e.RetryAfter }

// ValidationError is a 4xx rejection of the request itself: unknown
// profile, bad root folder, bad API key. It is not retried.
type ValidationError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("lidarr %s rejected (HTTP %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("lidarr %s rejected: %s", e.Op, e.Message)
}

// ConflictError means the artist is already in the library.
type ConflictError struct {
	MBID       string
	StatusCode int
	Message    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("lidarr: artist %s already exists: %s", e.MBID, e.Message)
}
