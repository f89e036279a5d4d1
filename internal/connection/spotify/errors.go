package spotify

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
		return fmt.Sprintf("spotify %s: HTTP %d: %v", e.Op, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("spotify %s: %v", e.Op, e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// Transient marks the error as retryable.
func (e *TransientError) Transient() bool { return true }

// RetryDelay returns the server-requested wait before the next attempt.
func (e *TransientError) RetryDelay() time.Duration { return e.RetryAfter }

// APIError is any other non-2xx response, such as an expired grant or a
// missing scope. It is not retried.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify %s rejected (HTTP %d): %s", e.Op, e.StatusCode, e.Message)
}
