// Package backoff retries transient failures against remote services with
// capped exponential delays.
package backoff

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy configures the exponential backoff retry behavior. The delay
// before retry n (1-based) is BaseDelay * 2^(n-1), never more than MaxDelay.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy returns 3 attempts starting at 0.5s, capped at 8s.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  8 * time.Second,
	}
}

// Transient is implemented by errors that are likely to succeed on retry.
type Transient interface {
	Transient() bool
}

// Delayer is implemented by errors that carry a server-requested minimum
// delay, such as an HTTP Retry-After header.
type Delayer interface {
	RetryDelay() time.Duration
}

// IsTransient reports whether err (or anything it wraps) is marked transient.
func IsTransient(err error) bool {
	var t Transient
	return errors.As(err, &t) && t.Transient()
}

func (p Policy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	retries := 0
	if p.Attempts > 1 {
		retries = p.Attempts - 1
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(uint64(retries), b) //nolint:gosec // G115: retries is non-negative
}

// Do calls fn until it succeeds, returns a non-transient error, or the
// policy's attempts are used up. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, logger *slog.Logger, op string, fn func(context.Context) error) error {
	attempt := 0
	var hint time.Duration
	return retry.Do(ctx, withRetryAfter(&hint, p.backoff()), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry", slog.String("operation", op), slog.Int("attempt", attempt))
			}
			return nil
		}
		if ctx.Err() != nil || !IsTransient(err) {
			return err
		}
		if attempt >= p.Attempts {
			logger.Warn("operation failed after all retries",
				slog.String("operation", op), slog.Int("attempts", attempt), slog.Any("error", err))
			return err
		}

		logger.Warn("transient error, will retry",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.Attempts),
			slog.Any("error", err))

		var d Delayer
		if errors.As(err, &d) {
			hint = d.RetryDelay()
		}
		return retry.RetryableError(err)
	})
}

// withRetryAfter waits max(*hint, next) before each retry so a
// server-requested delay replaces the exponential one instead of adding to
// it. The hint is consumed by the retry it was set for.
func withRetryAfter(hint *time.Duration, next retry.Backoff) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := next.Next()
		if stop {
			return 0, true
		}
		if *hint > d {
			d = *hint
		}
		*hint = 0
		return d, false
	})
}

// MaxRetryAfter bounds how long a Retry-After header can stall a run.
const MaxRetryAfter = time.Minute

// ParseRetryAfter reads a Retry-After header given in seconds. HTTP dates
// and garbage yield zero, leaving the exponential schedule in charge.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs * float64(time.Second))
	if d > MaxRetryAfter {
		return MaxRetryAfter
	}
	return d
}
