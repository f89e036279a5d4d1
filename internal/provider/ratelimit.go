package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PolicyInterval is the minimum spacing MusicBrainz asks every client to keep.
const PolicyInterval = time.Second

// RateLimiter enforces a minimum interval between outbound requests to a
// single provider. Each resolver owns its own instance.
type RateLimiter struct {
	limiter  *rate.Limiter
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewRateLimiter creates a limiter allowing one request per interval. An
// interval of zero disables the delay; a negative interval is treated as
// zero. Intervals below PolicyInterval are allowed but logged.
func NewRateLimiter(interval time.Duration, logger *slog.Logger) *RateLimiter {
	if interval < 0 {
		interval = 0
	}
	if interval < PolicyInterval {
		logger.Warn("request interval is below the MusicBrainz policy of one request per second",
			slog.Duration("interval", interval))
	}

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RateLimiter{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Interval returns the configured minimum spacing.
func (r *RateLimiter) Interval() time.Duration { return r.interval }

// Wait blocks until at least the interval has passed since the previous
// Wait returned, or the context is canceled. The first call never blocks.
//
// The token bucket alone schedules from reservation time, so a late timer
// would shorten the following gap. Wait therefore also sleeps out whatever
// remains of the interval measured from the previous return.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.interval > 0 && !r.last.IsZero() {
		if remaining := time.Until(r.last.Add(r.interval)); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	r.last = time.Now()
	return nil
}
