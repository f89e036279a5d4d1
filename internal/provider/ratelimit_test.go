package provider

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRateLimiter_SpacesCalls(t *testing.T) {
	const interval = 40 * time.Millisecond
	const n = 4
	rl := NewRateLimiter(interval, discardLogger())

	start := time.Now()
	for i := 0; i < n; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), (n-1)*interval)
}

func TestRateLimiter_GapMeasuredFromPreviousReturn(t *testing.T) {
	const interval = 10 * time.Millisecond
	rl := NewRateLimiter(interval, discardLogger())

	var prev time.Time
	for i := 0; i < 100; i++ {
		require.NoError(t, rl.Wait(context.Background()))
		returned := rl.last
		if !prev.IsZero() {
			require.GreaterOrEqual(t, returned.Sub(prev), interval, "call %d", i)
		}
		prev = returned
		// Simulated request work between calls.
		time.Sleep(3 * time.Millisecond)
	}
}

func TestRateLimiter_FirstCallImmediate(t *testing.T) {
	rl := NewRateLimiter(time.Hour, discardLogger())
	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiter_ZeroIntervalNoDelay(t *testing.T) {
	rl := NewRateLimiter(0, discardLogger())
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, time.Duration(0), rl.Interval())
}

func TestRateLimiter_CanceledContext(t *testing.T) {
	rl := NewRateLimiter(time.Hour, discardLogger())
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, rl.Wait(ctx))
}

func TestRateLimiter_WarnsBelowPolicy(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	NewRateLimiter(250*time.Millisecond, logger)
	assert.Contains(t, buf.String(), "below the MusicBrainz policy")

	buf.Reset()
	NewRateLimiter(time.Second, logger)
	assert.Empty(t, buf.String())
}
