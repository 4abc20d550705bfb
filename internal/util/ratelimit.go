package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces calls evenly, allowing at most perMinute operations per
// minute. The Hyperliquid client shares one limiter across all candle
// windows of a fetch.
type RateLimiter struct {
	mu   sync.Mutex
	gap  time.Duration
	next time.Time
}

// NewRateLimiter creates a limiter allowing perMinute calls per minute. The
// first call never waits.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateLimiter{gap: time.Minute / time.Duration(perMinute)}
}

// Wait blocks until the caller's slot arrives or the context is cancelled.
// A cancelled waiter still consumes its slot.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	at := rl.next
	if now := time.Now(); at.Before(now) {
		at = now
	}
	rl.next = at.Add(rl.gap)
	rl.mu.Unlock()

	d := time.Until(at)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
