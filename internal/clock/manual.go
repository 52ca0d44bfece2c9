package clock

import (
	"context"
	"sync"
	"time"
)

// Manual is a deterministic clock for tests. Sleep advances the clock
// immediately instead of blocking, so calibration procedures run at
// full speed while still observing simulated wall time.
type Manual struct {
	mu  sync.RWMutex
	now time.Time
	// SleepHook, when set, runs before each Sleep advances the clock.
	// Tests use it to mutate fake sensors "during" a settle delay.
	SleepHook func(d time.Duration)
}

// NewManual creates a manual clock starting at an arbitrary fixed instant.
func NewManual() *Manual {
	return &Manual{now: time.Unix(1_700_000_000, 0)}
}

// NewManualAt creates a manual clock starting at t.
func NewManualAt(t time.Time) *Manual {
	return &Manual{now: t}
}

func (c *Manual) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Manual) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleep advances the clock by d without blocking. Cancellation is still
// honored so timeout paths remain testable.
func (c *Manual) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.SleepHook != nil {
		c.SleepHook(d)
	}
	c.Advance(d)
	return nil
}
