package timer

import (
	"sync"
	"time"
)

// Manual is a Periodic for tests: ticks fire only when Fire is called,
// so loop behavior can be stepped deterministically.
type Manual struct {
	mu     sync.Mutex
	period time.Duration
	fn     func()
}

func NewManual() *Manual { return &Manual{} }

func (t *Manual) Start(period time.Duration, fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.period = period
	t.fn = fn
	return nil
}

func (t *Manual) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fn = nil
}

// Fire invokes the registered callback once, synchronously.
// No-op when the timer is stopped.
func (t *Manual) Fire() {
	t.mu.Lock()
	fn := t.fn
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Armed reports whether Start has been called without a matching Stop.
func (t *Manual) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fn != nil
}

// Period returns the period passed to Start.
func (t *Manual) Period() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}
