package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/ldurand/PointGo/internal/debug"
)

// Periodic is the timer capability driving the control loop tick.
// Start arms the timer; the callback then fires every period until
// Stop. Stop is synchronous: once it returns, no callback is running
// and none will fire again.
type Periodic interface {
	Start(period time.Duration, fn func()) error
	Stop()
}

// timerCount mirrors the number of general-purpose timer peripherals on
// the target board; the configured id selects one of them.
const timerCount = 4

// Hardware is the production Periodic, backed by a monotonic ticker.
type Hardware struct {
	id   int
	mu   sync.Mutex
	tick *time.Ticker
	quit chan struct{}
	done chan struct{}
}

// NewHardware creates a periodic timer on the given peripheral id (0-3).
func NewHardware(id int) (*Hardware, error) {
	if id < 0 || id >= timerCount {
		return nil, fmt.Errorf("timer: hardware id must be 0-%d, got %d", timerCount-1, id)
	}
	return &Hardware{id: id}, nil
}

// ID returns the hardware peripheral id this timer was bound to.
func (t *Hardware) ID() int { return t.id }

func (t *Hardware) Start(period time.Duration, fn func()) error {
	if period <= 0 {
		return fmt.Errorf("timer %d: period must be positive, got %v", t.id, period)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tick != nil {
		return fmt.Errorf("timer %d: already armed", t.id)
	}

	debug.Trace("timer %d: armed, period %v", t.id, period)
	t.tick = time.NewTicker(period)
	t.quit = make(chan struct{})
	t.done = make(chan struct{})

	go func(tick *time.Ticker, quit, done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-quit:
				return
			case <-tick.C:
				fn()
			}
		}
	}(t.tick, t.quit, t.done)

	return nil
}

// Stop disarms the timer and waits for an in-flight callback to finish.
// Safe to call when not armed.
func (t *Hardware) Stop() {
	t.mu.Lock()
	if t.tick == nil {
		t.mu.Unlock()
		return
	}
	tick, quit, done := t.tick, t.quit, t.done
	t.tick, t.quit, t.done = nil, nil, nil
	t.mu.Unlock()

	tick.Stop()
	close(quit)
	<-done
	debug.Trace("timer %d: disarmed", t.id)
}
