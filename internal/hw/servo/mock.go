package servo

import (
	"sync"

	"github.com/ldurand/PointGo/internal/debug"
)

// Mock is an Axis for development and tests. It applies the same
// clamping as the real driver and records every commanded position.
type Mock struct {
	mu   sync.Mutex
	name string
	limits
	pos      int
	commands []int
	// OnCommand, when set, runs after each accepted command. Tests use
	// it to couple a fake sensor to servo motion.
	OnCommand func(pos int)
}

// NewMock creates a mock axis with the given bounds, parked mid-range.
func NewMock(name string, min, max int) *Mock {
	return &Mock{
		name:   name,
		limits: limits{min: min, max: max},
		pos:    min + (max-min)/2,
	}
}

func (m *Mock) MinPosition() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.min
}

func (m *Mock) MaxPosition() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max
}

func (m *Mock) SetMinPosition(pos int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setMin(pos)
}

func (m *Mock) SetMaxPosition(pos int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setMax(pos)
}

func (m *Mock) SetPosition(pos int) error {
	m.mu.Lock()
	m.pos = clamp(pos, m.min, m.max)
	m.commands = append(m.commands, m.pos)
	cb, p := m.OnCommand, m.pos
	m.mu.Unlock()

	debug.Trace("servo %s: position %d", m.name, p)
	if cb != nil {
		cb(p)
	}
	return nil
}

func (m *Mock) Step(delta int) error {
	m.mu.Lock()
	pos := m.pos + delta
	m.mu.Unlock()
	return m.SetPosition(pos)
}

func (m *Mock) Position() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// Commands returns a copy of every position commanded so far.
func (m *Mock) Commands() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.commands))
	copy(out, m.commands)
	return out
}
