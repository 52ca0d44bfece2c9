package control

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/ldurand/PointGo/internal/debug"
)

// Arc is an azimuth interval (degrees on [0,360)) the platform cannot
// be commanded into.
type Arc struct {
	Min float64
	Max float64
}

// Contains reports whether deg lies strictly inside the arc.
// The endpoints themselves are reachable.
func (a Arc) Contains(deg float64) bool {
	return deg > a.Min && deg < a.Max
}

func (a Arc) String() string {
	return fmt.Sprintf("(%.1f°, %.1f°)", a.Min, a.Max)
}

// SetpointStore holds the azimuth/elevation targets and the deadzone
// arcs. It is the single handoff point between the command context and
// the timer tick context: every field is an atomic latest-value-wins
// slot, so a command blocked in a settle delay can never stall a tick.
type SetpointStore struct {
	azimuth   atomic.Uint64 // float64 bits
	elevation atomic.Uint64 // float64 bits
	deadzones atomic.Pointer[[]Arc]
}

func NewSetpointStore() *SetpointStore {
	return &SetpointStore{}
}

// Azimuth returns the current azimuth target in degrees.
func (s *SetpointStore) Azimuth() float64 {
	return math.Float64frombits(s.azimuth.Load())
}

// Elevation returns the current elevation target in degrees.
func (s *SetpointStore) Elevation() float64 {
	return math.Float64frombits(s.elevation.Load())
}

// SetElevation updates the elevation target unconditionally. Elevation
// has no wrap-around obstruction, so there is no gate on this axis.
func (s *SetpointStore) SetElevation(deg float64) {
	debug.Setpoint("elevation", deg)
	s.elevation.Store(math.Float64bits(deg))
}

// SetAzimuth updates the azimuth target, unless the platform has not
// been oriented yet or deg falls strictly inside a deadzone arc. On
// rejection the stored target is unchanged.
func (s *SetpointStore) SetAzimuth(deg float64) error {
	zones := s.deadzones.Load()
	if zones == nil {
		debug.Info("azimuth %.2f° rejected: orient the platform before setting coordinates", deg)
		return ErrNotOriented
	}
	for _, arc := range *zones {
		if arc.Contains(deg) {
			debug.Info("azimuth %.2f° rejected: inside deadzone %v, realign and re-orient", deg, arc)
			return fmt.Errorf("%w: %.2f° in %v", ErrDeadzone, deg, arc)
		}
	}
	debug.Setpoint("azimuth", deg)
	s.azimuth.Store(math.Float64bits(deg))
	return nil
}

// Seed overwrites both targets without deadzone checks. The loop uses
// it at start to adopt the platform's current pose, preventing a large
// initial jump.
func (s *SetpointStore) Seed(azimuth, elevation float64) {
	s.azimuth.Store(math.Float64bits(azimuth))
	s.elevation.Store(math.Float64bits(elevation))
}

// SetDeadzones installs the forbidden arcs discovered by the
// orientation probe. They persist for the store's lifetime.
func (s *SetpointStore) SetDeadzones(arcs []Arc) {
	zones := make([]Arc, len(arcs))
	copy(zones, arcs)
	s.deadzones.Store(&zones)
}

// Deadzones returns the current arcs, or nil before orientation.
func (s *SetpointStore) Deadzones() []Arc {
	zones := s.deadzones.Load()
	if zones == nil {
		return nil
	}
	out := make([]Arc, len(*zones))
	copy(out, *zones)
	return out
}

// Oriented reports whether the orientation probe has run.
func (s *SetpointStore) Oriented() bool {
	return s.deadzones.Load() != nil
}
