package servo

// Axis is the actuator capability for one axis of the platform.
// Positions are in device command units (PCA9685 counts, 0..4095).
// Implementations clamp every command to the current bounds, so callers
// can issue raw corrections without range checks.
type Axis interface {
	MinPosition() int
	MaxPosition() int
	SetMinPosition(pos int)
	SetMaxPosition(pos int)
	// SetPosition commands an absolute position, clamped to bounds.
	SetPosition(pos int) error
	// Step moves relative to the current position, clamped to bounds.
	Step(delta int) error
	// Position returns the last commanded (clamped) position.
	Position() int
}

// NominalMin and NominalMax are the device command range before range
// calibration refines it to the true mechanical travel.
const (
	NominalMin = 0
	NominalMax = 4095
)

// Midpoint returns the center of an axis's current bounds.
func Midpoint(a Axis) int {
	return a.MinPosition() + (a.MaxPosition()-a.MinPosition())/2
}

// clamp bounds v to [min, max].
func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// limits holds an axis's mutable travel bounds. The min < max invariant
// is preserved by refusing any update that would violate it.
type limits struct {
	min, max int
}

func (l *limits) setMin(pos int) {
	if pos >= l.max {
		return
	}
	l.min = pos
}

func (l *limits) setMax(pos int) {
	if pos <= l.min {
		return
	}
	l.max = pos
}
