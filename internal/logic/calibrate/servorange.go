package calibrate

import (
	"context"
	"fmt"
	"time"

	"github.com/ldurand/PointGo/internal/clock"
	"github.com/ldurand/PointGo/internal/debug"
	"github.com/ldurand/PointGo/internal/hw/imu"
	"github.com/ldurand/PointGo/internal/hw/servo"
)

// RangeParams tunes a travel-discovery sweep.
type RangeParams struct {
	// Step is the command increment between sweep samples.
	Step int
	// MotionThreshold is the sensor delta (degrees) above which the
	// platform is considered to have moved between samples.
	MotionThreshold float64
	// Settle is the wait after each command before reading the sensor.
	Settle time.Duration
	// PreSettle is the wait after parking the cross axis, so mechanical
	// interference from that move dies out before the baseline read.
	PreSettle time.Duration
}

func (p *RangeParams) applyDefaults() {
	if p.Step <= 0 {
		p.Step = 100
	}
	if p.MotionThreshold <= 0 {
		p.MotionThreshold = 0.5
	}
	if p.Settle <= 0 {
		p.Settle = 100 * time.Millisecond
	}
	if p.PreSettle <= 0 {
		p.PreSettle = time.Second
	}
}

// Bounds is a discovered mechanical travel range, in command units.
type Bounds struct {
	Min int
	Max int
}

// RangeCalibrator discovers one axis's true mechanical travel inside
// the nominal command range by edge-detecting motion in the sensor
// feedback. Commands beyond the mechanical stops stall the servo and
// corrupt control linearity, which is why the bounds must be refined.
type RangeCalibrator struct {
	name   string
	target servo.Axis
	cross  servo.Axis
	read   func() (float64, error)
	clk    clock.Clock
}

// NewElevationRange builds a calibrator for the elevation axis.
func NewElevationRange(elevation, azimuth servo.Axis, sensor imu.Sensor, clk clock.Clock) *RangeCalibrator {
	return &RangeCalibrator{
		name:   "elevation",
		target: elevation,
		cross:  azimuth,
		read:   sensor.Elevation,
		clk:    clk,
	}
}

// NewAzimuthRange builds a calibrator for the azimuth axis.
func NewAzimuthRange(azimuth, elevation servo.Axis, sensor imu.Sensor, clk clock.Clock) *RangeCalibrator {
	return &RangeCalibrator{
		name:   "azimuth",
		target: azimuth,
		cross:  elevation,
		read:   sensor.Azimuth,
		clk:    clk,
	}
}

// Run sweeps the target axis across the nominal range and returns the
// discovered bounds, which are also applied to the axis. On ErrNoMotion
// (or any other failure) the axis keeps the nominal bounds.
func (c *RangeCalibrator) Run(ctx context.Context, p RangeParams) (Bounds, error) {
	p.applyDefaults()
	debug.Section(fmt.Sprintf("%s range calibration", c.name))

	// Start from the full nominal range so a previous (possibly wrong)
	// refinement cannot hide part of the travel.
	c.target.SetMaxPosition(servo.NominalMax)
	c.target.SetMinPosition(servo.NominalMin)

	// Park the cross axis mid-range and let the mechanics settle.
	if err := c.cross.SetPosition(servo.Midpoint(c.cross)); err != nil {
		return Bounds{}, fmt.Errorf("%s range: park cross axis: %w", c.name, err)
	}
	if err := c.clk.Sleep(ctx, p.PreSettle); err != nil {
		return Bounds{}, fmt.Errorf("%s range: %w", c.name, err)
	}

	prev, err := c.read()
	if err != nil {
		return Bounds{}, fmt.Errorf("%s range: baseline read: %w", c.name, err)
	}

	var (
		firstMove bool
		moving    bool
		bounds    Bounds
	)

	for i := c.target.MinPosition(); i < c.target.MaxPosition(); i += p.Step {
		if err := c.target.SetPosition(i); err != nil {
			return Bounds{}, fmt.Errorf("%s range: command %d: %w", c.name, i, err)
		}
		if err := c.clk.Sleep(ctx, p.Settle); err != nil {
			return Bounds{}, fmt.Errorf("%s range: %w", c.name, err)
		}
		current, err := c.read()
		if err != nil {
			return Bounds{}, fmt.Errorf("%s range: read at %d: %w", c.name, i, err)
		}
		delta := AngularDelta(current, prev)
		debug.Sweep(i, delta)

		switch {
		case delta > p.MotionThreshold && !firstMove:
			// Motion has begun somewhere near i, but a single sample
			// could be noise; require a confirming step.
			firstMove = true
			debug.Verbose("%s range: first movement near %d (delta %.3f°)", c.name, i, delta)

		case delta > p.MotionThreshold && !moving:
			moving = true
			bounds.Min = i + p.Step
			debug.Verbose("%s range: sustained movement at %d", c.name, i)

		case delta < p.MotionThreshold && moving:
			// Re-verify: a single quiet sample can be a transient stall.
			if err := c.target.SetPosition(i + p.Step); err != nil {
				return Bounds{}, fmt.Errorf("%s range: re-check %d: %w", c.name, i+p.Step, err)
			}
			if err := c.clk.Sleep(ctx, p.Settle); err != nil {
				return Bounds{}, fmt.Errorf("%s range: %w", c.name, err)
			}
			again, err := c.read()
			if err != nil {
				return Bounds{}, fmt.Errorf("%s range: re-check read: %w", c.name, err)
			}
			if AngularDelta(again, current) > p.MotionThreshold {
				// Still moving; resume the sweep past the re-checked sample.
				prev = again
				i += p.Step
				continue
			}
			bounds.Max = i - p.Step
			c.target.SetMinPosition(bounds.Min)
			c.target.SetMaxPosition(bounds.Max)
			debug.Bounds(c.name, bounds.Min, bounds.Max)
			return bounds, nil
		}
		prev = current
	}

	if moving {
		// Motion ran all the way to the end of the command range: the
		// nominal max is the mechanical max.
		bounds.Max = servo.NominalMax
		c.target.SetMinPosition(bounds.Min)
		debug.Bounds(c.name, bounds.Min, bounds.Max)
		return bounds, nil
	}
	return Bounds{}, fmt.Errorf("%s range: %w", c.name, ErrNoMotion)
}
