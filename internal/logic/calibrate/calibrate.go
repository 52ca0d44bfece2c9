// Package calibrate implements the one-shot procedures that make
// closed-loop control trustworthy: fusion-sensor confidence
// calibration, servo travel discovery, and the azimuth orientation
// probe. None of them may run while the control loop is armed; the
// platform facade enforces that.
package calibrate

import (
	"errors"
	"math"
)

var (
	// ErrCalibrationTimeout is returned when a calibration procedure
	// exceeds its maximum duration before converging.
	ErrCalibrationTimeout = errors.New("calibration timed out")

	// ErrNoMotion is returned when a full range sweep never detects
	// sustained motion; the axis bounds are left untouched.
	ErrNoMotion = errors.New("no sustained motion detected during sweep")
)

// AngularDelta returns the shortest-arc distance between two angles in
// degrees, on a 360° domain. Symmetric in its arguments.
func AngularDelta(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}
