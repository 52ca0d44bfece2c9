package calibrate

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ldurand/PointGo/internal/clock"
	"github.com/ldurand/PointGo/internal/debug"
	"github.com/ldurand/PointGo/internal/hw/imu"
	"github.com/ldurand/PointGo/internal/hw/servo"
)

// SensorParams bounds a fusion-sensor calibration run.
type SensorParams struct {
	// PollInterval between confidence reads.
	PollInterval time.Duration
	// StallInterval of unchanged confidence before the pose is perturbed.
	StallInterval time.Duration
	// MaxDuration before the run aborts with ErrCalibrationTimeout.
	MaxDuration time.Duration
}

func (p *SensorParams) applyDefaults() {
	if p.PollInterval <= 0 {
		p.PollInterval = 50 * time.Millisecond
	}
	if p.StallInterval <= 0 {
		p.StallInterval = 2 * time.Second
	}
	if p.MaxDuration <= 0 {
		p.MaxDuration = 5 * time.Minute
	}
}

// SensorCalibrator drives the IMU's sub-sensors to full confidence by
// perturbing the platform pose, then commits the resulting calibration.
type SensorCalibrator struct {
	sensor    imu.Sensor
	azimuth   servo.Axis
	elevation servo.Axis
	clk       clock.Clock
	params    SensorParams
	rnd       *rand.Rand
}

func NewSensorCalibrator(sensor imu.Sensor, azimuth, elevation servo.Axis, clk clock.Clock, params SensorParams) *SensorCalibrator {
	params.applyDefaults()
	return &SensorCalibrator{
		sensor:    sensor,
		azimuth:   azimuth,
		elevation: elevation,
		clk:       clk,
		params:    params,
		rnd:       rand.New(rand.NewSource(clk.Now().UnixNano())),
	}
}

// procedure is one sub-sensor's calibration recipe: how to read its
// confidence, how to perturb the pose when confidence stalls (nil for
// sensors that calibrate from stillness), and how to commit.
type procedure struct {
	name    string
	status  func() (int, error)
	perturb func() error
	commit  func() error
}

// Accelerometer calibration: expose the sensor to varied static
// orientations by jumping both axes to uniformly random positions.
func (c *SensorCalibrator) Accelerometer(ctx context.Context) error {
	return c.run(ctx, procedure{
		name:    "accelerometer",
		status:  c.sensor.AccelerometerStatus,
		perturb: c.randomPose,
		commit:  c.sensor.SaveAccelerometerCalibration,
	})
}

// Magnetometer calibration: raster the orientation space, cycling
// azimuth through 8 evenly spaced positions per elevation step and
// elevation through 8 steps, so the field is sampled broadly.
func (c *SensorCalibrator) Magnetometer(ctx context.Context) error {
	if err := c.elevation.SetPosition(c.elevation.MinPosition()); err != nil {
		return fmt.Errorf("magnetometer: initial pose: %w", err)
	}
	raster := &rasterSweep{azimuth: c.azimuth, elevation: c.elevation}
	return c.run(ctx, procedure{
		name:    "magnetometer",
		status:  c.sensor.MagnetometerStatus,
		perturb: raster.next,
		commit:  c.sensor.SaveMagnetometerCalibration,
	})
}

// Gyroscope calibration: confidence rises from stillness alone, so the
// loop is pure polling.
func (c *SensorCalibrator) Gyroscope(ctx context.Context) error {
	return c.run(ctx, procedure{
		name:   "gyroscope",
		status: c.sensor.GyroscopeStatus,
		commit: c.sensor.SaveGyroscopeCalibration,
	})
}

// run is the PREPARE → ACTIVE → CONVERGED state machine shared by all
// three sub-sensors.
func (c *SensorCalibrator) run(ctx context.Context, proc procedure) error {
	// PREPARE: calibration-friendly fusion mode, remembering the old one.
	prevMode, err := c.sensor.PrepareCalibration()
	if err != nil {
		return fmt.Errorf("%s: prepare calibration: %w", proc.name, err)
	}
	restored := false
	restore := func() {
		if !restored {
			restored = true
			if err := c.sensor.SetMode(prevMode); err != nil {
				debug.Error(fmt.Errorf("%s: restore mode: %w", proc.name, err))
			}
		}
	}
	defer restore()

	level, err := proc.status()
	if err != nil {
		return fmt.Errorf("%s: read confidence: %w", proc.name, err)
	}
	debug.Info("Calibrating %s (confidence %d/%d)", proc.name, level, imu.ConfidenceFull)

	// ACTIVE: poll until full confidence, perturbing on stall.
	start := c.clk.Now()
	lastChange := start
	for level < imu.ConfidenceFull {
		if c.clk.Now().Sub(start) > c.params.MaxDuration {
			return fmt.Errorf("%s: %w after %v (confidence %d/%d)",
				proc.name, ErrCalibrationTimeout, c.params.MaxDuration, level, imu.ConfidenceFull)
		}
		if err := c.clk.Sleep(ctx, c.params.PollInterval); err != nil {
			return fmt.Errorf("%s: cancelled: %w", proc.name, err)
		}

		lvl, err := proc.status()
		if err != nil {
			return fmt.Errorf("%s: read confidence: %w", proc.name, err)
		}
		if lvl != level {
			debug.Confidence(proc.name, lvl)
			level = lvl
			lastChange = c.clk.Now()
			continue
		}
		if proc.perturb != nil && c.clk.Now().Sub(lastChange) >= c.params.StallInterval {
			if err := proc.perturb(); err != nil {
				return fmt.Errorf("%s: perturb pose: %w", proc.name, err)
			}
			lastChange = c.clk.Now()
		}
	}

	// CONVERGED: restore the saved mode, then commit.
	restore()
	if err := proc.commit(); err != nil {
		return fmt.Errorf("%s: commit calibration: %w", proc.name, err)
	}
	debug.Info("%s calibration done", proc.name)
	return nil
}

// randomPose jumps both axes to a uniformly random position.
func (c *SensorCalibrator) randomPose() error {
	for _, a := range []servo.Axis{c.elevation, c.azimuth} {
		span := a.MaxPosition() - a.MinPosition()
		pos := a.MinPosition() + c.rnd.Intn(span+1)
		if err := a.SetPosition(pos); err != nil {
			return err
		}
	}
	return nil
}

// rasterSweep walks azimuth through rasterSteps positions per elevation
// step, restarting azimuth whenever elevation advances.
type rasterSweep struct {
	azimuth   servo.Axis
	elevation servo.Axis
	azOffset  int
	elOffset  int
}

const rasterSteps = 8

func (r *rasterSweep) next() error {
	azMin, azMax := r.azimuth.MinPosition(), r.azimuth.MaxPosition()
	if err := r.azimuth.SetPosition(azMin + r.azOffset); err != nil {
		return err
	}
	r.azOffset += (azMax - azMin) / rasterSteps
	if azMin+r.azOffset > azMax {
		r.azOffset = 0
		elMin, elMax := r.elevation.MinPosition(), r.elevation.MaxPosition()
		r.elOffset += (elMax - elMin) / rasterSteps
		if elMin+r.elOffset > elMax {
			r.elOffset = 0
		}
		if err := r.elevation.SetPosition(elMin + r.elOffset); err != nil {
			return err
		}
	}
	return nil
}
