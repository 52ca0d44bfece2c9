// Package platform is the public face of the pointing system: the
// control loop plus the calibration procedures, with the rule that
// calibration never runs while the loop is armed.
package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/ldurand/PointGo/internal/clock"
	"github.com/ldurand/PointGo/internal/hw/imu"
	"github.com/ldurand/PointGo/internal/hw/servo"
	"github.com/ldurand/PointGo/internal/hw/timer"
	"github.com/ldurand/PointGo/internal/logic/calibrate"
	"github.com/ldurand/PointGo/internal/logic/control"
)

// ErrLoopRunning is returned when a calibration procedure is requested
// while the control loop is armed.
var ErrLoopRunning = errors.New("stop the control loop before calibrating")

// Platform owns both axes, the sensor, and the loop.
type Platform struct {
	azimuth   servo.Axis
	elevation servo.Axis
	sensor    imu.Sensor
	clk       clock.Clock

	loop     *control.Loop
	sensCal  *calibrate.SensorCalibrator
	probe    *calibrate.Probe
}

// Config aggregates the tunables of the loop and the calibrators.
type Config struct {
	Loop   control.Config
	Sensor calibrate.SensorParams
}

// New wires a platform from its capabilities.
func New(azimuth, elevation servo.Axis, sensor imu.Sensor, tm timer.Periodic, clk clock.Clock, cfg Config) *Platform {
	store := control.NewSetpointStore()
	return &Platform{
		azimuth:   azimuth,
		elevation: elevation,
		sensor:    sensor,
		clk:       clk,
		loop:      control.NewLoop(azimuth, elevation, sensor, tm, clk, store, cfg.Loop),
		sensCal:   calibrate.NewSensorCalibrator(sensor, azimuth, elevation, clk, cfg.Sensor),
		probe:     calibrate.NewProbe(azimuth, sensor, clk),
	}
}

// Start arms the control loop.
func (p *Platform) Start() error { return p.loop.Start() }

// Stop disarms the control loop.
func (p *Platform) Stop() { p.loop.Stop() }

// Running reports whether the loop is armed.
func (p *Platform) Running() bool { return p.loop.Running() }

// Faults delivers loop self-stop errors (see control.Loop.Faults).
func (p *Platform) Faults() <-chan error { return p.loop.Faults() }

// SetAzimuth points the platform at the given azimuth.
func (p *Platform) SetAzimuth(deg float64) error { return p.loop.SetAzimuth(deg) }

// SetElevation points the platform at the given elevation.
func (p *Platform) SetElevation(deg float64) { p.loop.SetElevation(deg) }

// SetCoordinates points both axes.
func (p *Platform) SetCoordinates(azimuth, elevation float64) error {
	return p.loop.SetCoordinates(azimuth, elevation)
}

// GetAzimuth reads the current azimuth from the sensor.
func (p *Platform) GetAzimuth() (float64, error) { return p.loop.GetAzimuth() }

// GetElevation reads the current elevation from the sensor.
func (p *Platform) GetElevation() (float64, error) { return p.loop.GetElevation() }

// Store exposes the shared setpoint store for status reporting.
func (p *Platform) Store() *control.SetpointStore { return p.loop.Store() }

// DroppedTicks returns the loop's dropped-tick counter.
func (p *Platform) DroppedTicks() uint64 { return p.loop.DroppedTicks() }

// Orient runs the orientation probe and installs the discovered
// deadzone arcs, unlocking azimuth commands.
func (p *Platform) Orient(ctx context.Context) ([]control.Arc, error) {
	if p.loop.Running() {
		return nil, fmt.Errorf("orient: %w", ErrLoopRunning)
	}
	arcs, err := p.probe.Run(ctx)
	if err != nil {
		return nil, err
	}
	p.loop.Store().SetDeadzones(arcs)
	return arcs, nil
}

// CalibrateAccelerometer drives the accelerometer to full confidence
// and commits its calibration.
func (p *Platform) CalibrateAccelerometer(ctx context.Context) error {
	if p.loop.Running() {
		return fmt.Errorf("accelerometer: %w", ErrLoopRunning)
	}
	return p.sensCal.Accelerometer(ctx)
}

// CalibrateMagnetometer drives the magnetometer to full confidence and
// commits its calibration.
func (p *Platform) CalibrateMagnetometer(ctx context.Context) error {
	if p.loop.Running() {
		return fmt.Errorf("magnetometer: %w", ErrLoopRunning)
	}
	return p.sensCal.Magnetometer(ctx)
}

// CalibrateGyroscope waits (in stillness) for gyroscope confidence and
// commits its calibration.
func (p *Platform) CalibrateGyroscope(ctx context.Context) error {
	if p.loop.Running() {
		return fmt.Errorf("gyroscope: %w", ErrLoopRunning)
	}
	return p.sensCal.Gyroscope(ctx)
}

// CalibrateElevationServo discovers the elevation axis's true travel.
func (p *Platform) CalibrateElevationServo(ctx context.Context, params calibrate.RangeParams) (calibrate.Bounds, error) {
	if p.loop.Running() {
		return calibrate.Bounds{}, fmt.Errorf("elevation range: %w", ErrLoopRunning)
	}
	cal := calibrate.NewElevationRange(p.elevation, p.azimuth, p.sensor, p.clk)
	return cal.Run(ctx, params)
}

// CalibrateAzimuthServo discovers the azimuth axis's true travel.
func (p *Platform) CalibrateAzimuthServo(ctx context.Context, params calibrate.RangeParams) (calibrate.Bounds, error) {
	if p.loop.Running() {
		return calibrate.Bounds{}, fmt.Errorf("azimuth range: %w", ErrLoopRunning)
	}
	cal := calibrate.NewAzimuthRange(p.azimuth, p.elevation, p.sensor, p.clk)
	return cal.Run(ctx, params)
}
