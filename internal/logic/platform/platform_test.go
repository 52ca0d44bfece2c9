package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/ldurand/PointGo/internal/clock"
	"github.com/ldurand/PointGo/internal/hw/imu"
	"github.com/ldurand/PointGo/internal/hw/servo"
	"github.com/ldurand/PointGo/internal/hw/timer"
	"github.com/ldurand/PointGo/internal/logic/calibrate"
	"github.com/ldurand/PointGo/internal/logic/control"
)

type rig struct {
	az, el *servo.Mock
	sensor *imu.Mock
	plat   *Platform
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		az:     servo.NewMock("azimuth", servo.NominalMin, servo.NominalMax),
		el:     servo.NewMock("elevation", servo.NominalMin, servo.NominalMax),
		sensor: imu.NewMock(),
	}
	// Couple the simulated sky to the azimuth servo: the travel covers
	// everything except the arc behind the platform, 300° through 30°.
	r.az.OnCommand = func(pos int) {
		switch pos {
		case servo.NominalMin:
			r.sensor.SetOrientation(300, 0)
		case servo.NominalMax:
			r.sensor.SetOrientation(30, 0)
		}
	}
	r.plat = New(r.az, r.el, r.sensor, timer.NewManual(), clock.NewManual(), Config{})
	return r
}

func TestPlatform_AzimuthLockedUntilOriented(t *testing.T) {
	r := newRig(t)

	if err := r.plat.SetAzimuth(120); !errors.Is(err, control.ErrNotOriented) {
		t.Fatalf("SetAzimuth before Orient = %v, want ErrNotOriented", err)
	}

	arcs, err := r.plat.Orient(context.Background())
	if err != nil {
		t.Fatalf("Orient: %v", err)
	}
	if len(arcs) != 2 {
		t.Fatalf("arcs = %v, want the wrap split into two", arcs)
	}
	if !r.plat.Store().Oriented() {
		t.Error("store not marked oriented after probe")
	}

	if err := r.plat.SetAzimuth(180); err != nil {
		t.Errorf("SetAzimuth after Orient: %v", err)
	}
	if err := r.plat.SetAzimuth(330); !errors.Is(err, control.ErrDeadzone) {
		t.Errorf("SetAzimuth into deadzone = %v, want ErrDeadzone", err)
	}
}

func TestPlatform_CalibrationGatedOnLoop(t *testing.T) {
	r := newRig(t)
	if err := r.plat.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.plat.Stop()

	ctx := context.Background()
	checks := map[string]error{
		"accelerometer": r.plat.CalibrateAccelerometer(ctx),
		"magnetometer":  r.plat.CalibrateMagnetometer(ctx),
		"gyroscope":     r.plat.CalibrateGyroscope(ctx),
	}
	if _, err := r.plat.Orient(ctx); err != nil {
		checks["orient"] = err
	} else {
		t.Error("Orient succeeded while the loop is running")
	}
	if _, err := r.plat.CalibrateElevationServo(ctx, calibrate.RangeParams{}); err != nil {
		checks["elevation range"] = err
	} else {
		t.Error("elevation range calibration succeeded while the loop is running")
	}
	if _, err := r.plat.CalibrateAzimuthServo(ctx, calibrate.RangeParams{}); err != nil {
		checks["azimuth range"] = err
	} else {
		t.Error("azimuth range calibration succeeded while the loop is running")
	}

	for name, err := range checks {
		if !errors.Is(err, ErrLoopRunning) {
			t.Errorf("%s: err = %v, want ErrLoopRunning", name, err)
		}
	}
}

func TestPlatform_CalibrationAllowedWhenStopped(t *testing.T) {
	r := newRig(t)
	if err := r.plat.CalibrateGyroscope(context.Background()); err != nil {
		t.Errorf("CalibrateGyroscope on idle platform: %v", err)
	}
}

func TestPlatform_RangeCalibrationRefinesAxis(t *testing.T) {
	r := newRig(t)
	// Azimuth motion stalls outside [300, 3400].
	r.az.OnCommand = func(pos int) {
		if pos < 300 {
			pos = 300
		}
		if pos > 3400 {
			pos = 3400
		}
		r.sensor.SetOrientation(0.01*float64(pos), 0)
	}
	r.sensor.SetOrientation(3.0, 0)

	bounds, err := r.plat.CalibrateAzimuthServo(context.Background(), calibrate.RangeParams{})
	if err != nil {
		t.Fatalf("CalibrateAzimuthServo: %v", err)
	}
	if bounds != (calibrate.Bounds{Min: 600, Max: 3400}) {
		t.Errorf("bounds = %+v, want {600 3400}", bounds)
	}
	if r.az.MinPosition() != 600 || r.az.MaxPosition() != 3400 {
		t.Errorf("axis bounds = [%d, %d], want [600, 3400]",
			r.az.MinPosition(), r.az.MaxPosition())
	}
}

func TestPlatform_StopThenRecalibrate(t *testing.T) {
	r := newRig(t)
	if err := r.plat.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.plat.Stop()
	if r.plat.Running() {
		t.Fatal("Running() = true after Stop")
	}
	if err := r.plat.CalibrateGyroscope(context.Background()); err != nil {
		t.Errorf("CalibrateGyroscope after Stop: %v", err)
	}
}
