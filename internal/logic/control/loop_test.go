package control

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ldurand/PointGo/internal/clock"
	"github.com/ldurand/PointGo/internal/hw/imu"
	"github.com/ldurand/PointGo/internal/hw/servo"
	"github.com/ldurand/PointGo/internal/hw/timer"
	"github.com/ldurand/PointGo/internal/pid"
)

// fakeSensor is an imu.Sensor whose readings and failure mode the test
// controls directly. onAzimuth lets a test act in tick context.
type fakeSensor struct {
	*imu.Mock
	mu        sync.Mutex
	az, el    float64
	err       error
	onAzimuth func()
}

func newFakeSensor(az, el float64) *fakeSensor {
	return &fakeSensor{Mock: imu.NewMock(), az: az, el: el}
}

func (s *fakeSensor) set(az, el float64) {
	s.mu.Lock()
	s.az, s.el = az, el
	s.mu.Unlock()
}

func (s *fakeSensor) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *fakeSensor) Azimuth() (float64, error) {
	if s.onAzimuth != nil {
		s.onAzimuth()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.az, s.err
}

func (s *fakeSensor) Elevation() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.el, s.err
}

type loopFixture struct {
	az, el *servo.Mock
	sensor *fakeSensor
	tm     *timer.Manual
	loop   *Loop
}

func newLoopFixture(t *testing.T, cfg Config) *loopFixture {
	t.Helper()
	f := &loopFixture{
		az:     servo.NewMock("azimuth", servo.NominalMin, servo.NominalMax),
		el:     servo.NewMock("elevation", servo.NominalMin, servo.NominalMax),
		sensor: newFakeSensor(0, 0),
		tm:     timer.NewManual(),
	}
	f.loop = NewLoop(f.az, f.el, f.sensor, f.tm, clock.NewManual(), NewSetpointStore(), cfg)
	return f
}

func TestLoop_StartSeedsFromSensor(t *testing.T) {
	f := newLoopFixture(t, Config{})
	f.sensor.set(211.5, -4.25)

	if err := f.loop.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.loop.Stop()

	st := f.loop.Store()
	if st.Azimuth() != 211.5 || st.Elevation() != -4.25 {
		t.Errorf("seeded targets = (%v, %v), want (211.5, -4.25)", st.Azimuth(), st.Elevation())
	}

	// With target == measured the first tick must not move the servos.
	azBefore, elBefore := f.az.Position(), f.el.Position()
	f.tm.Fire()
	if f.az.Position() != azBefore || f.el.Position() != elBefore {
		t.Errorf("servos moved on zero error: az %d→%d el %d→%d",
			azBefore, f.az.Position(), elBefore, f.el.Position())
	}
}

func TestLoop_StartFailsWithoutSensor(t *testing.T) {
	f := newLoopFixture(t, Config{})
	f.sensor.fail(errors.New("i2c nak"))
	if err := f.loop.Start(); !errors.Is(err, ErrSensorUnavailable) {
		t.Errorf("Start err = %v, want ErrSensorUnavailable", err)
	}
	if f.loop.Running() {
		t.Error("loop running after failed Start")
	}
}

func TestLoop_RejectsDoubleStart(t *testing.T) {
	f := newLoopFixture(t, Config{})
	if err := f.loop.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.loop.Stop()
	if err := f.loop.Start(); err == nil {
		t.Error("expected error on second Start")
	}
}

func TestLoop_CorrectionsClampedToLimits(t *testing.T) {
	f := newLoopFixture(t, Config{
		Gains:        pid.Gains{Kp: 1},
		OutputLimits: pid.Limits{Min: -20, Max: 20},
	})
	if err := f.loop.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.loop.Stop()

	// Huge error on both axes; each step must still be at most 20 counts.
	f.sensor.set(180, -90)
	azBefore, elBefore := f.az.Position(), f.el.Position()
	f.tm.Fire()

	if d := f.az.Position() - azBefore; d != -20 {
		t.Errorf("azimuth step = %d, want -20 (clamped, mirrored)", d)
	}
	if d := f.el.Position() - elBefore; d != -20 {
		t.Errorf("elevation step = %d, want -20 (clamped)", d)
	}
}

func TestLoop_AzimuthDriveMirrored(t *testing.T) {
	f := newLoopFixture(t, Config{
		Gains:        pid.Gains{Kp: 1},
		OutputLimits: pid.Limits{Min: -20, Max: 20},
	})
	if err := f.loop.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.loop.Stop()

	// Same positive error on both axes drives them in opposite directions.
	f.sensor.set(5, 5)
	azBefore, elBefore := f.az.Position(), f.el.Position()
	f.tm.Fire()

	if d := f.az.Position() - azBefore; d != -5 {
		t.Errorf("azimuth step = %d, want -5", d)
	}
	if d := f.el.Position() - elBefore; d != 5 {
		t.Errorf("elevation step = %d, want 5", d)
	}
}

func TestLoop_OverlappingTickDropped(t *testing.T) {
	f := newLoopFixture(t, Config{})

	if err := f.loop.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.loop.Stop()

	// Re-enter the tick from inside a sensor read, as a timer firing
	// mid-handler would. The nested tick must be dropped, not queued.
	nested := false
	f.sensor.onAzimuth = func() {
		if !nested {
			nested = true
			f.tm.Fire()
		}
	}

	f.tm.Fire()
	if got := f.loop.DroppedTicks(); got != 1 {
		t.Errorf("DroppedTicks = %d, want 1", got)
	}
}

func TestLoop_SensorFailureStopsLoop(t *testing.T) {
	f := newLoopFixture(t, Config{FaultThreshold: 3})
	if err := f.loop.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.sensor.fail(errors.New("bus dead"))
	azBefore := f.az.Position()
	for i := 0; i < 3; i++ {
		f.tm.Fire()
	}

	if f.loop.Running() {
		t.Error("loop still running after fault threshold")
	}
	if f.az.Position() != azBefore {
		t.Error("servos moved on failed sensor reads")
	}

	select {
	case err := <-f.loop.Faults():
		if !errors.Is(err, ErrSensorUnavailable) {
			t.Errorf("fault = %v, want ErrSensorUnavailable", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no fault delivered")
	}

	// The timer stop runs on its own goroutine; wait for it to land.
	deadline := time.Now().Add(time.Second)
	for f.tm.Armed() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if f.tm.Armed() {
		t.Error("timer still armed after self-stop")
	}
}

func TestLoop_TransientSensorFailureRecovers(t *testing.T) {
	f := newLoopFixture(t, Config{FaultThreshold: 3})
	if err := f.loop.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.loop.Stop()

	f.sensor.fail(errors.New("glitch"))
	f.tm.Fire()
	f.tm.Fire()
	f.sensor.fail(nil) // recovers below the threshold
	f.tm.Fire()

	if !f.loop.Running() {
		t.Error("loop stopped on a transient failure")
	}
	select {
	case err := <-f.loop.Faults():
		t.Errorf("unexpected fault: %v", err)
	default:
	}
}

func TestLoop_SetCoordinatesAppliesElevationOnRejection(t *testing.T) {
	f := newLoopFixture(t, Config{})
	f.loop.Store().SetDeadzones([]Arc{{Min: 100, Max: 200}})
	if err := f.loop.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.loop.Stop()

	err := f.loop.SetCoordinates(150, 33)
	if !errors.Is(err, ErrDeadzone) {
		t.Fatalf("SetCoordinates err = %v, want ErrDeadzone", err)
	}
	if got := f.loop.Store().Elevation(); got != 33 {
		t.Errorf("elevation target = %v, want 33 despite azimuth rejection", got)
	}
}
