package control

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ldurand/PointGo/internal/clock"
	"github.com/ldurand/PointGo/internal/debug"
	"github.com/ldurand/PointGo/internal/hw/imu"
	"github.com/ldurand/PointGo/internal/hw/servo"
	"github.com/ldurand/PointGo/internal/hw/timer"
	"github.com/ldurand/PointGo/internal/pid"
)

// Config tunes the dual-axis loop.
type Config struct {
	// Period between ticks. The tick handler must finish well within it.
	Period time.Duration
	Gains  pid.Gains
	// OutputLimits clamp the per-tick correction, in servo counts.
	OutputLimits pid.Limits
	// FaultThreshold is the number of consecutive sensor read failures
	// after which the loop stops itself and reports ErrSensorUnavailable.
	FaultThreshold int
}

func (c *Config) applyDefaults() {
	if c.Period <= 0 {
		c.Period = 100 * time.Millisecond
	}
	if c.Gains == (pid.Gains{}) {
		c.Gains = pid.Gains{Kp: 1.0}
	}
	if c.OutputLimits == (pid.Limits{}) {
		c.OutputLimits = pid.Limits{Min: -20, Max: 20}
	}
	if c.FaultThreshold <= 0 {
		c.FaultThreshold = 10
	}
}

// Loop closes the feedback loop between the orientation sensor and the
// two servo axes. A periodic timer drives the tick; setpoints arrive
// through the SetpointStore from the command context.
type Loop struct {
	azimuth   servo.Axis
	elevation servo.Axis
	sensor    imu.Sensor
	timer     timer.Periodic
	clk       clock.Clock
	store     *SetpointStore
	cfg       Config

	// PID state is owned exclusively by the tick context.
	azPID *pid.Controller
	elPID *pid.Controller

	running  atomic.Bool
	inTick   atomic.Bool
	lastTick atomic.Int64 // unix nanos of the previous tick

	dropped     atomic.Uint64
	sensorFails atomic.Uint32
	fault       chan error
}

// NewLoop wires a loop from its capabilities. The store may be shared
// with command-issuing code and the web layer.
func NewLoop(azimuth, elevation servo.Axis, sensor imu.Sensor, tm timer.Periodic, clk clock.Clock, store *SetpointStore, cfg Config) *Loop {
	cfg.applyDefaults()
	return &Loop{
		azimuth:   azimuth,
		elevation: elevation,
		sensor:    sensor,
		timer:     tm,
		clk:       clk,
		store:     store,
		cfg:       cfg,
		azPID:     pid.New(cfg.Gains, cfg.OutputLimits),
		elPID:     pid.New(cfg.Gains, cfg.OutputLimits),
		fault:     make(chan error, 1),
	}
}

// Start seeds both setpoints from the current sensor reading and arms
// the timer. Seeding prevents the loop from slewing to a stale target
// the instant it comes alive.
func (l *Loop) Start() error {
	if l.running.Load() {
		return fmt.Errorf("control loop already running")
	}

	az, err := l.sensor.Azimuth()
	if err != nil {
		return fmt.Errorf("%w: seed azimuth: %v", ErrSensorUnavailable, err)
	}
	el, err := l.sensor.Elevation()
	if err != nil {
		return fmt.Errorf("%w: seed elevation: %v", ErrSensorUnavailable, err)
	}
	l.store.Seed(az, el)

	l.azPID.Reset()
	l.elPID.Reset()
	l.sensorFails.Store(0)
	l.lastTick.Store(0)

	if err := l.timer.Start(l.cfg.Period, l.tick); err != nil {
		return fmt.Errorf("arm pid timer: %w", err)
	}
	l.running.Store(true)
	debug.Info("control loop started (period %v, seed az=%.2f° el=%.2f°)", l.cfg.Period, az, el)
	return nil
}

// Stop disarms the timer. When it returns no tick is executing and no
// further tick will fire.
func (l *Loop) Stop() {
	if !l.running.Swap(false) {
		return
	}
	l.timer.Stop()
	debug.Info("control loop stopped")
}

// Running reports whether the loop is armed.
func (l *Loop) Running() bool { return l.running.Load() }

// Faults delivers at most one error when the loop stops itself
// (currently only ErrSensorUnavailable).
func (l *Loop) Faults() <-chan error { return l.fault }

// DroppedTicks returns how many timer fires were discarded because the
// previous handler was still running.
func (l *Loop) DroppedTicks() uint64 { return l.dropped.Load() }

// tick runs in the timer context. It must never block: sensor reads and
// servo writes are short bus transactions, and every shared value comes
// from an atomic slot.
func (l *Loop) tick() {
	// Overlap policy: drop and count, never queue.
	if !l.inTick.CompareAndSwap(false, true) {
		l.dropped.Add(1)
		return
	}
	defer l.inTick.Store(false)

	if !l.running.Load() {
		return
	}

	now := l.clk.Now().UnixNano()
	prev := l.lastTick.Swap(now)
	dt := time.Duration(now - prev).Seconds()
	if prev == 0 || dt <= 0 {
		dt = l.cfg.Period.Seconds()
	}

	azMeasured, errAz := l.sensor.Azimuth()
	elMeasured, errEl := l.sensor.Elevation()
	if errAz != nil || errEl != nil {
		l.sensorFailed(errAz, errEl)
		return
	}
	l.sensorFails.Store(0)

	// error = measured - setpoint. The arc between them never crosses a
	// deadzone, so the raw difference is the right drive direction.
	azCorr := l.azPID.Update(azMeasured-l.store.Azimuth(), dt)
	elCorr := l.elPID.Update(elMeasured-l.store.Elevation(), dt)

	// Azimuth drive is mirrored relative to elevation (wiring convention).
	if err := l.azimuth.Step(int(-azCorr)); err != nil {
		debug.Error(fmt.Errorf("tick: azimuth step: %w", err))
	}
	if err := l.elevation.Step(int(elCorr)); err != nil {
		debug.Error(fmt.Errorf("tick: elevation step: %w", err))
	}

	debug.Trace("tick az=%.2f°→%.2f° corr=%.1f | el=%.2f°→%.2f° corr=%.1f",
		azMeasured, l.store.Azimuth(), -azCorr, elMeasured, l.store.Elevation(), elCorr)
}

// sensorFailed counts a failed tick; past the threshold the loop stops
// itself and surfaces the fault to the owning context. The stop runs on
// a separate goroutine because timer.Stop waits for this very handler.
func (l *Loop) sensorFailed(errs ...error) {
	fails := l.sensorFails.Add(1)
	debug.Verbose("tick skipped: sensor read failed (%d consecutive)", fails)
	if int(fails) < l.cfg.FaultThreshold {
		return
	}
	if l.running.CompareAndSwap(true, false) {
		var cause error
		for _, err := range errs {
			if err != nil {
				cause = err
				break
			}
		}
		fault := fmt.Errorf("%w: %d consecutive read failures: %v", ErrSensorUnavailable, fails, cause)
		debug.Error(fault)
		select {
		case l.fault <- fault:
		default:
		}
		go l.timer.Stop()
	}
}

// --- command-context API (pass-throughs per the platform surface) ---

// SetAzimuth points the platform at the given azimuth, subject to
// orientation and deadzone gating.
func (l *Loop) SetAzimuth(deg float64) error {
	return l.store.SetAzimuth(deg)
}

// SetElevation points the platform at the given elevation.
func (l *Loop) SetElevation(deg float64) {
	l.store.SetElevation(deg)
}

// SetCoordinates points both axes. Elevation is applied even when the
// azimuth target is rejected.
func (l *Loop) SetCoordinates(azimuth, elevation float64) error {
	l.store.SetElevation(elevation)
	return l.store.SetAzimuth(azimuth)
}

// GetAzimuth reads the platform's current azimuth from the sensor.
func (l *Loop) GetAzimuth() (float64, error) {
	return l.sensor.Azimuth()
}

// GetElevation reads the platform's current elevation from the sensor.
func (l *Loop) GetElevation() (float64, error) {
	return l.sensor.Elevation()
}

// Store exposes the shared setpoint store (for status reporting).
func (l *Loop) Store() *SetpointStore { return l.store }
