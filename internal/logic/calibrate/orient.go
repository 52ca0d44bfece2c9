package calibrate

import (
	"context"
	"fmt"
	"time"

	"github.com/ldurand/PointGo/internal/clock"
	"github.com/ldurand/PointGo/internal/debug"
	"github.com/ldurand/PointGo/internal/hw/imu"
	"github.com/ldurand/PointGo/internal/hw/servo"
	"github.com/ldurand/PointGo/internal/logic/control"
)

// Probe discovers the azimuth deadzone: it drives the azimuth axis to
// both command extremes and reads where the platform actually points.
// The arc between the two readings (wrapping past 0° when the minimum
// reading exceeds the maximum) becomes the forbidden zone for azimuth
// setpoints.
type Probe struct {
	azimuth servo.Axis
	sensor  imu.Sensor
	clk     clock.Clock
	// Settle is the wait after each extreme before reading. Default 1s.
	Settle time.Duration
}

func NewProbe(azimuth servo.Axis, sensor imu.Sensor, clk clock.Clock) *Probe {
	return &Probe{
		azimuth: azimuth,
		sensor:  sensor,
		clk:     clk,
		Settle:  time.Second,
	}
}

// Run performs the probe and returns the deadzone arcs.
func (p *Probe) Run(ctx context.Context) ([]control.Arc, error) {
	minAz, err := p.readAt(ctx, p.azimuth.MinPosition())
	if err != nil {
		return nil, fmt.Errorf("orient: at min bound: %w", err)
	}
	maxAz, err := p.readAt(ctx, p.azimuth.MaxPosition())
	if err != nil {
		return nil, fmt.Errorf("orient: at max bound: %w", err)
	}

	var arcs []control.Arc
	if minAz > maxAz {
		// The arc wraps past 0°; split it at the origin.
		arcs = []control.Arc{{Min: minAz, Max: 360}, {Min: 0, Max: maxAz}}
	} else {
		arcs = []control.Arc{{Min: minAz, Max: maxAz}}
	}
	debug.Info("orientation probe: azimuth %.2f°..%.2f°, deadzone %v", minAz, maxAz, arcs)
	return arcs, nil
}

func (p *Probe) readAt(ctx context.Context, pos int) (float64, error) {
	if err := p.azimuth.SetPosition(pos); err != nil {
		return 0, fmt.Errorf("command %d: %w", pos, err)
	}
	if err := p.clk.Sleep(ctx, p.Settle); err != nil {
		return 0, err
	}
	return p.sensor.Azimuth()
}
