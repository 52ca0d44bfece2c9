// Package pid implements the correction capability used by the control
// loop: given an error and the elapsed time, produce a clamped
// proportional-integral-derivative output.
package pid

// Gains holds the three PID coefficients.
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Limits clamps the controller output (and bounds the integral term, so
// a long-standing error cannot wind the accumulator up past the point
// where the output saturates).
type Limits struct {
	Min float64
	Max float64
}

// Controller is a single-axis PID controller. Not safe for concurrent
// use; each axis owns its own instance, mutated only by the tick context.
type Controller struct {
	gains  Gains
	limits Limits

	integral  float64
	prevErr   float64
	primed    bool // prevErr is valid (at least one update since Reset)
}

// New creates a controller with the given gains and output limits.
func New(gains Gains, limits Limits) *Controller {
	return &Controller{gains: gains, limits: limits}
}

// Update advances the controller by dt seconds with the given error and
// returns the correction, clamped to the output limits.
func (c *Controller) Update(err, dt float64) float64 {
	p := c.gains.Kp * err

	var d float64
	if dt > 0 {
		c.integral += err * dt
		c.integral = c.clampIntegral(c.integral)
		if c.primed {
			d = c.gains.Kd * (err - c.prevErr) / dt
		}
	}
	c.prevErr = err
	c.primed = true

	return c.clamp(p + c.gains.Ki*c.integral + d)
}

// Reset clears the accumulated state. Called when the loop starts, so
// stale history from a previous run cannot kick the platform.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevErr = 0
	c.primed = false
}

func (c *Controller) clamp(v float64) float64 {
	if v < c.limits.Min {
		return c.limits.Min
	}
	if v > c.limits.Max {
		return c.limits.Max
	}
	return v
}

// clampIntegral keeps Ki*integral inside the output limits.
func (c *Controller) clampIntegral(i float64) float64 {
	if c.gains.Ki == 0 {
		return 0
	}
	if hi := c.limits.Max / c.gains.Ki; i > hi {
		return hi
	}
	if lo := c.limits.Min / c.gains.Ki; i < lo {
		return lo
	}
	return i
}
