package pid

import (
	"math"
	"testing"
)

func TestController_Proportional(t *testing.T) {
	c := New(Gains{Kp: 2}, Limits{Min: -100, Max: 100})

	got := c.Update(5, 0.1)
	if got != 10 {
		t.Errorf("Update(5) = %v, want 10", got)
	}
	got = c.Update(-5, 0.1)
	if got != -10 {
		t.Errorf("Update(-5) = %v, want -10", got)
	}
}

func TestController_OutputAlwaysClamped(t *testing.T) {
	c := New(Gains{Kp: 10, Ki: 5, Kd: 1}, Limits{Min: -20, Max: 20})

	// Large persistent error in both directions; the output must stay
	// inside the limits for any number of updates.
	errs := []float64{500, 500, 500, -500, -500, 1e6, -1e6, 0, 42}
	for i := 0; i < 200; i++ {
		e := errs[i%len(errs)]
		out := c.Update(e, 0.1)
		if out < -20 || out > 20 {
			t.Fatalf("update %d: output %v outside [-20, 20]", i, out)
		}
	}
}

func TestController_IntegralAccumulates(t *testing.T) {
	c := New(Gains{Ki: 1}, Limits{Min: -100, Max: 100})

	// error 2 for 1s total -> integral 2
	c.Update(2, 0.5)
	got := c.Update(2, 0.5)
	if math.Abs(got-2) > 1e-9 {
		t.Errorf("integral output = %v, want 2", got)
	}
}

func TestController_AntiWindup(t *testing.T) {
	c := New(Gains{Ki: 1}, Limits{Min: -10, Max: 10})

	// Saturate the integral far beyond the limit...
	for i := 0; i < 100; i++ {
		c.Update(100, 1)
	}
	// ...then reverse the error: recovery must be quick because the
	// accumulator was clamped, not wound up to 10000.
	c.Update(-15, 1)
	got := c.Update(-15, 1)
	if got > 0 {
		t.Errorf("after reversal output = %v, want <= 0 (integral wound up)", got)
	}
}

func TestController_DerivativeNeedsHistory(t *testing.T) {
	c := New(Gains{Kd: 1}, Limits{Min: -100, Max: 100})

	// First update after reset has no previous error; derivative must
	// not kick.
	if got := c.Update(50, 0.1); got != 0 {
		t.Errorf("first update derivative = %v, want 0", got)
	}
	// Now a change of -10 over 0.1s -> derivative -100, clamped.
	if got := c.Update(40, 0.1); got != -100 {
		t.Errorf("second update = %v, want -100", got)
	}
}

func TestController_Reset(t *testing.T) {
	c := New(Gains{Kp: 1, Ki: 1, Kd: 1}, Limits{Min: -100, Max: 100})
	for i := 0; i < 10; i++ {
		c.Update(7, 0.1)
	}
	c.Reset()

	// After reset the controller behaves like a fresh one.
	fresh := New(Gains{Kp: 1, Ki: 1, Kd: 1}, Limits{Min: -100, Max: 100})
	if got, want := c.Update(3, 0.1), fresh.Update(3, 0.1); got != want {
		t.Errorf("after reset Update = %v, fresh = %v", got, want)
	}
}

func TestController_ZeroDt(t *testing.T) {
	c := New(Gains{Kp: 1, Ki: 1, Kd: 1}, Limits{Min: -100, Max: 100})
	c.Update(5, 0.1)
	// dt=0 must not divide by zero or grow the integral.
	got := c.Update(5, 0)
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("Update with dt=0 = %v", got)
	}
}
