package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRealSleep_Elapses(t *testing.T) {
	c := NewReal()
	start := time.Now()
	if err := c.Sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Sleep returned after %v, want >= 10ms", elapsed)
	}
}

func TestRealSleep_Cancelled(t *testing.T) {
	c := NewReal()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := c.Sleep(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep err = %v, want context.Canceled", err)
	}
}

func TestRealSleep_ZeroDuration(t *testing.T) {
	c := NewReal()
	if err := c.Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0): %v", err)
	}
}

func TestManual_AdvancesInsteadOfBlocking(t *testing.T) {
	c := NewManual()
	before := c.Now()
	if err := c.Sleep(context.Background(), time.Hour); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if got := c.Now().Sub(before); got != time.Hour {
		t.Errorf("clock advanced by %v, want 1h", got)
	}
}

func TestManual_SleepHonorsCancellation(t *testing.T) {
	c := NewManual()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	before := c.Now()
	if err := c.Sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep err = %v, want context.Canceled", err)
	}
	if !c.Now().Equal(before) {
		t.Error("cancelled Sleep must not advance the clock")
	}
}

func TestManual_SleepHook(t *testing.T) {
	c := NewManual()
	var seen time.Duration
	c.SleepHook = func(d time.Duration) { seen = d }
	if err := c.Sleep(context.Background(), 250*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if seen != 250*time.Millisecond {
		t.Errorf("hook saw %v, want 250ms", seen)
	}
}

func TestManualAt_StartsAtGivenInstant(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualAt(at)
	if !c.Now().Equal(at) {
		t.Errorf("Now() = %v, want %v", c.Now(), at)
	}
	c.Advance(90 * time.Second)
	if !c.Now().Equal(at.Add(90 * time.Second)) {
		t.Errorf("Now() after Advance = %v", c.Now())
	}
}
