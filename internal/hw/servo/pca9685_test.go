package servo

import (
	"testing"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// recordingBus is an i2c.Bus that records every write.
type recordingBus struct {
	writes [][]byte
}

func (b *recordingBus) String() string                       { return "recording" }
func (b *recordingBus) SetSpeed(f physic.Frequency) error    { return nil }
func (b *recordingBus) Tx(addr uint16, w, r []byte) error {
	cp := make([]byte, len(w))
	copy(cp, w)
	b.writes = append(b.writes, cp)
	return nil
}

var _ i2c.Bus = (*recordingBus)(nil)

func (b *recordingBus) lastWrite() []byte {
	if len(b.writes) == 0 {
		return nil
	}
	return b.writes[len(b.writes)-1]
}

func TestPCA9685_InitProgramsPrescale(t *testing.T) {
	bus := &recordingBus{}
	if _, err := NewPCA9685(bus, 0x40, 0, "azimuth", 0, 4095); err != nil {
		t.Fatalf("NewPCA9685: %v", err)
	}

	var sawPrescale bool
	for _, w := range bus.writes {
		if len(w) == 2 && w[0] == regPrescale {
			sawPrescale = true
			if w[1] != prescale50Hz {
				t.Errorf("prescale = %d, want %d", w[1], prescale50Hz)
			}
		}
	}
	if !sawPrescale {
		t.Error("init never wrote the prescale register")
	}
}

func TestPCA9685_DutyWriteLayout(t *testing.T) {
	bus := &recordingBus{}
	s, err := NewPCA9685(bus, 0x40, 3, "elevation", 0, 4095)
	if err != nil {
		t.Fatalf("NewPCA9685: %v", err)
	}
	bus.writes = nil

	if err := s.SetPosition(0x0234); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}

	w := bus.lastWrite()
	if len(w) != 5 {
		t.Fatalf("duty write = %v, want 5 bytes", w)
	}
	if w[0] != regLed0OnL+4*3 {
		t.Errorf("register = 0x%02x, want 0x%02x (channel 3)", w[0], regLed0OnL+4*3)
	}
	// ON stays 0, OFF carries the position little-endian.
	if w[1] != 0 || w[2] != 0 {
		t.Errorf("ON bytes = %v, want 0,0", w[1:3])
	}
	if w[3] != 0x34 || w[4] != 0x02 {
		t.Errorf("OFF bytes = 0x%02x 0x%02x, want 0x34 0x02", w[3], w[4])
	}
}

func TestPCA9685_ClampsAndTracksPosition(t *testing.T) {
	bus := &recordingBus{}
	s, err := NewPCA9685(bus, 0x40, 0, "azimuth", 0, 4095)
	if err != nil {
		t.Fatalf("NewPCA9685: %v", err)
	}
	s.SetMinPosition(600)
	s.SetMaxPosition(3400)

	if err := s.SetPosition(9999); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if got := s.Position(); got != 3400 {
		t.Errorf("position = %d, want clamp to 3400", got)
	}

	if err := s.Step(-5000); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := s.Position(); got != 600 {
		t.Errorf("position after big negative step = %d, want 600", got)
	}
}

func TestPCA9685_RejectsBadChannel(t *testing.T) {
	bus := &recordingBus{}
	if _, err := NewPCA9685(bus, 0x40, 16, "azimuth", 0, 4095); err == nil {
		t.Error("expected error for channel 16")
	}
}
