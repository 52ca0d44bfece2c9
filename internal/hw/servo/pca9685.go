package servo

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/ldurand/PointGo/internal/debug"
)

// PCA9685 registers.
const (
	regMode1    = 0x00
	regPrescale = 0xFE
	regLed0OnL  = 0x06

	mode1Sleep   = 0x10
	mode1Restart = 0x80
	mode1AutoInc = 0x20

	// 25 MHz internal oscillator, 12-bit counter, 50 Hz servo frame:
	// round(25e6 / (4096 * 50)) - 1
	prescale50Hz = 121
)

// PCA9685 drives one servo channel of a PCA9685 16-channel PWM
// controller over I2C. Each platform axis gets its own instance;
// instances sharing a chip share the *i2c.Dev.
type PCA9685 struct {
	mu      sync.Mutex
	dev     *i2c.Dev
	channel int
	name    string
	limits
	pos int
}

// NewPCA9685 creates an axis on the given channel and programs the chip
// for a 50 Hz servo frame. min/max are the nominal command bounds; range
// calibration refines them later.
func NewPCA9685(bus i2c.Bus, addr uint16, channel int, name string, min, max int) (*PCA9685, error) {
	if channel < 0 || channel > 15 {
		return nil, fmt.Errorf("pca9685: channel must be 0-15, got %d", channel)
	}
	if min >= max {
		return nil, fmt.Errorf("pca9685: invalid bounds [%d, %d]", min, max)
	}

	s := &PCA9685{
		dev:     &i2c.Dev{Addr: addr, Bus: bus},
		channel: channel,
		name:    name,
		limits:  limits{min: min, max: max},
	}

	if err := s.initChip(); err != nil {
		return nil, fmt.Errorf("pca9685 %s: init: %w", name, err)
	}

	// Park at mid-range so the platform starts from a known pose.
	s.pos = min + (max-min)/2
	if err := s.writeDuty(s.pos); err != nil {
		return nil, fmt.Errorf("pca9685 %s: park: %w", name, err)
	}
	return s, nil
}

func (s *PCA9685) initChip() error {
	// Prescale can only be written while the oscillator sleeps.
	if err := s.writeReg(regMode1, mode1Sleep); err != nil {
		return err
	}
	if err := s.writeReg(regPrescale, prescale50Hz); err != nil {
		return err
	}
	if err := s.writeReg(regMode1, 0x00); err != nil {
		return err
	}
	time.Sleep(5 * time.Millisecond) // oscillator wake-up
	return s.writeReg(regMode1, mode1Restart|mode1AutoInc)
}

func (s *PCA9685) writeReg(reg, val byte) error {
	debug.Bus("pca9685/"+s.name, reg, val)
	return s.dev.Tx([]byte{reg, val}, nil)
}

// writeDuty sets the channel's OFF count; ON stays at 0 so the duty is
// the position value itself.
func (s *PCA9685) writeDuty(pos int) error {
	reg := byte(regLed0OnL + 4*s.channel)
	debug.Bus("pca9685/"+s.name, reg, pos)
	buf := []byte{
		reg,
		0x00, 0x00,
		byte(pos & 0xFF), byte(pos >> 8),
	}
	return s.dev.Tx(buf, nil)
}

func (s *PCA9685) MinPosition() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.min
}

func (s *PCA9685) MaxPosition() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max
}

func (s *PCA9685) SetMinPosition(pos int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setMin(pos)
}

func (s *PCA9685) SetMaxPosition(pos int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setMax(pos)
}

func (s *PCA9685) SetPosition(pos int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.command(clamp(pos, s.min, s.max))
}

func (s *PCA9685) Step(delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.command(clamp(s.pos+delta, s.min, s.max))
}

func (s *PCA9685) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *PCA9685) command(pos int) error {
	if err := s.writeDuty(pos); err != nil {
		return fmt.Errorf("pca9685 %s: set position %d: %w", s.name, pos, err)
	}
	s.pos = pos
	return nil
}
