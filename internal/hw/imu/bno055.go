package imu

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/ldurand/PointGo/internal/debug"
	"github.com/ldurand/PointGo/internal/hw/gpio"
)

// BNO055 registers (page 0).
const (
	regChipID    = 0x00
	regEulerH    = 0x1A // heading LSB, then roll, then pitch (int16 LE each)
	regEulerR    = 0x1C
	regEulerP    = 0x1E
	regCalibStat = 0x35
	regOprMode   = 0x3D
	regSysTrig   = 0x3F

	regAccOffsets  = 0x55 // 6 bytes + radius at 0x67
	regMagOffsets  = 0x5B // 6 bytes + radius at 0x69
	regGyroOffsets = 0x61 // 6 bytes

	chipID = 0xA0

	// Operating modes.
	ModeConfig Mode = 0x00
	ModeNDOF   Mode = 0x0C

	eulerLSBPerDeg = 16.0
)

// BNO055 is the Sensor implementation for Bosch's BNO055 fusion IMU
// over I2C. The chip is mounted with its X axis along the boresight,
// so fused heading maps to azimuth and roll to elevation.
type BNO055 struct {
	mu      sync.Mutex
	dev     *i2c.Dev
	profile *Profile
	gpio    gpio.Driver
	rstPin  int
}

// NewBNO055 opens the IMU, optionally pulsing its reset line first, and
// puts it in the NDOF fusion mode. profilePath is where calibration
// commits are persisted; empty disables persistence.
func NewBNO055(bus i2c.Bus, addr uint16, profilePath string, g gpio.Driver, rstPin int) (*BNO055, error) {
	s := &BNO055{
		dev:    &i2c.Dev{Addr: addr, Bus: bus},
		gpio:   g,
		rstPin: rstPin,
	}
	if profilePath != "" {
		s.profile = NewProfile(profilePath)
	}

	if g != nil && rstPin > 0 {
		if err := s.hardwareReset(); err != nil {
			return nil, err
		}
	}

	id, err := s.readReg(regChipID)
	if err != nil {
		return nil, fmt.Errorf("bno055: read chip id: %w", err)
	}
	if id != chipID {
		return nil, fmt.Errorf("bno055: unexpected chip id 0x%02x (want 0x%02x)", id, chipID)
	}

	if err := s.setMode(ModeNDOF); err != nil {
		return nil, fmt.Errorf("bno055: enter NDOF: %w", err)
	}
	debug.Info("BNO055 online in NDOF mode")
	return s, nil
}

// hardwareReset pulses the RST line low. The chip needs ~650ms to boot.
func (s *BNO055) hardwareReset() error {
	debug.Verbose("BNO055: hardware reset on pin %d", s.rstPin)
	if err := s.gpio.SetupPin(s.rstPin, gpio.Output); err != nil {
		return fmt.Errorf("bno055: setup reset pin: %w", err)
	}
	if err := s.gpio.WritePin(s.rstPin, gpio.Low); err != nil {
		return fmt.Errorf("bno055: assert reset: %w", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := s.gpio.WritePin(s.rstPin, gpio.High); err != nil {
		return fmt.Errorf("bno055: release reset: %w", err)
	}
	time.Sleep(650 * time.Millisecond)
	return nil
}

func (s *BNO055) readReg(reg byte) (byte, error) {
	buf := make([]byte, 1)
	if err := s.dev.Tx([]byte{reg}, buf); err != nil {
		return 0, err
	}
	debug.Bus("bno055", reg, buf[0])
	return buf[0], nil
}

func (s *BNO055) readRegs(reg byte, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := s.dev.Tx([]byte{reg}, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *BNO055) writeReg(reg, val byte) error {
	debug.Bus("bno055", reg, val)
	return s.dev.Tx([]byte{reg, val}, nil)
}

// readEuler returns one fused Euler angle in degrees.
func (s *BNO055) readEuler(reg byte) (float64, error) {
	buf, err := s.readRegs(reg, 2)
	if err != nil {
		return 0, fmt.Errorf("bno055: read euler 0x%02x: %w", reg, err)
	}
	raw := int16(uint16(buf[0]) | uint16(buf[1])<<8)
	return float64(raw) / eulerLSBPerDeg, nil
}

func (s *BNO055) Azimuth() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.readEuler(regEulerH)
	if err != nil {
		return 0, err
	}
	// Heading is already 0..360 from the fusion core; normalize anyway
	// in case of a glitched sample.
	for h < 0 {
		h += 360
	}
	for h >= 360 {
		h -= 360
	}
	return h, nil
}

func (s *BNO055) Elevation() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readEuler(regEulerR)
}

func (s *BNO055) PrepareCalibration() (Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.readReg(regOprMode)
	if err != nil {
		return 0, fmt.Errorf("bno055: read mode: %w", err)
	}
	if err := s.setMode(ModeNDOF); err != nil {
		return 0, fmt.Errorf("bno055: enter calibration mode: %w", err)
	}
	return Mode(prev & 0x0F), nil
}

func (s *BNO055) SetMode(m Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMode(m)
}

func (s *BNO055) setMode(m Mode) error {
	if err := s.writeReg(regOprMode, byte(m)); err != nil {
		return fmt.Errorf("bno055: set mode 0x%02x: %w", byte(m), err)
	}
	// Datasheet: 19ms to leave CONFIG, 7ms to enter it.
	time.Sleep(20 * time.Millisecond)
	return nil
}

// calibStat returns the CALIB_STAT field for the given 2-bit slot.
func (s *BNO055) calibStat(shift uint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.readReg(regCalibStat)
	if err != nil {
		return 0, fmt.Errorf("bno055: read calib status: %w", err)
	}
	return int(st>>shift) & 0x03, nil
}

func (s *BNO055) AccelerometerStatus() (int, error) { return s.calibStat(2) }
func (s *BNO055) MagnetometerStatus() (int, error)  { return s.calibStat(0) }
func (s *BNO055) GyroscopeStatus() (int, error)     { return s.calibStat(4) }

// saveOffsets snapshots a block of offset registers and persists it.
// Offset registers are only readable in CONFIG mode, so the current
// mode is saved and restored around the read.
func (s *BNO055) saveOffsets(kind string, reg byte, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return fmt.Errorf("bno055: no calibration profile path configured")
	}

	prev, err := s.readReg(regOprMode)
	if err != nil {
		return fmt.Errorf("bno055: read mode: %w", err)
	}
	if err := s.setMode(ModeConfig); err != nil {
		return err
	}
	offsets, err := s.readRegs(reg, n)
	if err != nil {
		_ = s.setMode(Mode(prev & 0x0F))
		return fmt.Errorf("bno055: read %s offsets: %w", kind, err)
	}
	if err := s.setMode(Mode(prev & 0x0F)); err != nil {
		return err
	}

	if err := s.profile.Store(kind, offsets); err != nil {
		return fmt.Errorf("bno055: persist %s offsets: %w", kind, err)
	}
	debug.Info("BNO055: %s calibration committed (%d bytes)", kind, n)
	return nil
}

func (s *BNO055) SaveAccelerometerCalibration() error {
	return s.saveOffsets(ProfileAccelerometer, regAccOffsets, 6)
}

func (s *BNO055) SaveMagnetometerCalibration() error {
	return s.saveOffsets(ProfileMagnetometer, regMagOffsets, 6)
}

func (s *BNO055) SaveGyroscopeCalibration() error {
	return s.saveOffsets(ProfileGyroscope, regGyroOffsets, 6)
}

// RestoreCalibration writes previously committed offsets back into the
// chip, if a profile file exists. Called once at startup, before the
// control loop is armed.
func (s *BNO055) RestoreCalibration() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return nil
	}
	blocks, err := s.profile.Load()
	if err != nil {
		return fmt.Errorf("bno055: load calibration profile: %w", err)
	}
	if len(blocks) == 0 {
		return nil
	}

	prev, err := s.readReg(regOprMode)
	if err != nil {
		return fmt.Errorf("bno055: read mode: %w", err)
	}
	if err := s.setMode(ModeConfig); err != nil {
		return err
	}
	regs := map[string]byte{
		ProfileAccelerometer: regAccOffsets,
		ProfileMagnetometer:  regMagOffsets,
		ProfileGyroscope:     regGyroOffsets,
	}
	for kind, data := range blocks {
		base, ok := regs[kind]
		if !ok {
			continue
		}
		for i, b := range data {
			if err := s.writeReg(base+byte(i), b); err != nil {
				_ = s.setMode(Mode(prev & 0x0F))
				return fmt.Errorf("bno055: restore %s offsets: %w", kind, err)
			}
		}
		debug.Verbose("BNO055: restored %s offsets (%d bytes)", kind, len(data))
	}
	return s.setMode(Mode(prev & 0x0F))
}
