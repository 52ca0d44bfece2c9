package imu

import (
	"sync"

	"github.com/ldurand/PointGo/internal/debug"
)

// Mock is a Sensor for development on PC. Orientation is set
// programmatically (the mock hardware wiring in cmd couples it to the
// mock servos) and calibration converges after a few polls.
type Mock struct {
	mu        sync.Mutex
	azimuth   float64
	elevation float64
	mode      Mode
	polls     map[string]int
	// PollsToConverge controls how many status polls it takes for each
	// sub-sensor to reach full confidence. Zero means instantly calibrated.
	PollsToConverge int
}

func NewMock() *Mock {
	return &Mock{
		mode:  ModeNDOF,
		polls: make(map[string]int),
	}
}

// SetOrientation moves the simulated platform.
func (m *Mock) SetOrientation(azimuth, elevation float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for azimuth < 0 {
		azimuth += 360
	}
	for azimuth >= 360 {
		azimuth -= 360
	}
	m.azimuth = azimuth
	m.elevation = elevation
}

func (m *Mock) Azimuth() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.azimuth, nil
}

func (m *Mock) Elevation() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elevation, nil
}

func (m *Mock) PrepareCalibration() (Mode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.mode
	m.mode = ModeNDOF
	return prev, nil
}

func (m *Mock) SetMode(mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
	return nil
}

func (m *Mock) status(kind string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls[kind]++
	if m.PollsToConverge <= 0 || m.polls[kind] >= m.PollsToConverge {
		return ConfidenceFull, nil
	}
	// Scale confidence with poll progress.
	return m.polls[kind] * ConfidenceFull / m.PollsToConverge, nil
}

func (m *Mock) AccelerometerStatus() (int, error) { return m.status(ProfileAccelerometer) }
func (m *Mock) MagnetometerStatus() (int, error)  { return m.status(ProfileMagnetometer) }
func (m *Mock) GyroscopeStatus() (int, error)     { return m.status(ProfileGyroscope) }

func (m *Mock) save(kind string) error {
	debug.Info("mock IMU: %s calibration committed", kind)
	return nil
}

func (m *Mock) SaveAccelerometerCalibration() error { return m.save(ProfileAccelerometer) }
func (m *Mock) SaveMagnetometerCalibration() error  { return m.save(ProfileMagnetometer) }
func (m *Mock) SaveGyroscopeCalibration() error     { return m.save(ProfileGyroscope) }
