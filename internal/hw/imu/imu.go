package imu

// Mode is an opaque fusion operating mode, returned by PrepareCalibration
// so the caller can restore it once calibration converges.
type Mode byte

// Confidence levels reported per sub-sensor by the fusion chip.
const (
	ConfidenceNone = 0
	ConfidenceFull = 3
)

// Sensor is the orientation capability consumed by the control loop and
// the calibration procedures. Azimuth is in degrees [0, 360), elevation
// in degrees around the horizon.
type Sensor interface {
	Azimuth() (float64, error)
	Elevation() (float64, error)

	// PrepareCalibration switches the sensor into a calibration-friendly
	// fusion mode and returns the mode that was active before.
	PrepareCalibration() (Mode, error)
	// SetMode restores a previously saved operating mode.
	SetMode(m Mode) error

	// Per-sensor calibration confidence, 0 (uncalibrated) to 3 (full).
	AccelerometerStatus() (int, error)
	MagnetometerStatus() (int, error)
	GyroscopeStatus() (int, error)

	// Save*Calibration commits the named sub-sensor's calibration
	// profile to persistent storage.
	SaveAccelerometerCalibration() error
	SaveMagnetometerCalibration() error
	SaveGyroscopeCalibration() error
}
