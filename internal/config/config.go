package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServoConfig holds one axis's PCA9685 channel and nominal bounds.
type ServoConfig struct {
	Channel     int `yaml:"channel"`      // PCA9685 channel (0-15)
	MinPosition int `yaml:"min_position"` // nominal command minimum
	MaxPosition int `yaml:"max_position"` // nominal command maximum
}

// PWMConfig describes the PCA9685 servo controller.
type PWMConfig struct {
	I2CBus  string `yaml:"i2c_bus"` // periph.io bus name, e.g. "1" or "/dev/i2c-1"
	Address uint16 `yaml:"address"` // 7-bit address, default 0x40
}

// IMUConfig describes the BNO055 orientation sensor.
type IMUConfig struct {
	I2CBus      string `yaml:"i2c_bus"`
	Address     uint16 `yaml:"address"`      // default 0x28
	ResetPin    int    `yaml:"reset_pin"`    // GPIO for the RST line, 0 = not wired
	ProfilePath string `yaml:"profile_path"` // calibration persistence, "" = disabled
}

// PIDConfig tunes the control loop.
type PIDConfig struct {
	Kp        float64 `yaml:"kp"`
	Ki        float64 `yaml:"ki"`
	Kd        float64 `yaml:"kd"`
	OutputMin float64 `yaml:"output_min"` // correction clamp, servo counts
	OutputMax float64 `yaml:"output_max"`
	PeriodMs  int     `yaml:"period_ms"` // tick period
	TimerID   int     `yaml:"timer_id"`  // hardware timer peripheral (0-3)
	// FaultThreshold is the number of consecutive failed sensor reads
	// before the loop stops itself.
	FaultThreshold int `yaml:"fault_threshold"`
}

// CalibrationConfig tunes the calibration procedures.
type CalibrationConfig struct {
	RangeStep          int     `yaml:"range_step"`           // sweep command increment
	MotionThresholdDeg float64 `yaml:"motion_threshold_deg"` // motion edge threshold
	SettleMs           int     `yaml:"settle_ms"`            // per-step settle
	PreSettleMs        int     `yaml:"pre_settle_ms"`        // cross-axis settle
	PollMs             int     `yaml:"poll_ms"`              // confidence poll interval
	StallS             int     `yaml:"stall_s"`              // perturb after this much stall
	MaxDurationS       int     `yaml:"max_duration_s"`       // sensor calibration bound
}

// TelemetryConfig configures the optional MQTT publisher.
// An empty host disables telemetry entirely.
type TelemetryConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TopicPrefix string `yaml:"topic_prefix"`
	IntervalMs  int    `yaml:"interval_ms"` // orientation publish interval
	CACert      string `yaml:"ca_cert"`
	ClientCert  string `yaml:"client_cert"`
	ClientKey   string `yaml:"client_key"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel   int  `yaml:"debug_level"`    // 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockHardware bool `yaml:"mock_hardware"`  // simulate all hardware (dev on PC)
	StatusLedPin int  `yaml:"status_led_pin"` // lit while the loop tracks, 0 = not wired
}

// Config aggregates all application configuration.
type Config struct {
	AzimuthServo   ServoConfig       `yaml:"azimuth_servo"`
	ElevationServo ServoConfig       `yaml:"elevation_servo"`
	PWM            PWMConfig         `yaml:"pwm"`
	IMU            IMUConfig         `yaml:"imu"`
	PID            PIDConfig         `yaml:"pid"`
	Calibration    CalibrationConfig `yaml:"calibration"`
	Telemetry      TelemetryConfig   `yaml:"telemetry"`
	Defaults       DefaultsConfig    `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	for name, s := range map[string]*ServoConfig{"azimuth_servo": &cfg.AzimuthServo, "elevation_servo": &cfg.ElevationServo} {
		if s.Channel < 0 || s.Channel > 15 {
			return nil, fmt.Errorf("%s.channel must be 0-15, got %d", name, s.Channel)
		}
		if s.MaxPosition == 0 {
			s.MaxPosition = 4095 // nominal PCA9685 range
		}
		if s.MinPosition >= s.MaxPosition {
			return nil, fmt.Errorf("%s: min_position must be < max_position, got [%d, %d]", name, s.MinPosition, s.MaxPosition)
		}
	}
	if cfg.AzimuthServo.Channel == cfg.ElevationServo.Channel {
		return nil, fmt.Errorf("azimuth and elevation servos share channel %d", cfg.AzimuthServo.Channel)
	}

	if cfg.PWM.Address == 0 {
		cfg.PWM.Address = 0x40 // PCA9685 default
	}
	if cfg.IMU.Address == 0 {
		cfg.IMU.Address = 0x28 // BNO055 default
	}

	if cfg.PID.Kp == 0 && cfg.PID.Ki == 0 && cfg.PID.Kd == 0 {
		cfg.PID.Kp = 1.0 // pure proportional default
	}
	if cfg.PID.OutputMin == 0 && cfg.PID.OutputMax == 0 {
		cfg.PID.OutputMin = -20
		cfg.PID.OutputMax = 20
	}
	if cfg.PID.OutputMin >= cfg.PID.OutputMax {
		return nil, fmt.Errorf("pid: output_min must be < output_max, got [%g, %g]", cfg.PID.OutputMin, cfg.PID.OutputMax)
	}
	if cfg.PID.PeriodMs <= 0 {
		cfg.PID.PeriodMs = 100
	}
	if cfg.PID.TimerID < 0 || cfg.PID.TimerID > 3 {
		return nil, fmt.Errorf("pid.timer_id must be 0-3, got %d", cfg.PID.TimerID)
	}
	if cfg.PID.FaultThreshold <= 0 {
		cfg.PID.FaultThreshold = 10
	}

	if cfg.Calibration.RangeStep <= 0 {
		cfg.Calibration.RangeStep = 100
	}
	if cfg.Calibration.MotionThresholdDeg <= 0 {
		cfg.Calibration.MotionThresholdDeg = 0.5
	}
	if cfg.Calibration.SettleMs <= 0 {
		cfg.Calibration.SettleMs = 100
	}
	if cfg.Calibration.PreSettleMs <= 0 {
		cfg.Calibration.PreSettleMs = 1000
	}
	if cfg.Calibration.PollMs <= 0 {
		cfg.Calibration.PollMs = 50
	}
	if cfg.Calibration.StallS <= 0 {
		cfg.Calibration.StallS = 2
	}
	if cfg.Calibration.MaxDurationS <= 0 {
		cfg.Calibration.MaxDurationS = 300
	}

	if cfg.Telemetry.Host != "" && cfg.Telemetry.IntervalMs <= 0 {
		cfg.Telemetry.IntervalMs = 1000
	}
	if cfg.Telemetry.TopicPrefix == "" {
		cfg.Telemetry.TopicPrefix = "pointgo"
	}

	return &cfg, nil
}

// TickPeriod returns the control loop period.
func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.PID.PeriodMs) * time.Millisecond
}

// RangeSettle returns the per-step settle delay for range calibration.
func (c *Config) RangeSettle() time.Duration {
	return time.Duration(c.Calibration.SettleMs) * time.Millisecond
}

// RangePreSettle returns the cross-axis settle delay.
func (c *Config) RangePreSettle() time.Duration {
	return time.Duration(c.Calibration.PreSettleMs) * time.Millisecond
}

// CalibrationPoll returns the confidence poll interval.
func (c *Config) CalibrationPoll() time.Duration {
	return time.Duration(c.Calibration.PollMs) * time.Millisecond
}

// CalibrationStall returns the stall interval before a pose perturbation.
func (c *Config) CalibrationStall() time.Duration {
	return time.Duration(c.Calibration.StallS) * time.Second
}

// CalibrationMaxDuration returns the sensor calibration time bound.
func (c *Config) CalibrationMaxDuration() time.Duration {
	return time.Duration(c.Calibration.MaxDurationS) * time.Second
}

// TelemetryInterval returns the orientation publish interval.
func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.Telemetry.IntervalMs) * time.Millisecond
}
