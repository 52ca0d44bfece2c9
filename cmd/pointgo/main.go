package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/ldurand/PointGo/internal/clock"
	"github.com/ldurand/PointGo/internal/config"
	"github.com/ldurand/PointGo/internal/debug"
	"github.com/ldurand/PointGo/internal/hw/gpio"
	"github.com/ldurand/PointGo/internal/hw/imu"
	"github.com/ldurand/PointGo/internal/hw/servo"
	"github.com/ldurand/PointGo/internal/hw/timer"
	"github.com/ldurand/PointGo/internal/logic/calibrate"
	"github.com/ldurand/PointGo/internal/logic/control"
	"github.com/ldurand/PointGo/internal/logic/platform"
	"github.com/ldurand/PointGo/internal/pid"
	"github.com/ldurand/PointGo/internal/telemetry"
	"github.com/ldurand/PointGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web dashboard on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	runCalibration := flag.Bool("calibrate", false, "run the full calibration sequence before tracking")
	runOrient := flag.Bool("orient", false, "run the orientation probe before tracking")
	targetAz := flag.Float64("azimuth", -1, "initial azimuth target in degrees (requires orientation)")
	targetEl := flag.Float64("elevation", -1000, "initial elevation target in degrees")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Mock hardware", cfg.Defaults.MockHardware)

	// Initialize GPIO driver
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockHardware)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Initialize servos and IMU
	debug.Step(2, "Initializing servos and IMU")
	azServo, elServo, sensor, err := newHardware(cfg, gpioDriver)
	if err != nil {
		log.Fatalf("init hardware failed: %v", err)
	}

	// Initialize the PID tick timer
	debug.Step(3, "Initializing PID timer")
	debug.Info("PID loop using timer hardware id: %d", cfg.PID.TimerID)
	tick, err := timer.NewHardware(cfg.PID.TimerID)
	if err != nil {
		log.Fatalf("init timer failed: %v", err)
	}

	clk := clock.NewReal()
	plat := platform.New(azServo, elServo, sensor, tick, clk, platform.Config{
		Loop: control.Config{
			Period:         cfg.TickPeriod(),
			Gains:          pid.Gains{Kp: cfg.PID.Kp, Ki: cfg.PID.Ki, Kd: cfg.PID.Kd},
			OutputLimits:   pid.Limits{Min: cfg.PID.OutputMin, Max: cfg.PID.OutputMax},
			FaultThreshold: cfg.PID.FaultThreshold,
		},
		Sensor: calibrate.SensorParams{
			PollInterval:  cfg.CalibrationPoll(),
			StallInterval: cfg.CalibrationStall(),
			MaxDuration:   cfg.CalibrationMaxDuration(),
		},
	})

	// Telemetry (no-op when no MQTT host is configured)
	pub, err := telemetry.New(cfg.Telemetry, "pointgo")
	if err != nil {
		log.Fatalf("init telemetry failed: %v", err)
	}
	if err := pub.Connect(); err != nil {
		log.Fatalf("telemetry connect failed: %v", err)
	}
	defer pub.Close()

	// Calibration sequence
	if *runCalibration {
		if err := runCalibrationSequence(ctx, cfg, plat, pub); err != nil {
			log.Fatalf("calibration failed: %v", err)
		}
	}
	if *runCalibration || *runOrient {
		debug.Step(5, "Orientation probe")
		arcs, err := plat.Orient(ctx)
		if err != nil {
			log.Fatalf("orientation probe failed: %v", err)
		}
		debug.Value("Deadzones", arcs)
		pub.PublishEvent("orient", fmt.Sprintf("deadzones: %v", arcs))
	}

	// Start the control loop
	debug.Step(6, "Starting control loop")
	if err := plat.Start(); err != nil {
		log.Fatalf("start control loop failed: %v", err)
	}
	defer plat.Stop()
	setStatusLed(gpioDriver, cfg, gpio.High)
	defer setStatusLed(gpioDriver, cfg, gpio.Low)

	// Initial targets
	if *targetEl > -1000 {
		plat.SetElevation(*targetEl)
	}
	if *targetAz >= 0 {
		if err := plat.SetAzimuth(*targetAz); err != nil {
			debug.Error(fmt.Errorf("initial azimuth target: %w", err))
		}
	}

	// Periodic orientation telemetry
	go publishLoop(ctx, cfg, plat, pub)

	// Web dashboard (read-only)
	if port := webPort.port(); port > 0 {
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		srv := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, statusFunc(plat))
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("web server: %v", err)
			}
		}()
	}

	// Block until shutdown or a loop fault.
	select {
	case <-ctx.Done():
		debug.Info("shutting down")
	case err := <-plat.Faults():
		pub.PublishEvent("fault", err.Error())
		log.Fatalf("control loop fault: %v", err)
	}
}

// runCalibrationSequence runs the three sensor calibrations and both
// servo range discoveries, in an order that keeps the platform still
// for the gyroscope first.
func runCalibrationSequence(ctx context.Context, cfg *config.Config, plat *platform.Platform, pub *telemetry.Publisher) error {
	debug.Step(4, "Calibration sequence")
	debug.Summary("Calibration")

	steps := []struct {
		name string
		run  func() error
	}{
		{"gyroscope", func() error { return plat.CalibrateGyroscope(ctx) }},
		{"accelerometer", func() error { return plat.CalibrateAccelerometer(ctx) }},
		{"magnetometer", func() error { return plat.CalibrateMagnetometer(ctx) }},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		pub.PublishEvent("calibration", s.name+" done")
	}

	params := calibrate.RangeParams{
		Step:            cfg.Calibration.RangeStep,
		MotionThreshold: cfg.Calibration.MotionThresholdDeg,
		Settle:          cfg.RangeSettle(),
		PreSettle:       cfg.RangePreSettle(),
	}
	elBounds, err := plat.CalibrateElevationServo(ctx, params)
	if err != nil {
		return fmt.Errorf("elevation servo: %w", err)
	}
	pub.PublishEvent("calibration", fmt.Sprintf("elevation travel %+v", elBounds))
	azBounds, err := plat.CalibrateAzimuthServo(ctx, params)
	if err != nil {
		return fmt.Errorf("azimuth servo: %w", err)
	}
	pub.PublishEvent("calibration", fmt.Sprintf("azimuth travel %+v", azBounds))
	return nil
}

// publishLoop reports the pose over MQTT at the configured interval.
func publishLoop(ctx context.Context, cfg *config.Config, plat *platform.Platform, pub *telemetry.Publisher) {
	if cfg.Telemetry.Host == "" {
		return
	}
	tick := clock.NewReal()
	for {
		if err := tick.Sleep(ctx, cfg.TelemetryInterval()); err != nil {
			return
		}
		az, errAz := plat.GetAzimuth()
		el, errEl := plat.GetElevation()
		if errAz != nil || errEl != nil {
			continue
		}
		pub.PublishOrientation(telemetry.Orientation{
			Azimuth:         az,
			Elevation:       el,
			AzimuthTarget:   plat.Store().Azimuth(),
			ElevationTarget: plat.Store().Elevation(),
			Tracking:        plat.Running(),
		})
	}
}

// statusFunc adapts the platform for the web dashboard.
func statusFunc(plat *platform.Platform) web.StatusFunc {
	return func() web.Status {
		az, _ := plat.GetAzimuth()
		el, _ := plat.GetElevation()
		st := web.Status{
			Azimuth:         az,
			Elevation:       el,
			AzimuthTarget:   plat.Store().Azimuth(),
			ElevationTarget: plat.Store().Elevation(),
			Tracking:        plat.Running(),
			Oriented:        plat.Store().Oriented(),
			DroppedTicks:    plat.DroppedTicks(),
		}
		for _, arc := range plat.Store().Deadzones() {
			st.Deadzones = append(st.Deadzones, [2]float64{arc.Min, arc.Max})
		}
		return st
	}
}

func setStatusLed(g gpio.Driver, cfg *config.Config, level gpio.Level) {
	if cfg.Defaults.StatusLedPin <= 0 {
		return
	}
	if err := g.WritePin(cfg.Defaults.StatusLedPin, level); err != nil {
		debug.Error(fmt.Errorf("status led: %w", err))
	}
}

// newHardware builds the two servo axes and the IMU, real or mock
// depending on configuration.
func newHardware(cfg *config.Config, g gpio.Driver) (servo.Axis, servo.Axis, imu.Sensor, error) {
	if cfg.Defaults.MockHardware {
		return newMockHardware(cfg)
	}

	// Register the host's I2C buses with periph; tolerated to fail on
	// non-Linux dev machines, i2creg.Open reports the real problem.
	if _, err := driverreg.Init(); err != nil {
		debug.Verbose("periph driverreg init: %v", err)
	}

	buses := map[string]i2c.Bus{}
	openBus := func(name string) (i2c.Bus, error) {
		if b, ok := buses[name]; ok {
			return b, nil
		}
		b, err := i2creg.Open(name)
		if err != nil {
			return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
		}
		buses[name] = b
		return b, nil
	}

	pwmBus, err := openBus(cfg.PWM.I2CBus)
	if err != nil {
		return nil, nil, nil, err
	}
	azServo, err := servo.NewPCA9685(pwmBus, cfg.PWM.Address, cfg.AzimuthServo.Channel, "azimuth",
		cfg.AzimuthServo.MinPosition, cfg.AzimuthServo.MaxPosition)
	if err != nil {
		return nil, nil, nil, err
	}
	elServo, err := servo.NewPCA9685(pwmBus, cfg.PWM.Address, cfg.ElevationServo.Channel, "elevation",
		cfg.ElevationServo.MinPosition, cfg.ElevationServo.MaxPosition)
	if err != nil {
		return nil, nil, nil, err
	}

	imuBus, err := openBus(cfg.IMU.I2CBus)
	if err != nil {
		return nil, nil, nil, err
	}
	sensor, err := imu.NewBNO055(imuBus, cfg.IMU.Address, cfg.IMU.ProfilePath, g, cfg.IMU.ResetPin)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := sensor.RestoreCalibration(); err != nil {
		// A corrupt profile should not keep the platform down.
		debug.Error(err)
	}

	return azServo, elServo, sensor, nil
}

// newMockHardware couples mock servos to a mock IMU so the simulated
// platform actually responds to commands (calibration converges, the
// loop settles) during development on PC.
func newMockHardware(cfg *config.Config) (servo.Axis, servo.Axis, imu.Sensor, error) {
	azServo := servo.NewMock("azimuth", cfg.AzimuthServo.MinPosition, cfg.AzimuthServo.MaxPosition)
	elServo := servo.NewMock("elevation", cfg.ElevationServo.MinPosition, cfg.ElevationServo.MaxPosition)
	sensor := imu.NewMock()
	sensor.PollsToConverge = 5

	sync := func(int) {
		azSpan := float64(servo.NominalMax - servo.NominalMin)
		elSpan := float64(servo.NominalMax - servo.NominalMin)
		az := float64(azServo.Position()) / azSpan * 360
		el := float64(elServo.Position())/elSpan*180 - 90
		sensor.SetOrientation(az, el)
	}
	azServo.OnCommand = sync
	elServo.OnCommand = sync
	sync(0)

	return azServo, elServo, sensor, nil
}

// webPortFlag implements flag.Value for -web:
// 0 = disabled, -web= → default port, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
