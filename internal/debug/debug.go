package debug

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (calibration results, loop start/stop)
	LevelLive    = 2 // Live info (setpoint changes, calibration progress)
	LevelVerbose = 3 // Verbose (sweep steps, PID corrections)
	LevelTrace   = 4 // Trace (I2C, GPIO, per-tick detail)
)

var (
	level  int
	logger *log.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (calibration results, discovered bounds, deadzones)
// 2 = live info (setpoint commands, confidence changes)
// 3 = verbose (sweep deltas, corrections, raster positions)
// 4 = trace (bus transactions, GPIO, timer ticks)
func Init(debugLevel int) {
	level = debugLevel
	if level > LevelOff {
		logger = log.New(os.Stdout, "[PointGo] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// SetOutput redirects debug output, e.g. to mirror it to the web status stream.
func SetOutput(w io.Writer) {
	if logger != nil {
		logger.SetOutput(w)
	}
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] "+format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if level >= LevelOff && logger != nil {
		logger.Printf("═══════════════════════════════════════")
		logger.Printf("  %s", title)
		logger.Printf("═══════════════════════════════════════")
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO]   %s = %v", name, value)
	}
}

// Bounds prints discovered actuator bounds (level 1).
func Bounds(axis string, min, max int) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] %s servo bounds: [%d, %d]", axis, min, max)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] "+format, args...)
	}
}

// Setpoint prints a setpoint command (level 2).
func Setpoint(axis string, deg float64) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Setpoint %s: %.2f°", axis, deg)
	}
}

// Confidence prints a calibration confidence change (level 2).
func Confidence(sensor string, lvl int) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] %s confidence level: %d", sensor, lvl)
	}
}

// --- Level 3 functions (Verbose) ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] "+format, args...)
	}
}

// Printf is an alias for Verbose.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Printf("  %s", name)
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] Step %d: %s", num, description)
	}
}

// Sweep prints a range-calibration sweep sample (level 3).
func Sweep(pos int, delta float64) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] sweep %d: delta %.3f°", pos, delta)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[TRACE] "+format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[GPIO] %s pin=%d value=%v", operation, pin, value)
	}
}

// Bus prints an I2C register access (level 4).
func Bus(device string, reg byte, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[BUS] %s reg=0x%02x value=%v", device, reg, value)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[ERROR] %v", err)
	}
}

// Fmt is a helper that returns a formatted string only if debug
// is enabled (avoids useless allocations on hot paths).
func Fmt(format string, args ...interface{}) string {
	if level > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}
