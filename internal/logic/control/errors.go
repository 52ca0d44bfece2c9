package control

import "errors"

var (
	// ErrNotOriented is returned for azimuth commands issued before the
	// orientation probe has established the deadzone arcs.
	ErrNotOriented = errors.New("platform not oriented: azimuth deadzones unknown")

	// ErrDeadzone is returned for azimuth targets strictly inside a
	// deadzone arc the platform cannot reach.
	ErrDeadzone = errors.New("azimuth target inside deadzone")

	// ErrSensorUnavailable is surfaced on the loop's fault channel after
	// repeated consecutive sensor read failures force an automatic stop.
	ErrSensorUnavailable = errors.New("orientation sensor unavailable")
)
