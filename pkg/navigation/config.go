package navigation

import (
	"github.com/teslashibe/go-arnav/pkg/frame"
	"github.com/teslashibe/go-arnav/pkg/geom"
	"github.com/teslashibe/go-arnav/pkg/pdr"
)

// Config holds the engine parameters.
type Config struct {
	// Route shape
	SpacingMeters    float64 // Distance between waypoints
	MapUnitsToMeters float64 // Floor-plan scale

	// Arrival
	WaypointRadiusMeters float64 // A waypoint counts as reached inside this radius
	ArrivalRadiusMeters  float64 // The destination counts as reached inside this radius

	// Calibration
	RotationOffsetDegrees float64      // Used when a marker pose carries no rotation
	Recalibrate           frame.Policy // What a re-scan does to a calibrated frame
	North                 *geom.Point  // Plan's north reference, if it has one

	// Dead reckoning
	PDR pdr.Config

	// Marker id -> node id
	Markers map[string]string
}

// DefaultConfig returns the configuration for a plan drawn at 1 unit = 1 cm
// with one arrow per meter.
func DefaultConfig() Config {
	return Config{
		SpacingMeters:    1.0,
		MapUnitsToMeters: frame.DefaultMapUnitsToMeters,

		WaypointRadiusMeters: 1.5,
		ArrivalRadiusMeters:  1.5,

		RotationOffsetDegrees: 0,
		Recalibrate:           frame.PolicyReanchor,

		PDR: pdr.DefaultConfig(),
	}
}

// withDefaults fills zero values from DefaultConfig and keeps the PDR scale
// in step with the route scale.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if !(c.SpacingMeters > 0) {
		c.SpacingMeters = def.SpacingMeters
	}
	if !(c.MapUnitsToMeters > 0) {
		c.MapUnitsToMeters = def.MapUnitsToMeters
	}
	if c.WaypointRadiusMeters <= 0 {
		c.WaypointRadiusMeters = def.WaypointRadiusMeters
	}
	if c.ArrivalRadiusMeters <= 0 {
		c.ArrivalRadiusMeters = def.ArrivalRadiusMeters
	}
	if c.PDR == (pdr.Config{}) {
		c.PDR = def.PDR
	}
	c.PDR.MapUnitsToMeters = c.MapUnitsToMeters
	return c
}
