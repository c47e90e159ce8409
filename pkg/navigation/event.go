package navigation

import (
	"time"

	"github.com/teslashibe/go-arnav/pkg/frame"
	"github.com/teslashibe/go-arnav/pkg/geom"
	"github.com/teslashibe/go-arnav/pkg/graph"
	"github.com/teslashibe/go-arnav/pkg/pdr"
	"github.com/teslashibe/go-arnav/pkg/sampler"
)

// EventKind identifies an engine event.
type EventKind string

const (
	EventStateChanged       EventKind = "state_changed"
	EventCalibrationChanged EventKind = "calibration_changed"
	EventPathComputed       EventKind = "path_computed"
	EventPathNotFound       EventKind = "path_not_found"
	EventWaypoints          EventKind = "waypoints"
	EventWaypointReached    EventKind = "waypoint_reached"
	EventDestinationReached EventKind = "destination_reached"
	EventPositionUpdated    EventKind = "position_updated"
	EventSensorStatus       EventKind = "sensor_status"
)

// Event is emitted by the engine after a handler finishes. Only the fields
// relevant to Kind are set.
type Event struct {
	Kind       EventKind
	Generation uint64
	At         time.Time

	State    State // state_changed: new state
	Previous State // state_changed: old state

	Calibration *frame.Calibration // calibration_changed
	Route       *Route             // path_computed, waypoints
	Destination string             // path_not_found, destination_reached
	Err         error              // path_not_found
	Index       int                // waypoint_reached
	Position    *Position          // position_updated

	SensorAvailable bool   // sensor_status
	SensorReason    string // sensor_status
}

// EventSink receives engine events. It is called without the engine lock
// held, in the order the events were produced by one handler.
type EventSink func(Event)

// MarkerObserved is a marker detection reported by the AR layer.
type MarkerObserved struct {
	MarkerID    string
	MapPosition *geom.Point // used when the marker is not bound to a node
	WorldPose   Pose

	// Compass heading of the device when its AR session started, used with
	// Config.North to derive the rotation offset when the pose carries none.
	CompassHeadingDegrees *float64
}

// Pose is the marker's pose in the AR world.
type Pose struct {
	Position geom.Vector3
	Rotation *float64 // rotation offset in degrees; config default when nil
}

// Route is a published navigation route. It is never mutated once stored.
type Route struct {
	Generation     uint64             `json:"generation"`
	Destination    string             `json:"destination"`
	Path           graph.Path         `json:"path"`
	DistanceMeters float64            `json:"distance_meters"`
	Waypoints      []sampler.Waypoint `json:"waypoints"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Position is the walker's estimated position.
type Position struct {
	Map            geom.Point    `json:"map"`
	World          *geom.Vector3 `json:"world,omitempty"`
	HeadingDegrees float64       `json:"heading_degrees"`
	StepCount      int           `json:"step_count"`
}

// Snapshot is a JSON-friendly view of an engine.
type Snapshot struct {
	State       State             `json:"state"`
	Generation  uint64            `json:"generation"`
	Destination string            `json:"destination,omitempty"`
	NextIndex   int               `json:"next_waypoint"`
	Route       *Route            `json:"route,omitempty"`
	Calibration frame.Calibration `json:"calibration"`
	Tracker     pdr.State         `json:"tracker"`
}
