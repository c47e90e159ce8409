// Package protocol defines the WebSocket messages exchanged between an AR
// device and the navigation server.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Device → Server messages
	TypeMarker       MessageType = "marker"        // Marker scanned
	TypeMotion       MessageType = "motion"        // Accelerometer sample
	TypeOrientation  MessageType = "orientation"   // Compass sample
	TypeNavigate     MessageType = "navigate"      // Destination request
	TypeCancel       MessageType = "cancel"        // Cancel navigation
	TypeSensorStatus MessageType = "sensor_status" // Motion sensors became (un)available

	// Server → Device messages
	TypeState              MessageType = "state"               // Navigation state changed
	TypeCalibration        MessageType = "calibration"         // Coordinate frame changed
	TypePath               MessageType = "path"                // Route computed
	TypePathNotFound       MessageType = "path_not_found"      // Route request failed
	TypeWaypoints          MessageType = "waypoints"           // World-space waypoints to render
	TypeWaypointReached    MessageType = "waypoint_reached"    // Walker passed a waypoint
	TypeDestinationReached MessageType = "destination_reached" // Walker arrived
	TypePosition           MessageType = "position"            // Dead-reckoning estimate
	TypeError              MessageType = "error"               // Request rejected

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Shared geometry
// =============================================================================

// Point is a floor-plan position in map units
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec3 is an AR world position in meters
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// =============================================================================
// Device → Server Message Types
// =============================================================================

// MarkerData reports a detected marker
type MarkerData struct {
	MarkerID       string   `json:"marker_id"`
	MapPosition    *Point   `json:"map_position,omitempty"` // Only needed for markers not bound to a node
	WorldPose      Pose     `json:"world_pose"`
	CompassHeading *float64 `json:"compass_heading,omitempty"` // Heading when the AR session started
}

// Pose is a marker pose in the AR world
type Pose struct {
	Position Vec3     `json:"position"`
	Rotation *float64 `json:"rotation,omitempty"` // Rotation offset in degrees
}

// MotionData is one accelerometer sample
type MotionData struct {
	AccelerationMagnitude float64 `json:"acceleration_magnitude"` // m/s²
	TimestampMs           int64   `json:"timestamp_ms"`
}

// OrientationData is one compass sample
type OrientationData struct {
	HeadingDegrees float64 `json:"heading_degrees"` // Clockwise from north
}

// NavigateData requests a route
type NavigateData struct {
	Destination string `json:"destination"`
}

// SensorStatusData reports motion sensor availability
type SensorStatusData struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"` // e.g. "permission denied"
}

// =============================================================================
// Server → Device Message Types
// =============================================================================

// StateData announces a navigation state
type StateData struct {
	State       string `json:"state"`
	Previous    string `json:"previous,omitempty"`
	Generation  uint64 `json:"generation"`
	Destination string `json:"destination,omitempty"`
}

// CalibrationData describes the coordinate frame
type CalibrationData struct {
	MarkerID              string  `json:"marker_id"`
	OriginMap             Point   `json:"origin_map"`
	OriginWorld           Vec3    `json:"origin_world"`
	RotationOffsetDegrees float64 `json:"rotation_offset_degrees"`
	MapUnitsToMeters      float64 `json:"map_units_to_meters"`
	Valid                 bool    `json:"valid"`
}

// PathData describes a computed route
type PathData struct {
	Generation     uint64   `json:"generation"`
	Destination    string   `json:"destination"`
	Nodes          []string `json:"nodes"`
	DistanceMeters float64  `json:"distance_meters"`
}

// PathNotFoundData reports a failed route request
type PathNotFoundData struct {
	Generation  uint64 `json:"generation"`
	Destination string `json:"destination"`
	Code        Code   `json:"code"`
	Message     string `json:"message"`
}

// WaypointData is one waypoint to render
type WaypointData struct {
	Index             int     `json:"index"`
	Map               Point   `json:"map"`
	World             Vec3    `json:"world"`
	DistanceAlongPath float64 `json:"distance_along_path"` // Meters
	HeadingDegrees    float64 `json:"heading_degrees"`     // Map frame, 0 = +x
}

// WaypointsData carries every waypoint of a route
type WaypointsData struct {
	Generation uint64         `json:"generation"`
	Waypoints  []WaypointData `json:"waypoints"`
}

// WaypointReachedData reports a passed waypoint
type WaypointReachedData struct {
	Generation uint64 `json:"generation"`
	Index      int    `json:"index"`
}

// DestinationReachedData reports arrival
type DestinationReachedData struct {
	Generation  uint64 `json:"generation"`
	Destination string `json:"destination"`
}

// PositionData is the dead-reckoning estimate
type PositionData struct {
	Map            Point   `json:"map"`
	World          *Vec3   `json:"world,omitempty"`
	HeadingDegrees float64 `json:"heading_degrees"`
	StepCount      int     `json:"step_count"`
}

// ErrorData reports a rejected request
type ErrorData struct {
	Code    Code        `json:"code"`
	Message string      `json:"message"`
	Request MessageType `json:"request,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
