package protocol

import (
	"fmt"

	"github.com/teslashibe/go-arnav/pkg/frame"
	"github.com/teslashibe/go-arnav/pkg/geom"
	"github.com/teslashibe/go-arnav/pkg/navigation"
	"github.com/teslashibe/go-arnav/pkg/pdr"
	"github.com/teslashibe/go-arnav/pkg/sampler"
)

// =============================================================================
// Conversions
// =============================================================================

// FromPoint converts a map point to its wire form.
func FromPoint(p geom.Point) Point {
	return Point{X: p.X(), Y: p.Y()}
}

// Geom converts a wire point to a map point.
func (p Point) Geom() geom.Point {
	return geom.Pt(p.X, p.Y)
}

// FromVector converts a world position to its wire form.
func FromVector(v geom.Vector3) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// Vector converts a wire position to a world position.
func (v Vec3) Vector() geom.Vector3 {
	return geom.Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// Observation converts marker data to the engine's input.
func (d *MarkerData) Observation() navigation.MarkerObserved {
	m := navigation.MarkerObserved{
		MarkerID: d.MarkerID,
		WorldPose: navigation.Pose{
			Position: d.WorldPose.Position.Vector(),
			Rotation: d.WorldPose.Rotation,
		},
		CompassHeadingDegrees: d.CompassHeading,
	}
	if d.MapPosition != nil {
		p := d.MapPosition.Geom()
		m.MapPosition = &p
	}
	return m
}

// Sample converts motion data to a tracker sample.
func (d *MotionData) Sample() pdr.MotionSample {
	return pdr.MotionSample{AccelerationMagnitude: d.AccelerationMagnitude, TimestampMs: d.TimestampMs}
}

// Sample converts orientation data to a tracker sample.
func (d *OrientationData) Sample() pdr.OrientationSample {
	return pdr.OrientationSample{HeadingDegrees: d.HeadingDegrees}
}

// FromWaypoints converts sampled waypoints to their wire form.
func FromWaypoints(wps []sampler.Waypoint) []WaypointData {
	out := make([]WaypointData, len(wps))
	for i, w := range wps {
		out[i] = WaypointData{
			Index:             w.Index,
			Map:               FromPoint(w.MapPosition),
			World:             FromVector(w.WorldPosition),
			DistanceAlongPath: w.DistanceAlongPath,
			HeadingDegrees:    w.HeadingDegrees,
		}
	}
	return out
}

// FromCalibration converts a calibration to its wire form.
func FromCalibration(c frame.Calibration) CalibrationData {
	return CalibrationData{
		MarkerID:              c.MarkerID,
		OriginMap:             FromPoint(c.OriginMap),
		OriginWorld:           FromVector(c.OriginWorld),
		RotationOffsetDegrees: c.RotationOffsetDegrees,
		MapUnitsToMeters:      c.MapUnitsToMeters,
		Valid:                 c.Valid,
	}
}

// FromPosition converts a position estimate to its wire form.
func FromPosition(p navigation.Position) PositionData {
	d := PositionData{
		Map:            FromPoint(p.Map),
		HeadingDegrees: p.HeadingDegrees,
		StepCount:      p.StepCount,
	}
	if p.World != nil {
		w := FromVector(*p.World)
		d.World = &w
	}
	return d
}

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewMarkerMessage creates a marker scan message
func NewMarkerMessage(markerID string, world Vec3, rotation *float64) (*Message, error) {
	return NewMessage(TypeMarker, MarkerData{
		MarkerID:  markerID,
		WorldPose: Pose{Position: world, Rotation: rotation},
	})
}

// NewMotionMessage creates an accelerometer sample message
func NewMotionMessage(magnitude float64, timestampMs int64) (*Message, error) {
	return NewMessage(TypeMotion, MotionData{AccelerationMagnitude: magnitude, TimestampMs: timestampMs})
}

// NewOrientationMessage creates a compass sample message
func NewOrientationMessage(heading float64) (*Message, error) {
	return NewMessage(TypeOrientation, OrientationData{HeadingDegrees: heading})
}

// NewNavigateMessage creates a destination request
func NewNavigateMessage(destination string) (*Message, error) {
	return NewMessage(TypeNavigate, NavigateData{Destination: destination})
}

// NewCancelMessage creates a cancel request
func NewCancelMessage() (*Message, error) {
	return NewMessage(TypeCancel, nil)
}

// NewSensorStatusMessage creates a sensor availability message
func NewSensorStatusMessage(available bool, reason string) (*Message, error) {
	return NewMessage(TypeSensorStatus, SensorStatusData{Available: available, Reason: reason})
}

// NewErrorMessage creates an error message for a rejected request
func NewErrorMessage(req MessageType, err error) (*Message, error) {
	return NewFailure(req, err).Message()
}

// NewPingMessage creates a ping message
func NewPingMessage(id string, ts int64) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: ts,
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// EventMessage encodes an engine event for the device.
func EventMessage(ev navigation.Event) (*Message, error) {
	switch ev.Kind {
	case navigation.EventStateChanged:
		return NewMessage(TypeState, StateData{
			State:       ev.State.String(),
			Previous:    ev.Previous.String(),
			Generation:  ev.Generation,
			Destination: ev.Destination,
		})
	case navigation.EventCalibrationChanged:
		if ev.Calibration == nil {
			return nil, fmt.Errorf("protocol: %s event without calibration", ev.Kind)
		}
		return NewMessage(TypeCalibration, FromCalibration(*ev.Calibration))
	case navigation.EventPathComputed:
		if ev.Route == nil {
			return nil, fmt.Errorf("protocol: %s event without route", ev.Kind)
		}
		return NewMessage(TypePath, PathData{
			Generation:     ev.Route.Generation,
			Destination:    ev.Route.Destination,
			Nodes:          ev.Route.Path.Nodes,
			DistanceMeters: ev.Route.DistanceMeters,
		})
	case navigation.EventWaypoints:
		if ev.Route == nil {
			return nil, fmt.Errorf("protocol: %s event without route", ev.Kind)
		}
		return NewMessage(TypeWaypoints, WaypointsData{
			Generation: ev.Route.Generation,
			Waypoints:  FromWaypoints(ev.Route.Waypoints),
		})
	case navigation.EventPathNotFound:
		msg := ""
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		return NewMessage(TypePathNotFound, PathNotFoundData{
			Generation:  ev.Generation,
			Destination: ev.Destination,
			Code:        FailureCode(ev.Err),
			Message:     msg,
		})
	case navigation.EventWaypointReached:
		return NewMessage(TypeWaypointReached, WaypointReachedData{Generation: ev.Generation, Index: ev.Index})
	case navigation.EventDestinationReached:
		return NewMessage(TypeDestinationReached, DestinationReachedData{
			Generation:  ev.Generation,
			Destination: ev.Destination,
		})
	case navigation.EventPositionUpdated:
		if ev.Position == nil {
			return nil, fmt.Errorf("protocol: %s event without position", ev.Kind)
		}
		return NewMessage(TypePosition, FromPosition(*ev.Position))
	case navigation.EventSensorStatus:
		return NewSensorStatusMessage(ev.SensorAvailable, ev.SensorReason)
	default:
		return nil, fmt.Errorf("protocol: unknown event kind %q", ev.Kind)
	}
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetMarkerData extracts marker data from a message
func (m *Message) GetMarkerData() (*MarkerData, error) {
	var data MarkerData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	if data.MarkerID == "" {
		return nil, fmt.Errorf("%w: marker_id is required", ErrBadRequest)
	}
	return &data, nil
}

// GetMotionData extracts motion data from a message
func (m *Message) GetMotionData() (*MotionData, error) {
	var data MotionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetOrientationData extracts orientation data from a message
func (m *Message) GetOrientationData() (*OrientationData, error) {
	var data OrientationData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetNavigateData extracts a destination request from a message
func (m *Message) GetNavigateData() (*NavigateData, error) {
	var data NavigateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	if data.Destination == "" {
		return nil, fmt.Errorf("%w: destination is required", ErrBadRequest)
	}
	return &data, nil
}

// GetSensorStatusData extracts sensor status from a message
func (m *Message) GetSensorStatusData() (*SensorStatusData, error) {
	var data SensorStatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStateData extracts state data from a message
func (m *Message) GetStateData() (*StateData, error) {
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPathData extracts a computed route from a message
func (m *Message) GetPathData() (*PathData, error) {
	var data PathData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetWaypointsData extracts waypoints from a message
func (m *Message) GetWaypointsData() (*WaypointsData, error) {
	var data WaypointsData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts an error from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
