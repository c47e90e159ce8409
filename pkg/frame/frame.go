// Package frame maps floor-plan coordinates into the AR world frame.
//
// A Frame is established by a marker scan: the scanned node's map position
// becomes the origin, the marker's world pose becomes the world origin, and
// a rotation offset aligns the plan with the device heading. Map +x maps to
// world +X and map +y maps to world -Z (forward); height stays at the
// marker's height.
package frame

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-arnav/pkg/geom"
)

// DefaultMapUnitsToMeters is the scale used when a deployment does not
// configure one.
const DefaultMapUnitsToMeters = 0.01

// Sentinel errors.
var (
	// ErrUncalibrated is returned by transforms before the first marker scan.
	ErrUncalibrated = errors.New("frame: uncalibrated")

	// ErrInvalidScale is returned for a scale that is not a positive number.
	ErrInvalidScale = errors.New("frame: invalid map scale")
)

// Calibration is a snapshot of the map-to-world transform.
type Calibration struct {
	OriginMap             geom.Point   `json:"origin_map"`
	OriginWorld           geom.Vector3 `json:"origin_world"`
	RotationOffsetDegrees float64      `json:"rotation_offset_degrees"`
	MapUnitsToMeters      float64      `json:"map_units_to_meters"`
	Valid                 bool         `json:"valid"`
	MarkerID              string       `json:"marker_id,omitempty"`
	CalibratedAt          time.Time    `json:"calibrated_at,omitempty"`
}

// ToWorld applies the calibration to a map point.
func (c Calibration) ToWorld(p geom.Point) (geom.Vector3, error) {
	if !c.Valid {
		return geom.Vector3{}, ErrUncalibrated
	}
	dx := (p[0] - c.OriginMap[0]) * c.MapUnitsToMeters
	dy := (p[1] - c.OriginMap[1]) * c.MapUnitsToMeters
	rx, rz := geom.Rotate(dx, dy, c.RotationOffsetDegrees)
	return geom.Vector3{
		X: c.OriginWorld.X + rx,
		Y: c.OriginWorld.Y,
		Z: c.OriginWorld.Z - rz,
	}, nil
}

// ToMap is the inverse of ToWorld. The world height is ignored.
func (c Calibration) ToMap(w geom.Vector3) (geom.Point, error) {
	if !c.Valid {
		return geom.Point{}, ErrUncalibrated
	}
	rx := w.X - c.OriginWorld.X
	rz := c.OriginWorld.Z - w.Z
	dx, dy := geom.Rotate(rx, rz, -c.RotationOffsetDegrees)
	return geom.Point{
		c.OriginMap[0] + dx/c.MapUnitsToMeters,
		c.OriginMap[1] + dy/c.MapUnitsToMeters,
	}, nil
}

// Frame owns the current calibration. It is safe for concurrent use; only
// Calibrate and Reset mutate it.
type Frame struct {
	mu     sync.RWMutex
	cal    Calibration
	policy Policy
	now    func() time.Time
}

// New creates an uncalibrated frame. A non-positive scale falls back to
// DefaultMapUnitsToMeters.
func New(mapUnitsToMeters float64, policy Policy) *Frame {
	if !(mapUnitsToMeters > 0) || math.IsInf(mapUnitsToMeters, 0) {
		mapUnitsToMeters = DefaultMapUnitsToMeters
	}
	return &Frame{
		cal:    Calibration{MapUnitsToMeters: mapUnitsToMeters},
		policy: policy,
		now:    time.Now,
	}
}

// Calibrate anchors the frame at a scanned marker. Under PolicyFirstScanWins
// a calibrated frame ignores further scans; changed reports whether the
// transform was replaced.
func (f *Frame) Calibrate(markerID string, markerMap geom.Point, markerWorld geom.Vector3, rotationOffsetDegrees float64) (cal Calibration, changed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cal.Valid && f.policy == PolicyFirstScanWins {
		return f.cal, false
	}
	f.cal = Calibration{
		OriginMap:             markerMap,
		OriginWorld:           markerWorld,
		RotationOffsetDegrees: rotationOffsetDegrees,
		MapUnitsToMeters:      f.cal.MapUnitsToMeters,
		Valid:                 true,
		MarkerID:              markerID,
		CalibratedAt:          f.now(),
	}
	return f.cal, true
}

// ToWorld maps a floor-plan point into world space.
func (f *Frame) ToWorld(p geom.Point) (geom.Vector3, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cal.ToWorld(p)
}

// ToMap maps a world position back onto the floor plan.
func (f *Frame) ToMap(w geom.Vector3) (geom.Point, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cal.ToMap(w)
}

// Snapshot returns a copy of the current calibration.
func (f *Frame) Snapshot() Calibration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cal
}

// Valid reports whether a marker has been scanned since creation or Reset.
func (f *Frame) Valid() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cal.Valid
}

// Scale returns the map-units-to-meters factor.
func (f *Frame) Scale() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cal.MapUnitsToMeters
}

// Policy returns the re-scan policy.
func (f *Frame) Policy() Policy {
	return f.policy
}

// Reset invalidates the frame, keeping its scale.
func (f *Frame) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cal = Calibration{MapUnitsToMeters: f.cal.MapUnitsToMeters}
}

// ScaleFromReference derives the map-units-to-meters factor from two map
// points a known real distance apart.
func ScaleFromReference(a, b geom.Point, meters float64) (float64, error) {
	d := geom.Distance(a, b)
	if !(d > 0) || !(meters > 0) || math.IsInf(meters, 0) {
		return 0, fmt.Errorf("%w: reference %v-%v over %v m", ErrInvalidScale, a, b, meters)
	}
	return meters / d, nil
}

// NorthOffset derives the rotation offset that turns the plan's north
// reference towards compass north, given the device's compass heading
// (degrees clockwise from north) when the AR session started facing world
// -Z.
func NorthOffset(originMap, northMap geom.Point, compassHeadingDegrees float64) float64 {
	alpha := geom.HeadingDegrees(originMap, northMap)
	return geom.NormalizeDegrees(90 + compassHeadingDegrees - alpha)
}
