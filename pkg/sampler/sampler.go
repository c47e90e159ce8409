// Package sampler turns a planned node path into evenly spaced waypoints.
//
// Spacing is measured along the same polyline the graph uses for edge
// weights, so a route planned as 20 m long yields waypoints at 1 m, 2 m and
// so on up to 19 m at 1 m spacing, regardless of how many edges or curves it
// crosses.
package sampler

import (
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-arnav/pkg/geom"
	"github.com/teslashibe/go-arnav/pkg/graph"
)

// ErrInvalidSpacing is returned for a non-positive spacing or scale, or a
// spacing so small the route would exceed MaxWaypoints.
var ErrInvalidSpacing = errors.New("sampler: invalid spacing or scale")

// MaxWaypoints bounds the number of waypoints one route may produce.
const MaxWaypoints = 100_000

const (
	// tangentDelta is the curve-parameter step used to estimate Bézier headings.
	tangentDelta = 1e-3

	// lengthEpsilon is the relative tolerance for the end of the route.
	lengthEpsilon = 1e-9
)

// Waypoint is one sample along a route. Values are never mutated after
// Resample or Project returns them.
type Waypoint struct {
	Index             int          `json:"index"`
	MapPosition       geom.Point   `json:"map_position"`
	WorldPosition     geom.Vector3 `json:"world_position"`
	DistanceAlongPath float64      `json:"distance_along_path"` // meters from the start
	HeadingDegrees    float64      `json:"heading_degrees"`     // map frame, 0 = +x, counter-clockwise
	EdgeID            string       `json:"edge_id"`
}

// CompassBearing returns the heading as a compass bearing (0 = map north,
// clockwise).
func (w Waypoint) CompassBearing() float64 {
	return geom.HeadingToBearing(w.HeadingDegrees)
}

// Resample places a waypoint at every multiple of spacingMeters along path,
// strictly before the destination. The start node never gets a waypoint;
// an interior node gets one when it falls on a spacing multiple. Edges
// shorter than the spacing still advance the distance, so the remainder
// carries across every seam.
func Resample(path graph.Path, g *graph.Graph, spacingMeters, mapUnitsToMeters float64) ([]Waypoint, error) {
	if !(spacingMeters > 0) || !(mapUnitsToMeters > 0) {
		return nil, fmt.Errorf("%w: spacing=%v scale=%v", ErrInvalidSpacing, spacingMeters, mapUnitsToMeters)
	}
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", graph.ErrNodeNotFound)
	}
	segs, err := g.Segments(path)
	if err != nil {
		return nil, err
	}

	total := 0.0
	for _, seg := range segs {
		total += seg.Length() * mapUnitsToMeters
	}
	if n := total / spacingMeters; n > MaxWaypoints {
		return nil, fmt.Errorf("%w: spacing %v m over %.1f m exceeds %d waypoints",
			ErrInvalidSpacing, spacingMeters, total, MaxWaypoints)
	}
	// Waypoints stop short of the destination even when chord sums drift
	// below an exact multiple of the spacing.
	end := total - lengthEpsilon*math.Max(total, 1)

	out := make([]Waypoint, 0, int(total/spacingMeters))
	travelled := 0.0 // meters walked up to the current chord
	k := 1           // index of the next spacing multiple

	for _, seg := range segs {
		pts := seg.Polyline()
		chords := len(pts) - 1
		heading := geom.HeadingDegrees(seg.From, seg.To)

		for i := 0; i < chords; i++ {
			a, b := pts[i], pts[i+1]
			chordMap := geom.Distance(a, b)
			chord := chordMap * mapUnitsToMeters

			for {
				target := float64(k) * spacingMeters
				if target >= end {
					return out, nil
				}
				offset := target - travelled
				if offset >= chord {
					break
				}
				if offset < 0 {
					offset = 0
				}

				wp := Waypoint{
					Index:             len(out),
					MapPosition:       geom.Advance(a, b, offset/mapUnitsToMeters),
					DistanceAlongPath: target,
					HeadingDegrees:    heading,
					EdgeID:            seg.EdgeID,
				}
				if seg.Curved {
					t := (float64(i) + offset/chord) / float64(chords)
					wp.HeadingDegrees = curveHeading(seg, t)
				}
				out = append(out, wp)
				k++
			}
			travelled += chord
		}
	}
	return out, nil
}

// curveHeading estimates the tangent direction of a Bézier segment at t
// with a forward difference, or a backward one at the end of the curve.
func curveHeading(seg graph.Segment, t float64) float64 {
	if t+tangentDelta <= 1 {
		return geom.HeadingDegrees(seg.At(t), seg.At(t+tangentDelta))
	}
	return geom.HeadingDegrees(seg.At(t-tangentDelta), seg.At(t))
}

// Project returns a copy of wps with WorldPosition filled in by toWorld.
// The input slice is left untouched.
func Project(wps []Waypoint, toWorld func(geom.Point) (geom.Vector3, error)) ([]Waypoint, error) {
	out := make([]Waypoint, len(wps))
	for i, wp := range wps {
		world, err := toWorld(wp.MapPosition)
		if err != nil {
			return nil, fmt.Errorf("sampler: project waypoint %d: %w", i, err)
		}
		wp.WorldPosition = world
		out[i] = wp
	}
	return out, nil
}

// Length returns the route length of path in meters.
func Length(path graph.Path, mapUnitsToMeters float64) float64 {
	return path.Distance * mapUnitsToMeters
}
