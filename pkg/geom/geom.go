// Package geom holds the shared geometry vocabulary of the navigation engine:
// 2D floor-plan points, 3D world vectors, angle helpers and the fixed cubic
// Bézier discretization used both for edge weights and for resampling.
package geom

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Point is a floor-plan (map space) position in map units.
type Point = orb.Point

// Vector3 is an AR world-space position in meters.
type Vector3 = r3.Vector

// BezierSteps is the number of uniform parameter steps used to discretize a
// cubic Bézier edge. Edge weights and resampled waypoints must both use it.
const BezierSteps = 20

// Pt is shorthand for building a Point.
func Pt(x, y float64) Point {
	return Point{x, y}
}

// Distance returns the Euclidean distance between two map points.
func Distance(a, b Point) float64 {
	return planar.Distance(a, b)
}

// Lerp interpolates between a and b; f=0 yields a, f=1 yields b.
func Lerp(a, b Point, f float64) Point {
	return Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f}
}

// Advance moves from a towards b by exactly dist map units.
// The direction is normalised first so axis-aligned moves stay exact.
func Advance(a, b Point, dist float64) Point {
	dx, dy := b[0]-a[0], b[1]-a[1]
	n := math.Hypot(dx, dy)
	if n == 0 {
		return a
	}
	return Point{a[0] + dx/n*dist, a[1] + dy/n*dist}
}

// CubicBezier evaluates the cubic Bézier p0→p3 with controls c1, c2 at t.
func CubicBezier(p0, c1, c2, p3 Point, t float64) Point {
	u := 1 - t
	b0 := u * u * u
	b1 := 3 * u * u * t
	b2 := 3 * u * t * t
	b3 := t * t * t
	return Point{
		b0*p0[0] + b1*c1[0] + b2*c2[0] + b3*p3[0],
		b0*p0[1] + b1*c1[1] + b2*c2[1] + b3*p3[1],
	}
}

// BezierPolyline discretizes a cubic Bézier into BezierSteps chords using
// t = i/BezierSteps. The endpoints are p0 and p3 exactly.
func BezierPolyline(p0, c1, c2, p3 Point) orb.LineString {
	ls := make(orb.LineString, BezierSteps+1)
	ls[0] = p0
	for i := 1; i < BezierSteps; i++ {
		ls[i] = CubicBezier(p0, c1, c2, p3, float64(i)/float64(BezierSteps))
	}
	ls[BezierSteps] = p3
	return ls
}

// Length returns the summed chord length of a polyline.
func Length(ls orb.LineString) float64 {
	return planar.Length(ls)
}

// Finite reports whether both coordinates are finite numbers.
func Finite(p Point) bool {
	return !math.IsNaN(p[0]) && !math.IsInf(p[0], 0) && !math.IsNaN(p[1]) && !math.IsInf(p[1], 0)
}
