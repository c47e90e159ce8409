package geom

import "math"

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// NormalizeDegrees wraps an angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

// HeadingDegrees is the map-frame direction from a to b, measured
// counter-clockwise from +x (east), in [0, 360).
func HeadingDegrees(a, b Point) float64 {
	return NormalizeDegrees(Degrees(math.Atan2(b[1]-a[1], b[0]-a[0])))
}

// HeadingToBearing converts a map-frame heading (0 = east, counter-clockwise)
// into a compass-style bearing (0 = north, clockwise).
func HeadingToBearing(heading float64) float64 {
	return NormalizeDegrees(90 - heading)
}

// Rotate rotates (x, y) counter-clockwise by deg degrees.
func Rotate(x, y, deg float64) (float64, float64) {
	s, c := math.Sincos(Radians(deg))
	return x*c - y*s, x*s + y*c
}
