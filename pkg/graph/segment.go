package graph

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/teslashibe/go-arnav/pkg/geom"
)

// Segment is an edge oriented in the direction of travel.
type Segment struct {
	EdgeID  string
	From    geom.Point
	To      geom.Point
	Control [2]geom.Point
	Curved  bool
}

// Segment returns the edge between two adjacent path nodes, oriented from
// fromID to toID. A reversed Bézier swaps its control points so the curve
// is traced backwards along the same shape.
func (g *Graph) Segment(fromID, toID string) (Segment, error) {
	from, ok := g.nodes[fromID]
	if !ok {
		return Segment{}, fmt.Errorf("%w: %q", ErrNodeNotFound, fromID)
	}
	to, ok := g.nodes[toID]
	if !ok {
		return Segment{}, fmt.Errorf("%w: %q", ErrNodeNotFound, toID)
	}
	e, ok := g.EdgeBetween(fromID, toID)
	if !ok {
		return Segment{}, fmt.Errorf("%w: no edge between %q and %q", ErrInvalidEdgeGeometry, fromID, toID)
	}

	s := Segment{EdgeID: e.ID, From: from.Pos, To: to.Pos, Curved: e.Curved()}
	if s.Curved {
		if e.From == fromID {
			s.Control = [2]geom.Point{e.Control[0], e.Control[1]}
		} else {
			s.Control = [2]geom.Point{e.Control[1], e.Control[0]}
		}
	}
	return s, nil
}

// At evaluates the segment at parameter t in [0, 1].
func (s Segment) At(t float64) geom.Point {
	if s.Curved {
		return geom.CubicBezier(s.From, s.Control[0], s.Control[1], s.To, t)
	}
	return geom.Lerp(s.From, s.To, t)
}

// Polyline returns the discretization used for weights: the two endpoints
// of a straight segment, or geom.BezierSteps chords of a curve.
func (s Segment) Polyline() orb.LineString {
	if s.Curved {
		return geom.BezierPolyline(s.From, s.Control[0], s.Control[1], s.To)
	}
	return orb.LineString{s.From, s.To}
}

// Length is the segment's weight in map units.
func (s Segment) Length() float64 {
	return geom.Length(s.Polyline())
}

// Segments resolves every hop of a path into oriented segments.
func (g *Graph) Segments(p Path) ([]Segment, error) {
	if len(p.Nodes) == 0 {
		return nil, nil
	}
	if !g.Has(p.Nodes[0]) {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, p.Nodes[0])
	}
	segs := make([]Segment, 0, len(p.Nodes)-1)
	for i := 1; i < len(p.Nodes); i++ {
		s, err := g.Segment(p.Nodes[i-1], p.Nodes[i])
		if err != nil {
			return nil, err
		}
		segs = append(segs, s)
	}
	return segs, nil
}
