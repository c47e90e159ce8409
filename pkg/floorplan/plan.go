// Package floorplan loads floor plans into navigation graphs.
//
// Plans come from Inkscape-style SVG drawings (circles are nodes, simple
// paths are edges) or from a JSON document. A Store loads a plan once in
// the background and signals readiness to everything waiting on it.
package floorplan

import (
	"errors"
	"log/slog"

	"github.com/teslashibe/go-arnav/pkg/geom"
	"github.com/teslashibe/go-arnav/pkg/graph"
)

// Sentinel errors.
var (
	// ErrUnsupportedFormat is returned for files that are neither SVG nor JSON.
	ErrUnsupportedFormat = errors.New("floorplan: unsupported format")

	// ErrInvalidDocument is returned for unreadable or structurally wrong input.
	ErrInvalidDocument = errors.New("floorplan: invalid document")

	// ErrNotReady is returned by Store.Wait when the load failed or the
	// context ended first.
	ErrNotReady = errors.New("floorplan: not ready")
)

// DefaultMarkerPresets are the marker patterns bound to the first nodes of
// a plan, in document order.
var DefaultMarkerPresets = []string{"hiro", "kanji"}

// Plan is a parsed floor plan.
type Plan struct {
	Nodes   []graph.Node
	Edges   []graph.Edge
	Markers map[string]string // marker id -> node id
	North   *geom.Point       // north reference in map space, if the plan has one
	Width   float64
	Height  float64
}

// Graph builds the navigation graph for the plan.
func (p *Plan) Graph(opts ...graph.Option) *graph.Graph {
	return graph.Build(p.Nodes, p.Edges, opts...)
}

// MarkerNode resolves a marker id to its node id.
func (p *Plan) MarkerNode(markerID string) (string, bool) {
	id, ok := p.Markers[markerID]
	return id, ok
}

// bindPresets maps presets onto nodes in order, without overriding explicit
// bindings.
func (p *Plan) bindPresets(presets []string) {
	if p.Markers == nil {
		p.Markers = make(map[string]string)
	}
	for i, name := range presets {
		if i >= len(p.Nodes) {
			break
		}
		if _, ok := p.Markers[name]; !ok {
			p.Markers[name] = p.Nodes[i].ID
		}
	}
}

// Point is the JSON form of a map position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func fromGeom(p geom.Point) Point { return Point{X: p[0], Y: p[1]} }

func (p Point) geom() geom.Point { return geom.Point{p.X, p.Y} }

// DocumentNode is the JSON form of a node.
type DocumentNode struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label,omitempty"`
}

// DocumentEdge is the JSON form of an edge.
type DocumentEdge struct {
	ID            string  `json:"id,omitempty"`
	From          string  `json:"from"`
	To            string  `json:"to"`
	ControlPoints []Point `json:"control_points,omitempty"`
}

// Document is the JSON floor-plan format, also served by the web API.
type Document struct {
	Nodes   []DocumentNode    `json:"nodes"`
	Edges   []DocumentEdge    `json:"edges"`
	Markers map[string]string `json:"markers,omitempty"`
	North   *Point            `json:"north,omitempty"`
	Width   float64           `json:"width,omitempty"`
	Height  float64           `json:"height,omitempty"`
}

// Document converts the plan to its JSON form.
func (p *Plan) Document() Document {
	doc := Document{
		Nodes:   make([]DocumentNode, 0, len(p.Nodes)),
		Edges:   make([]DocumentEdge, 0, len(p.Edges)),
		Markers: p.Markers,
		Width:   p.Width,
		Height:  p.Height,
	}
	for _, n := range p.Nodes {
		doc.Nodes = append(doc.Nodes, DocumentNode{ID: n.ID, X: n.Pos[0], Y: n.Pos[1], Label: n.Label})
	}
	for _, e := range p.Edges {
		de := DocumentEdge{ID: e.ID, From: e.From, To: e.To}
		for _, c := range e.Control {
			de.ControlPoints = append(de.ControlPoints, fromGeom(c))
		}
		doc.Edges = append(doc.Edges, de)
	}
	if p.North != nil {
		n := fromGeom(*p.North)
		doc.North = &n
	}
	return doc
}

// Plan converts a JSON document to a plan.
func (d Document) Plan() *Plan {
	p := &Plan{
		Nodes:   make([]graph.Node, 0, len(d.Nodes)),
		Edges:   make([]graph.Edge, 0, len(d.Edges)),
		Markers: make(map[string]string, len(d.Markers)),
		Width:   d.Width,
		Height:  d.Height,
	}
	for _, n := range d.Nodes {
		p.Nodes = append(p.Nodes, graph.Node{ID: n.ID, Pos: geom.Pt(n.X, n.Y), Label: n.Label})
	}
	for _, e := range d.Edges {
		ge := graph.Edge{ID: e.ID, From: e.From, To: e.To}
		for _, c := range e.ControlPoints {
			ge.Control = append(ge.Control, c.geom())
		}
		p.Edges = append(p.Edges, ge)
	}
	for k, v := range d.Markers {
		p.Markers[k] = v
	}
	if d.North != nil {
		n := d.North.geom()
		p.North = &n
	}
	return p
}

func defaultLogger() *slog.Logger {
	return slog.Default().With("component", "floorplan")
}
