// Package graph builds the undirected weighted floor-plan graph and plans
// shortest paths over it.
//
// Straight edges weigh their Euclidean length. Curved edges are cubic
// Béziers and weigh the summed chord length of the fixed geom.BezierSteps
// discretization, the same polyline the sampler walks, so planned distance
// and waypoint spacing always agree.
package graph

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"github.com/teslashibe/go-arnav/pkg/geom"
)

// Node is a floor-plan vertex.
type Node struct {
	ID    string     `json:"id"`
	Pos   geom.Point `json:"pos"`
	Label string     `json:"label,omitempty"`
}

// Edge is an undirected connection between two nodes. Control is nil for a
// straight segment and holds exactly two points for a cubic Bézier.
type Edge struct {
	ID      string       `json:"id"`
	From    string       `json:"from"`
	To      string       `json:"to"`
	Control []geom.Point `json:"control_points,omitempty"`
}

// Curved reports whether the edge is a Bézier.
func (e Edge) Curved() bool {
	return len(e.Control) == 2
}

// Neighbor is one adjacency entry.
type Neighbor struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
	EdgeID string  `json:"edge_id"`
}

// Path is an ordered node sequence from start to destination. Distance is
// in map units.
type Path struct {
	Nodes    []string `json:"nodes"`
	Distance float64  `json:"distance"`
}

// Graph is an immutable undirected weighted graph. It is safe for
// concurrent readers once built.
type Graph struct {
	nodes   map[string]Node
	order   []string
	edges   map[string]Edge
	weights map[string]float64
	adj     map[string][]Neighbor
	pairs   map[pairKey]string
	dropped int
}

type pairKey struct{ a, b string }

func keyFor(a, b string) pairKey {
	if idLess(b, a) {
		a, b = b, a
	}
	return pairKey{a, b}
}

type buildOptions struct {
	logger *slog.Logger
}

// Option configures Build.
type Option func(*buildOptions)

// WithLogger sets the logger used for build warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// Build constructs a graph from nodes and edges. It never fails: duplicate
// or non-finite nodes and edges that are malformed or reference unknown
// nodes are dropped with a warning and counted in Dropped. When two edges
// join the same pair of nodes the lighter one is kept.
func Build(nodes []Node, edges []Edge, opts ...Option) *Graph {
	o := buildOptions{logger: slog.Default().With("component", "graph")}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger

	g := &Graph{
		nodes:   make(map[string]Node, len(nodes)),
		edges:   make(map[string]Edge, len(edges)),
		weights: make(map[string]float64, len(edges)),
		adj:     make(map[string][]Neighbor, len(nodes)),
		pairs:   make(map[pairKey]string, len(edges)),
	}

	for _, n := range nodes {
		switch {
		case n.ID == "":
			log.Warn("dropping node without id", "pos", n.Pos)
			g.dropped++
			continue
		case !geom.Finite(n.Pos):
			log.Warn("dropping node with non-finite position", "node", n.ID)
			g.dropped++
			continue
		}
		if _, dup := g.nodes[n.ID]; dup {
			log.Warn("dropping duplicate node", "node", n.ID)
			g.dropped++
			continue
		}
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}
	sort.Slice(g.order, func(i, j int) bool { return idLess(g.order[i], g.order[j]) })

	for i, e := range edges {
		if e.ID == "" {
			e.ID = fmt.Sprintf("edge%d", i)
		}
		if err := g.validate(e); err != nil {
			log.Warn("dropping edge", "edge", e.ID, "from", e.From, "to", e.To, "error", err)
			g.dropped++
			continue
		}
		if _, dup := g.edges[e.ID]; dup {
			log.Warn("dropping edge with duplicate id", "edge", e.ID)
			g.dropped++
			continue
		}

		w := weight(g.nodes[e.From].Pos, g.nodes[e.To].Pos, e.Control)
		k := keyFor(e.From, e.To)
		if prev, ok := g.pairs[k]; ok {
			if g.weights[prev] <= w {
				log.Debug("ignoring heavier parallel edge", "edge", e.ID, "kept", prev)
				continue
			}
			log.Debug("replacing heavier parallel edge", "edge", e.ID, "replaced", prev)
			delete(g.edges, prev)
			delete(g.weights, prev)
		}
		g.pairs[k] = e.ID
		g.edges[e.ID] = e
		g.weights[e.ID] = w
	}

	// Adjacency is derived from the surviving edge set so both directions
	// always carry the same weight.
	for k, id := range g.pairs {
		w := g.weights[id]
		g.adj[k.a] = append(g.adj[k.a], Neighbor{ID: k.b, Weight: w, EdgeID: id})
		g.adj[k.b] = append(g.adj[k.b], Neighbor{ID: k.a, Weight: w, EdgeID: id})
	}
	for id := range g.adj {
		nb := g.adj[id]
		sort.Slice(nb, func(i, j int) bool { return idLess(nb[i].ID, nb[j].ID) })
	}

	if g.dropped > 0 {
		log.Warn("graph built with dropped elements", "nodes", len(g.nodes), "edges", len(g.edges), "dropped", g.dropped)
	} else {
		log.Debug("graph built", "nodes", len(g.nodes), "edges", len(g.edges))
	}
	return g
}

func (g *Graph) validate(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, e.To)
	}
	if e.From == e.To {
		return fmt.Errorf("%w: self loop on %q", ErrInvalidEdgeGeometry, e.From)
	}
	if n := len(e.Control); n != 0 && n != 2 {
		return fmt.Errorf("%w: %d control points", ErrInvalidEdgeGeometry, n)
	}
	for _, c := range e.Control {
		if !geom.Finite(c) {
			return fmt.Errorf("%w: non-finite control point", ErrInvalidEdgeGeometry)
		}
	}
	return nil
}

func weight(a, b geom.Point, control []geom.Point) float64 {
	if len(control) == 2 {
		return geom.Length(geom.BezierPolyline(a, control[0], control[1], b))
	}
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}

// Dropped returns how many nodes and edges Build discarded as malformed.
func (g *Graph) Dropped() int {
	return g.dropped
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edge looks up an edge by id.
func (g *Graph) Edge(id string) (Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// EdgeBetween returns the edge joining a and b in either direction.
func (g *Graph) EdgeBetween(a, b string) (Edge, bool) {
	id, ok := g.pairs[keyFor(a, b)]
	if !ok {
		return Edge{}, false
	}
	return g.edges[id], true
}

// Weight returns the weight of the edge with the given id.
func (g *Graph) Weight(edgeID string) (float64, bool) {
	w, ok := g.weights[edgeID]
	return w, ok
}

// Neighbors returns a copy of the adjacency list of id, ordered by neighbor id.
func (g *Graph) Neighbors(id string) []Neighbor {
	nb := g.adj[id]
	out := make([]Neighbor, len(nb))
	copy(out, nb)
	return out
}

// NodeIDs returns every node id in planner order.
func (g *Graph) NodeIDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Nodes returns every node in planner order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns every surviving edge ordered by id.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out
}

// Nearest returns the node closest to p. Ties go to the node first in
// planner order. ok is false for an empty graph.
func (g *Graph) Nearest(p geom.Point) (Node, bool) {
	var (
		best  Node
		bestD = math.Inf(1)
		found bool
	)
	for _, id := range g.order {
		n := g.nodes[id]
		if d := geom.Distance(n.Pos, p); d < bestD {
			best, bestD, found = n, d, true
		}
	}
	return best, found
}

// idLess orders node ids: integer ids first in numeric order, then all
// other ids lexicographically.
func idLess(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}
