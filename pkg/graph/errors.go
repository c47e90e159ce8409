package graph

import "errors"

// Sentinel errors returned by graph lookups and path planning.
var (
	// ErrNodeNotFound is returned when a node id is not part of the graph.
	ErrNodeNotFound = errors.New("graph: node not found")

	// ErrNoPathFound is returned when the destination is unreachable from the start.
	ErrNoPathFound = errors.New("graph: no path found")

	// ErrInvalidEdgeGeometry is returned for edges whose control points are
	// malformed, or when a path steps between nodes with no connecting edge.
	ErrInvalidEdgeGeometry = errors.New("graph: invalid edge geometry")
)
