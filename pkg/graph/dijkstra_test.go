package graph

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-arnav/pkg/geom"
)

func TestDijkstra_SameNode(t *testing.T) {
	g := Build([]Node{node("A", 0, 0), node("B", 1, 0)}, []Edge{line("A", "B")}, WithLogger(quietLogger()))

	for name, plan := range map[string]func(*Graph, string, string) (Path, error){
		"scan": Dijkstra,
		"heap": DijkstraHeap,
	} {
		t.Run(name, func(t *testing.T) {
			p, err := plan(g, "A", "A")
			require.NoError(t, err)
			assert.Equal(t, []string{"A"}, p.Nodes)
			assert.Equal(t, 0.0, p.Distance)
		})
	}
}

func TestDijkstra_Errors(t *testing.T) {
	g := Build(
		[]Node{node("A", 0, 0), node("B", 1, 0), node("C", 5, 5), node("D", 6, 5)},
		[]Edge{line("A", "B"), line("C", "D")},
		WithLogger(quietLogger()),
	)

	tests := []struct {
		name       string
		start, end string
		want       error
	}{
		{"disconnected", "A", "D", ErrNoPathFound},
		{"disconnected reverse", "D", "B", ErrNoPathFound},
		{"missing start", "Z", "A", ErrNodeNotFound},
		{"missing end", "A", "Z", ErrNodeNotFound},
		{"missing both equal", "Z", "Z", ErrNodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Dijkstra(g, tt.start, tt.end); !errors.Is(err, tt.want) {
				t.Errorf("Dijkstra err = %v, want %v", err, tt.want)
			}
			if _, err := DijkstraHeap(g, tt.start, tt.end); !errors.Is(err, tt.want) {
				t.Errorf("DijkstraHeap err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Dijkstra(nil, "A", "B"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("nil graph: got %v", err)
	}
}

func TestDijkstra_TieBreak(t *testing.T) {
	// Two equal routes around a square; the smaller id is settled first and
	// its relaxation of the destination is kept.
	g := Build(
		[]Node{node("A", 0, 0), node("C", 0, 1), node("B", 1, 0), node("D", 1, 1)},
		[]Edge{line("A", "C"), line("C", "D"), line("A", "B"), line("B", "D")},
		WithLogger(quietLogger()),
	)
	p, err := Dijkstra(g, "A", "D")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D"}, p.Nodes)

	// Integer ids compare numerically, so "2" beats "10".
	g = Build(
		[]Node{node("1", 0, 0), node("10", 0, 1), node("2", 1, 0), node("3", 1, 1)},
		[]Edge{line("1", "10"), line("10", "3"), line("1", "2"), line("2", "3")},
		WithLogger(quietLogger()),
	)
	p, err = Dijkstra(g, "1", "3")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, p.Nodes)
}

func TestDijkstra_EndToEndCorridor(t *testing.T) {
	g := Build(
		[]Node{node("Entrance", 0, 0), node("Mid", 10, 0), node("Lab", 20, 0)},
		[]Edge{line("Entrance", "Mid"), line("Mid", "Lab")},
		WithLogger(quietLogger()),
	)
	p, err := Dijkstra(g, "Entrance", "Lab")
	require.NoError(t, err)
	assert.Equal(t, []string{"Entrance", "Mid", "Lab"}, p.Nodes)
	assert.Equal(t, 20.0, p.Distance)
}

// randomGraph builds a graph of n nodes on a grid with random straight and
// curved edges.
func randomGraph(r *rand.Rand, n int) *Graph {
	nodes := make([]Node, n)
	for i := range nodes {
		nodes[i] = node(fmt.Sprintf("n%d", i), float64(r.Intn(20)), float64(r.Intn(20)))
	}
	var edges []Edge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if r.Float64() > 0.45 {
				continue
			}
			e := line(nodes[i].ID, nodes[j].ID)
			if r.Intn(3) == 0 {
				e.Control = []geom.Point{
					{float64(r.Intn(20)), float64(r.Intn(20))},
					{float64(r.Intn(20)), float64(r.Intn(20))},
				}
			}
			edges = append(edges, e)
		}
	}
	return Build(nodes, edges, WithLogger(quietLogger()))
}

// bruteForce returns the minimum summed weight over every simple path.
func bruteForce(g *Graph, start, end string) (float64, bool) {
	best := math.Inf(1)
	visited := map[string]bool{start: true}
	var walk func(at string, acc float64)
	walk = func(at string, acc float64) {
		if at == end {
			best = math.Min(best, acc)
			return
		}
		for _, nb := range g.Neighbors(at) {
			if visited[nb.ID] {
				continue
			}
			visited[nb.ID] = true
			walk(nb.ID, acc+nb.Weight)
			visited[nb.ID] = false
		}
	}
	walk(start, 0)
	return best, !math.IsInf(best, 1)
}

func pathWeight(t *testing.T, g *Graph, p Path) float64 {
	t.Helper()
	total := 0.0
	for i := 1; i < len(p.Nodes); i++ {
		e, ok := g.EdgeBetween(p.Nodes[i-1], p.Nodes[i])
		require.True(t, ok, "path hop %s-%s has no edge", p.Nodes[i-1], p.Nodes[i])
		w, _ := g.Weight(e.ID)
		total += w
	}
	return total
}

func TestDijkstra_MatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for trial := 0; trial < 60; trial++ {
		g := randomGraph(r, 2+r.Intn(7))
		ids := g.NodeIDs()

		for _, a := range ids {
			for _, b := range ids {
				want, reachable := bruteForce(g, a, b)

				p, err := Dijkstra(g, a, b)
				hp, herr := DijkstraHeap(g, a, b)

				if !reachable {
					assert.ErrorIs(t, err, ErrNoPathFound, "trial %d %s->%s", trial, a, b)
					assert.ErrorIs(t, herr, ErrNoPathFound, "trial %d %s->%s", trial, a, b)
					continue
				}
				require.NoError(t, err, "trial %d %s->%s", trial, a, b)
				require.NoError(t, herr, "trial %d %s->%s", trial, a, b)

				assert.InDelta(t, want, p.Distance, 1e-9, "trial %d %s->%s", trial, a, b)
				assert.InDelta(t, p.Distance, pathWeight(t, g, p), 1e-9)
				assert.Equal(t, a, p.Nodes[0])
				assert.Equal(t, b, p.Nodes[len(p.Nodes)-1])

				assert.Equal(t, p, hp, "heap variant diverged on trial %d %s->%s", trial, a, b)
			}
		}
	}
}
