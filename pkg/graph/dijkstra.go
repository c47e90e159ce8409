package graph

import (
	"container/heap"
	"fmt"
)

// Dijkstra returns the shortest path from start to end.
//
// The unvisited node with the smallest tentative distance is settled next;
// ties go to the smaller id (integer ids numerically, others
// lexicographically). Relaxation is strict, so among equal-length routes the
// first predecessor found is kept. This is the O(V²) array scan, which is
// plenty for floor plans of a few hundred nodes; DijkstraHeap gives the same
// result in O((V+E) log V).
func Dijkstra(g *Graph, start, end string) (Path, error) {
	if err := checkEndpoints(g, start, end); err != nil {
		return Path{}, err
	}
	if start == end {
		return Path{Nodes: []string{start}}, nil
	}

	dist := map[string]float64{start: 0}
	prev := make(map[string]string)
	done := make(map[string]bool, len(g.order))

	for {
		u, found := "", false
		best := 0.0
		// g.order is sorted by id, so the strict comparison keeps the
		// smallest id among equal distances.
		for _, id := range g.order {
			if done[id] {
				continue
			}
			d, ok := dist[id]
			if !ok {
				continue
			}
			if !found || d < best {
				u, best, found = id, d, true
			}
		}
		if !found || u == end {
			break
		}
		done[u] = true
		relax(g, u, dist, prev, done, nil)
	}

	return buildPath(start, end, dist, prev)
}

// DijkstraHeap is Dijkstra backed by a binary heap. Its output is identical.
func DijkstraHeap(g *Graph, start, end string) (Path, error) {
	if err := checkEndpoints(g, start, end); err != nil {
		return Path{}, err
	}
	if start == end {
		return Path{Nodes: []string{start}}, nil
	}

	dist := map[string]float64{start: 0}
	prev := make(map[string]string)
	done := make(map[string]bool, len(g.order))
	pq := &queue{{id: start, dist: 0}}

	for pq.Len() > 0 {
		it := heap.Pop(pq).(item)
		if done[it.id] || it.dist > dist[it.id] {
			continue
		}
		if it.id == end {
			break
		}
		done[it.id] = true
		relax(g, it.id, dist, prev, done, pq)
	}

	return buildPath(start, end, dist, prev)
}

func checkEndpoints(g *Graph, start, end string) error {
	if g == nil {
		return fmt.Errorf("%w: empty graph", ErrNodeNotFound)
	}
	if !g.Has(start) {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, start)
	}
	if !g.Has(end) {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, end)
	}
	return nil
}

func relax(g *Graph, u string, dist map[string]float64, prev map[string]string, done map[string]bool, pq *queue) {
	for _, nb := range g.adj[u] {
		if done[nb.ID] {
			continue
		}
		nd := dist[u] + nb.Weight
		if cur, ok := dist[nb.ID]; ok && nd >= cur {
			continue
		}
		dist[nb.ID] = nd
		prev[nb.ID] = u
		if pq != nil {
			heap.Push(pq, item{id: nb.ID, dist: nd})
		}
	}
}

func buildPath(start, end string, dist map[string]float64, prev map[string]string) (Path, error) {
	d, ok := dist[end]
	if !ok {
		return Path{}, fmt.Errorf("%w: %q to %q", ErrNoPathFound, start, end)
	}
	var rev []string
	for at := end; ; at = prev[at] {
		rev = append(rev, at)
		if at == start {
			break
		}
	}
	nodes := make([]string, len(rev))
	for i, id := range rev {
		nodes[len(rev)-1-i] = id
	}
	return Path{Nodes: nodes, Distance: d}, nil
}

type item struct {
	id   string
	dist float64
}

type queue []item

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return idLess(q[i].id, q[j].id)
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(item)) }

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
