package stategraph

import (
	"log/slog"

	"golang.org/x/exp/slices"
)

// Linearizer assigns every node reachable from the root a unique linear id in [0, N).
//
// The ids of an already linearized graph are discarded first.
type Linearizer interface {
	Linearize(g *Graph)
}

// BFS linearizes the graph breadth first.
//
// Successors of ordered nodes are numbered in their declared order. Successors of
// order-insignificant nodes are deferred until the ordered queue is drained and are then
// sorted with the heuristic, so that the ids they are compared by are as established as
// possible. Ties left by the heuristic are broken by the runtime identity of the nodes.
type BFS struct {
	Heuristic Heuristic
	Logger    *slog.Logger
}

// Create a new BFS linearizer. Uses the structural heuristic if h is nil.
func NewBFS(h Heuristic, logger *slog.Logger) *BFS {
	if h == nil {
		h = Structural{Depth: 3}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BFS{Heuristic: h, Logger: logger}
}

func (l *BFS) Linearize(g *Graph) {
	g.InvalidateLinearization()
	if g.root == NullIndex {
		g.linear = []int{}
		return
	}

	linear := make([]int, 0, len(g.nodes))
	ordered := newQueue()
	deferred := newQueue()
	assign := func(i int) {
		n := g.nodes[i]
		n.LinearID = len(linear)
		linear = append(linear, i)
		if n.Ordered {
			ordered.push(i)
		} else {
			deferred.push(i)
		}
	}

	assign(g.root)
	var candidates []int
	for !ordered.empty() || !deferred.empty() {
		if !ordered.empty() {
			n := g.nodes[ordered.pop()]
			for _, s := range n.Refs {
				if s != NullIndex && g.nodes[s].LinearID == InvalidID {
					assign(s)
				}
			}
			continue
		}

		n := g.nodes[deferred.pop()]
		candidates = candidates[:0]
		for _, s := range n.Refs {
			if s != NullIndex && g.nodes[s].LinearID == InvalidID {
				candidates = append(candidates, s)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		slices.SortFunc(candidates, func(a, b int) bool {
			va, vb := g.nodes[a].VMID, g.nodes[b].VMID
			if va != vb {
				return va < vb
			}
			return a < b
		})
		candidates = slices.Compact(candidates)
		slices.SortStableFunc(candidates, func(a, b int) bool {
			return l.Heuristic.Compare(g, a, b) < 0
		})
		for _, s := range candidates {
			assign(s)
		}
	}
	g.linear = linear

	sortUnorderedRefs(g)
	l.Logger.Debug("linearized state graph", "nodes", len(linear), "arena", len(g.nodes))
}

// sortUnorderedRefs reorders the successors of order-insignificant nodes by linear id.
func sortUnorderedRefs(g *Graph) {
	for _, i := range g.linear {
		n := g.nodes[i]
		if n.Ordered || len(n.Refs) < 2 {
			continue
		}
		slices.SortFunc(n.Refs, func(a, b int) bool {
			return g.LinearID(a) < g.LinearID(b)
		})
	}
}

// OrderedBFS linearizes the graph breadth first in declared successor order, treating every
// node as ordered.
//
// It is cheaper than BFS but only canonical for graphs without order-insignificant nodes.
type OrderedBFS struct{}

func (OrderedBFS) Linearize(g *Graph) {
	g.InvalidateLinearization()
	if g.root == NullIndex {
		g.linear = []int{}
		return
	}
	linear := []int{g.root}
	g.nodes[g.root].LinearID = 0
	for next := 0; next < len(linear); next++ {
		for _, s := range g.nodes[linear[next]].Refs {
			if s != NullIndex && g.nodes[s].LinearID == InvalidID {
				g.nodes[s].LinearID = len(linear)
				linear = append(linear, s)
			}
		}
	}
	g.linear = linear
}

// queue is a FIFO of node indices.
type queue struct {
	items []int
	head  int
}

func newQueue() *queue {
	return &queue{}
}

func (q *queue) push(i int) {
	q.items = append(q.items, i)
}

func (q *queue) pop() int {
	i := q.items[q.head]
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return i
}

func (q *queue) empty() bool {
	return q.head == len(q.items)
}
