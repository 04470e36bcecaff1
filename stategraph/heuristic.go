package stategraph

// Heuristic orders the unlinearized successors of an order-insignificant node.
//
// Compare returns a negative number, zero or a positive number. It must be a strict weak
// ordering for a fixed graph and fixed linear ids.
type Heuristic interface {
	Compare(g *Graph, a, b int) int
}

func compareInts[T ~int | ~int32 | ~int64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareEstablished orders nodes that already have a linear id before those that do not.
func compareEstablished(g *Graph, a, b int) (int, bool) {
	la, lb := g.nodes[a].LinearID, g.nodes[b].LinearID
	switch {
	case la >= 0 && lb >= 0:
		return compareInts(la, lb), true
	case la >= 0:
		return -1, true
	case lb >= 0:
		return 1, true
	}
	return 0, false
}

func compareNull(a, b int) (int, bool) {
	switch {
	case a == b:
		return 0, true
	case a == NullIndex:
		return -1, true
	case b == NullIndex:
		return 1, true
	}
	return 0, false
}

// Shallow compares identity, linear ids and type tags only.
type Shallow struct{}

func (Shallow) Compare(g *Graph, a, b int) int {
	if c, ok := compareNull(a, b); ok {
		return c
	}
	if c, ok := compareEstablished(g, a, b); ok {
		return c
	}
	return compareInts(g.nodes[a].Tag(), g.nodes[b].Tag())
}

// Structural extends Shallow by comparing content up to Depth levels of successors.
//
// Nodes that can not be told apart within the depth budget compare as equal, so two
// different unordered structures may rarely be given the same canonical order. This
// approximation is accepted: exact comparison is graph isomorphism.
type Structural struct {
	Depth int
}

func (h Structural) Compare(g *Graph, a, b int) int {
	return h.compare(g, a, b, h.Depth)
}

func (h Structural) compare(g *Graph, a, b, depth int) int {
	if c, ok := compareNull(a, b); ok {
		return c
	}
	if c, ok := compareEstablished(g, a, b); ok {
		return c
	}
	na, nb := g.nodes[a], g.nodes[b]
	if c := compareInts(na.Tag(), nb.Tag()); c != 0 {
		return c
	}
	if depth <= 0 {
		return 0
	}

	if c := compareInts(len(na.Prims), len(nb.Prims)); c != 0 {
		return c
	}
	for i := range na.Prims {
		if c := compareInts(na.Prims[i], nb.Prims[i]); c != 0 {
			return c
		}
	}

	if na.Ordered != nb.Ordered {
		if na.Ordered {
			return -1
		}
		return 1
	}
	if c := compareInts(len(na.Refs), len(nb.Refs)); c != 0 {
		return c
	}
	if na.Ordered {
		for i := range na.Refs {
			if c := h.compare(g, na.Refs[i], nb.Refs[i], depth-1); c != 0 {
				return c
			}
		}
		return 0
	}

	// The order of the successors carries no meaning, compare order independent aggregates
	if c := compareInts(sumLinearIDs(g, na), sumLinearIDs(g, nb)); c != 0 {
		return c
	}
	return compareInts(sumTags(g, na), sumTags(g, nb))
}

func sumLinearIDs(g *Graph, n *Node) int64 {
	var sum int64
	for _, r := range n.Refs {
		sum += int64(g.LinearID(r))
	}
	return sum
}

func sumTags(g *Graph, n *Node) int64 {
	var sum int64
	for _, r := range n.Refs {
		if r != NullIndex {
			sum += int64(g.nodes[r].Tag())
		}
	}
	return sum
}
