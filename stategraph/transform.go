package stategraph

// Transform rewrites a built graph before it is linearized.
//
// A transform must leave every successor index valid. Transforms run in registration order.
type Transform interface {
	Apply(g *Graph) error
}

// SymmetricThreads treats threads as interchangeable by marking the threads container
// order-insignificant. Two states that differ only by a permutation of thread ids then
// linearize identically.
type SymmetricThreads struct{}

func (SymmetricThreads) Apply(g *Graph) error {
	for _, n := range g.nodes {
		if n.Kind == Threads {
			n.Ordered = false
		}
	}
	return nil
}

// TransformFunc adapts a function to the Transform interface.
type TransformFunc func(g *Graph) error

func (f TransformFunc) Apply(g *Graph) error {
	return f(g)
}
