// Package serialize turns the live state of the target program into a fingerprint: a flat
// vector of integers that is equal for two states exactly when they are considered the same
// state by the search.
package serialize

import (
	"fmt"
	"log/slog"

	"vmcheck/abstraction"
	"vmcheck/stategraph"
	"vmcheck/vector"
	"vmcheck/vm"
)

// Serializer computes the fingerprint of a live state.
//
// The returned vector is owned by the caller.
type Serializer interface {
	Serialize(state vm.State) (*vector.IntVector, error)
}

// GraphSerializer builds the state graph of a state, applies the transforms, linearizes it
// and emits the linearized nodes.
type GraphSerializer struct {
	builder    *abstraction.Builder
	transforms []stategraph.Transform
	linearizer stategraph.Linearizer
	out        *vector.IntVector
	logger     *slog.Logger
}

// Create a new GraphSerializer. growth is used for the fingerprint buffer.
func NewGraphSerializer(
	builder *abstraction.Builder,
	linearizer stategraph.Linearizer,
	transforms []stategraph.Transform,
	growth vector.GrowthStrategy,
	logger *slog.Logger,
) *GraphSerializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphSerializer{
		builder:    builder,
		transforms: transforms,
		linearizer: linearizer,
		out:        vector.NewIntVector(256, growth),
		logger:     logger,
	}
}

// Graph returns the linearized state graph of state.
func (s *GraphSerializer) Graph(state vm.State) (*stategraph.Graph, error) {
	g, err := s.builder.Build(state)
	if err != nil {
		return nil, err
	}
	for i, t := range s.transforms {
		if err := t.Apply(g); err != nil {
			return nil, fmt.Errorf("transform %v: %w", i, err)
		}
	}
	s.linearizer.Linearize(g)
	return g, nil
}

func (s *GraphSerializer) Serialize(state vm.State) (*vector.IntVector, error) {
	g, err := s.Graph(state)
	if err != nil {
		return nil, err
	}
	s.out.Clear()
	Emit(g, s.out)
	s.logger.Debug("serialized state graph", "nodes", len(g.Linearized()), "length", s.out.Size())
	return s.out.Clone(), nil
}

// Emit appends the linearized nodes of g to out in linear id order.
//
// Every node is written as its type tag, its successor count followed by the linear ids of
// its successors, and its primitive count followed by its primitives. Null successors are
// written as stategraph.NullID.
func Emit(g *stategraph.Graph, out *vector.IntVector) {
	if !g.IsLinearized() {
		panic("serialize: graph is not linearized")
	}
	for _, i := range g.Linearized() {
		n := g.Node(i)
		out.Add(n.Tag())
		out.AddInt(len(n.Refs))
		for _, r := range n.Refs {
			out.AddInt(g.LinearID(r))
		}
		out.AddInt(len(n.Prims))
		out.AddAll(n.Prims...)
	}
}
