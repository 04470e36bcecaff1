package abstraction

import (
	"fmt"

	"vmcheck/stategraph"
	"vmcheck/vm"
)

type pending struct {
	ei   *vm.ElementInfo
	node int
	abs  ObjectAbstractor
}

// Process maps the live references met during one build onto graph nodes.
//
// A reference is given a node the first time it is resolved and the node is filled later,
// so cyclic object graphs are built without recursion.
type Process struct {
	graph *stategraph.Graph
	heap  vm.Heap
	conf  Configuration
	nodes map[int32]int
	work  []pending
}

func NewProcess(g *stategraph.Graph, heap vm.Heap, conf Configuration) *Process {
	return &Process{
		graph: g,
		heap:  heap,
		conf:  conf,
		nodes: map[int32]int{},
	}
}

func (p *Process) Graph() *stategraph.Graph {
	return p.graph
}

// Register binds ref to an existing node. The node is not queued for filling.
func (p *Process) Register(ref int32, node int) {
	p.nodes[ref] = node
}

// Lookup returns the node bound to ref, if any.
func (p *Process) Lookup(ref int32) (int, bool) {
	node, ok := p.nodes[ref]
	return node, ok
}

// Resolve returns the node of the object ref refers to, creating it on first use.
//
// Returns stategraph.NullIndex for null and for references to dead objects.
func (p *Process) Resolve(ref int32) (int, error) {
	if ref == vm.NullRef || !p.heap.IsAlive(ref) {
		return stategraph.NullIndex, nil
	}
	if node, ok := p.nodes[ref]; ok {
		return node, nil
	}
	ei := p.heap.Get(ref)
	abs, err := p.conf.ObjectAbstractor(ei.Class)
	if err != nil {
		return stategraph.NullIndex, fmt.Errorf("abstracting object %v of class %v: %w", ref, ei.Class.Name, err)
	}
	node := abs.CreateInstanceSkeleton(p.graph, ei)
	p.nodes[ref] = node
	p.work = append(p.work, pending{ei: ei, node: node, abs: abs})
	return node, nil
}

// Drain fills every node created by Resolve, including the ones created while filling.
func (p *Process) Drain() error {
	for len(p.work) > 0 {
		next := p.work[0]
		p.work = p.work[1:]
		if err := next.abs.FillInstanceData(p, next.ei, next.node); err != nil {
			return fmt.Errorf("abstracting object %v of class %v: %w", next.ei.Ref, next.ei.Class.Name, err)
		}
	}
	return nil
}

// Size returns the number of objects with a node.
func (p *Process) Size() int {
	return len(p.nodes)
}
