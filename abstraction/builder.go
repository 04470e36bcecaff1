package abstraction

import (
	"fmt"
	"log/slog"

	"vmcheck/stategraph"
	"vmcheck/vm"
)

// Builder builds the state graph of a live state.
//
// The root has three ordered successors: the statics container, with one class node per
// class in class id order, the threads container, with one thread node per thread in
// thread id order, and the heap entry node, whose successors are the objects pinned by the
// runtime. Every reachable object is visited exactly once per build.
type Builder struct {
	conf      Configuration
	threadAbs ObjectAbstractor
	logger    *slog.Logger
}

// Create a new Builder.
//
// Thread objects are always filled with threadAbs and their nodes are always ordered.
func NewBuilder(conf Configuration, threadAbs ObjectAbstractor, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		conf:      conf,
		threadAbs: threadAbs,
		logger:    logger,
	}
}

// Build returns the state graph of state. The graph is not linearized.
func (b *Builder) Build(state vm.State) (*stategraph.Graph, error) {
	g := stategraph.New()
	root := g.Add(stategraph.Root, 0, 0, true)
	g.SetRoot(root)
	statics := g.Add(stategraph.Statics, 0, 0, true)
	threads := g.Add(stategraph.Threads, 0, 0, true)
	entry := g.Add(stategraph.HeapEntry, 0, 0, false)
	g.AddRef(root, statics)
	g.AddRef(root, threads)
	g.AddRef(root, entry)

	heap := state.Heap()
	p := NewProcess(g, heap, b.conf)

	if err := b.buildThreads(p, threads, state.Threads()); err != nil {
		return nil, err
	}

	for _, area := range state.Statics() {
		abs, err := b.conf.StaticsAbstractor(area.Class)
		if err != nil {
			return nil, fmt.Errorf("abstracting statics of %v: %w", area.Class.Name, err)
		}
		node := abs.CreateStaticsSkeleton(g, area)
		g.AddRef(statics, node)
		if err := abs.FillStaticsData(p, area, node); err != nil {
			return nil, fmt.Errorf("abstracting statics of %v: %w", area.Class.Name, err)
		}
	}

	for _, ref := range heap.Pinned() {
		node, err := p.Resolve(ref)
		if err != nil {
			return nil, err
		}
		if node != stategraph.NullIndex {
			g.AddRef(entry, node)
		}
	}

	if err := p.Drain(); err != nil {
		return nil, err
	}
	b.logger.Debug("built state graph", "nodes", g.Len(), "objects", p.Size())
	return g, nil
}

// buildThreads registers every thread object before filling any, so objects referring to
// a thread reach its thread node.
func (b *Builder) buildThreads(p *Process, container int, threads []*vm.ThreadInfo) error {
	g := p.Graph()
	heap := p.heap
	nodes := make([]int, len(threads))
	for i, ti := range threads {
		if ei := heap.Get(ti.Object); ti.Object != vm.NullRef && ei != nil {
			nodes[i] = g.Add(stategraph.ThreadObject, ei.Class.Id, int64(ti.Object), true)
			p.Register(ti.Object, nodes[i])
		} else {
			nodes[i] = g.Add(stategraph.ThreadObject, 0, -1-int64(ti.Id), true)
		}
		g.AddRef(container, nodes[i])
	}

	for i, ti := range threads {
		node := nodes[i]
		if ei := heap.Get(ti.Object); ti.Object != vm.NullRef && ei != nil {
			if err := b.threadAbs.FillInstanceData(p, ei, node); err != nil {
				return fmt.Errorf("abstracting thread %v: %w", ti.Id, err)
			}
		}
		n := g.Node(node)
		n.Prims = append(n.Prims, int32(ti.Status), int32(len(ti.Frames)))
		for depth, sf := range ti.Frames {
			abs, err := b.conf.FrameAbstractor(sf.Method)
			if err != nil {
				return fmt.Errorf("abstracting frame %v of thread %v: %w", sf.Method.FullName(), ti.Id, err)
			}
			frame, err := abs.AbstractFrame(p, sf, depth)
			if err != nil {
				return fmt.Errorf("abstracting frame %v of thread %v: %w", sf.Method.FullName(), ti.Id, err)
			}
			g.AddRef(node, frame)
		}
	}
	return nil
}
