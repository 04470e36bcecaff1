// Package abstraction turns the live state of the target program into a state graph.
//
// Abstractors decide what content the node of an object, a static area or a stack frame
// carries. They are resolved per class or method through a Configuration, and driven by a
// Builder through a Process that maps live references onto nodes.
package abstraction

import (
	"github.com/bits-and-blooms/bitset"

	"vmcheck/fields"
	"vmcheck/stategraph"
	"vmcheck/vm"
)

// ObjectAbstractor abstracts heap objects.
//
// CreateInstanceSkeleton adds an empty node for ei to the graph. FillInstanceData populates
// it once every object it may refer to can be resolved through the process.
type ObjectAbstractor interface {
	CreateInstanceSkeleton(g *stategraph.Graph, ei *vm.ElementInfo) int
	FillInstanceData(p *Process, ei *vm.ElementInfo, node int) error
}

// StaticsAbstractor abstracts the static area of a class.
type StaticsAbstractor interface {
	CreateStaticsSkeleton(g *stategraph.Graph, area *vm.StaticArea) int
	FillStaticsData(p *Process, area *vm.StaticArea, node int) error
}

// FrameAbstractor abstracts one stack frame. depth is the index of the frame from the
// bottom of the stack.
type FrameAbstractor interface {
	AbstractFrame(p *Process, sf *vm.StackFrame, depth int) (int, error)
}

// DefaultObject copies every included field of an object in slot order.
//
// Reference slots become ordered successors, null references included. Every other slot
// is copied to the primitive payload, two slot values as two words. Arrays are copied
// element by element.
type DefaultObject struct {
	masks *fields.MaskCache
}

func NewDefaultObject(masks *fields.MaskCache) *DefaultObject {
	return &DefaultObject{masks: masks}
}

func (a *DefaultObject) CreateInstanceSkeleton(g *stategraph.Graph, ei *vm.ElementInfo) int {
	return g.Add(stategraph.InstanceObject, ei.Class.Id, int64(ei.Ref), true)
}

func (a *DefaultObject) FillInstanceData(p *Process, ei *vm.ElementInfo, node int) error {
	m, err := a.masks.Instance(ei.Class)
	if err != nil {
		return err
	}
	return copySlots(p, node, ei.Slots, m, ei.Class.IsArray && ei.Class.ElementType.IsReference(), true)
}

// copySlots copies the included slots into node. With all refs, every slot is a reference.
// Null references are kept when keepNull is set.
func copySlots(p *Process, node int, slots []int32, m *fields.Masks, allRefs, keepNull bool) error {
	if m == nil {
		panic("abstraction: nil field mask")
	}
	g := p.Graph()
	n := g.Node(node)
	for i, v := range slots {
		isRef := allRefs || (!m.All && m.Refs.Test(uint(i)))
		if !isRef {
			if m.Includes(i) {
				n.Prims = append(n.Prims, v)
			}
			continue
		}
		target, err := p.Resolve(v)
		if err != nil {
			return err
		}
		if target == stategraph.NullIndex && !keepNull {
			continue
		}
		g.AddRef(node, target)
	}
	return nil
}

// UnorderedObject abstracts an object whose references form a set, like the buckets of a
// hash table. Its non-null references become order-insignificant successors.
type UnorderedObject struct {
	masks *fields.MaskCache
}

func NewUnorderedObject(masks *fields.MaskCache) *UnorderedObject {
	return &UnorderedObject{masks: masks}
}

func (a *UnorderedObject) CreateInstanceSkeleton(g *stategraph.Graph, ei *vm.ElementInfo) int {
	return g.Add(stategraph.InstanceObject, ei.Class.Id, int64(ei.Ref), false)
}

func (a *UnorderedObject) FillInstanceData(p *Process, ei *vm.ElementInfo, node int) error {
	m, err := a.masks.Instance(ei.Class)
	if err != nil {
		return err
	}
	return copySlots(p, node, ei.Slots, m, ei.Class.IsArray && ei.Class.ElementType.IsReference(), false)
}

// IgnoreObject reduces an object to its type tag.
type IgnoreObject struct{}

func (IgnoreObject) CreateInstanceSkeleton(g *stategraph.Graph, ei *vm.ElementInfo) int {
	return g.Add(stategraph.InstanceObject, ei.Class.Id, int64(ei.Ref), true)
}

func (IgnoreObject) FillInstanceData(*Process, *vm.ElementInfo, int) error {
	return nil
}

// DefaultStatics copies every included static field of a class in slot order.
type DefaultStatics struct {
	masks *fields.MaskCache
}

func NewDefaultStatics(masks *fields.MaskCache) *DefaultStatics {
	return &DefaultStatics{masks: masks}
}

func (a *DefaultStatics) CreateStaticsSkeleton(g *stategraph.Graph, area *vm.StaticArea) int {
	return g.Add(stategraph.ClassObject, area.Class.Id, int64(area.Class.Id), true)
}

func (a *DefaultStatics) FillStaticsData(p *Process, area *vm.StaticArea, node int) error {
	m, err := a.masks.Static(area.Class)
	if err != nil {
		return err
	}
	return copySlots(p, node, area.Slots, m, false, true)
}

// IgnoreStatics reduces a static area to the type tag of its class.
type IgnoreStatics struct{}

func (IgnoreStatics) CreateStaticsSkeleton(g *stategraph.Graph, area *vm.StaticArea) int {
	return g.Add(stategraph.ClassObject, area.Class.Id, int64(area.Class.Id), true)
}

func (IgnoreStatics) FillStaticsData(*Process, *vm.StaticArea, int) error {
	return nil
}

// Entry markers of a frame's primitive payload.
const (
	primitiveEntry int32 = 0
	referenceEntry int32 = 1
)

// DefaultFrame keeps the program counter, the locals and the operand stack of a frame.
//
// The payload is the pc, the number of locals and operands, and for every entry a marker
// telling primitives from references followed by the value of primitives. References
// become ordered successors, locals first.
type DefaultFrame struct{}

func (DefaultFrame) AbstractFrame(p *Process, sf *vm.StackFrame, depth int) (int, error) {
	g := p.Graph()
	node := g.Add(stategraph.Frame, sf.Method.Id, int64(depth), true)
	n := g.Node(node)
	n.Prims = append(n.Prims, int32(sf.PC), int32(len(sf.Locals)), int32(len(sf.Operands)))
	if err := appendEntries(p, node, sf.Locals, sf.LocalRefs); err != nil {
		return stategraph.NullIndex, err
	}
	if err := appendEntries(p, node, sf.Operands, sf.OperandRefs); err != nil {
		return stategraph.NullIndex, err
	}
	return node, nil
}

func appendEntries(p *Process, node int, values []int32, refs *bitset.BitSet) error {
	g := p.Graph()
	for i, v := range values {
		if refs == nil || !refs.Test(uint(i)) {
			n := g.Node(node)
			n.Prims = append(n.Prims, primitiveEntry, v)
			continue
		}
		target, err := p.Resolve(v)
		if err != nil {
			return err
		}
		g.Node(node).Prims = append(g.Node(node).Prims, referenceEntry)
		g.AddRef(node, target)
	}
	return nil
}

// PCOnlyFrame keeps only the method and program counter of a frame.
type PCOnlyFrame struct{}

func (PCOnlyFrame) AbstractFrame(p *Process, sf *vm.StackFrame, depth int) (int, error) {
	g := p.Graph()
	node := g.Add(stategraph.Frame, sf.Method.Id, int64(depth), true)
	g.Node(node).Prims = []int32{int32(sf.PC)}
	return node, nil
}
