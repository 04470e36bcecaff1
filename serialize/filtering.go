package serialize

import (
	"fmt"
	"log/slog"

	"github.com/bits-and-blooms/bitset"

	"vmcheck/fields"
	"vmcheck/stategraph"
	"vmcheck/vector"
	"vmcheck/vm"
)

// Entry markers of locals and operands.
const (
	primitiveEntry int32 = 0
	referenceEntry int32 = 1
)

// FilteringSerializer fingerprints a state without building a state graph.
//
// It writes the statics, then the threads with their stacks, then the pinned objects, and
// finally every reached heap object in the order it was first reached. Live references are
// replaced by dense ids in that same order, through a mapping that is reset on every call.
// Only the field masks are honored: configured abstractors, transforms and the node
// ordering heuristic are not.
//
// When collect is set and the heap implements vm.Collector, objects that cannot be reached
// through any reference slot are removed from the heap after the fingerprint is complete.
// Reference fields excluded from the fingerprint still keep their targets alive.
type FilteringSerializer struct {
	masks   *fields.MaskCache
	collect bool
	out     *vector.IntVector
	remap   *vector.IntVector
	reached []int32
	live    *bitset.BitSet
	pending []int32
	logger  *slog.Logger
}

func NewFilteringSerializer(masks *fields.MaskCache, collect bool, growth vector.GrowthStrategy, logger *slog.Logger) *FilteringSerializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilteringSerializer{
		masks:   masks,
		collect: collect,
		out:     vector.NewIntVector(256, growth),
		remap:   vector.NewIntVector(256, growth),
		live:    bitset.New(256),
		logger:  logger,
	}
}

func (s *FilteringSerializer) Serialize(state vm.State) (*vector.IntVector, error) {
	s.out.Clear()
	s.remap.Clear()
	s.reached = s.reached[:0]
	heap := state.Heap()

	statics := state.Statics()
	s.out.AddInt(len(statics))
	for _, area := range statics {
		m, err := s.masks.Static(area.Class)
		if err != nil {
			return nil, fmt.Errorf("serializing statics of %v: %w", area.Class.Name, err)
		}
		s.out.Add(stategraph.MakeTag(stategraph.ClassObject, area.Class.Id))
		s.writeSlots(heap, area.Slots, m, false)
	}

	threads := state.Threads()
	s.out.AddInt(len(threads))
	for _, ti := range threads {
		s.writeThread(heap, ti)
	}

	pinned := heap.Pinned()
	s.out.AddInt(len(pinned))
	for _, ref := range pinned {
		s.out.AddInt(s.dense(heap, ref))
	}

	// reached grows while it is walked
	for i := 0; i < len(s.reached); i++ {
		ei := heap.Get(s.reached[i])
		m, err := s.masks.Instance(ei.Class)
		if err != nil {
			return nil, fmt.Errorf("serializing object of class %v: %w", ei.Class.Name, err)
		}
		s.out.Add(stategraph.MakeTag(stategraph.InstanceObject, ei.Class.Id))
		s.writeSlots(heap, ei.Slots, m, ei.Class.IsArray && ei.Class.ElementType.IsReference())
	}

	if c, ok := heap.(vm.Collector); ok && s.collect {
		if err := s.markLive(state); err != nil {
			return nil, err
		}
		removed := c.Collect(s.isLive)
		if removed > 0 {
			s.logger.Debug("collected unreachable objects", "removed", removed)
		}
	}
	s.logger.Debug("serialized state", "objects", len(s.reached), "length", s.out.Size())
	return s.out.Clone(), nil
}

// dense returns the dense id of ref, assigning the next one on first use, or
// stategraph.NullID for null and dead references.
func (s *FilteringSerializer) dense(heap vm.Heap, ref int32) int {
	if ref < 0 || !heap.IsAlive(ref) {
		return stategraph.NullID
	}
	if int(ref) < s.remap.Size() {
		if id := s.remap.Get(int(ref)); id != 0 {
			return int(id) - 1
		}
	}
	id := len(s.reached)
	s.reached = append(s.reached, ref)
	s.remap.Set(int(ref), int32(id+1))
	return id
}

// markLive marks every object reachable from the statics, the threads and the pinned
// objects through any reference slot, included in the fingerprint or not.
func (s *FilteringSerializer) markLive(state vm.State) error {
	heap := state.Heap()
	s.live.ClearAll()
	s.pending = s.pending[:0]

	for _, area := range state.Statics() {
		meta, err := s.masks.Meta().GetStatic(area.Class)
		if err != nil {
			return fmt.Errorf("marking statics of %v: %w", area.Class.Name, err)
		}
		for i, v := range area.Slots {
			if meta.IsRef(i) {
				s.markRef(heap, v)
			}
		}
	}
	for _, ti := range state.Threads() {
		s.markRef(heap, ti.Object)
		for _, sf := range ti.Frames {
			s.markEntries(heap, sf.Locals, sf.LocalRefs)
			s.markEntries(heap, sf.Operands, sf.OperandRefs)
		}
	}
	for _, ref := range heap.Pinned() {
		s.markRef(heap, ref)
	}

	for len(s.pending) > 0 {
		ref := s.pending[len(s.pending)-1]
		s.pending = s.pending[:len(s.pending)-1]
		ei := heap.Get(ref)
		if ei.Class.IsArray {
			if ei.Class.ElementType.IsReference() {
				for _, v := range ei.Slots {
					s.markRef(heap, v)
				}
			}
			continue
		}
		meta, err := s.masks.Meta().Get(ei.Class)
		if err != nil {
			return fmt.Errorf("marking object of class %v: %w", ei.Class.Name, err)
		}
		for i, v := range ei.Slots {
			if meta.IsRef(i) {
				s.markRef(heap, v)
			}
		}
	}
	return nil
}

func (s *FilteringSerializer) markRef(heap vm.Heap, ref int32) {
	if ref < 0 || s.live.Test(uint(ref)) || !heap.IsAlive(ref) {
		return
	}
	s.live.Set(uint(ref))
	s.pending = append(s.pending, ref)
}

func (s *FilteringSerializer) markEntries(heap vm.Heap, values []int32, refs *bitset.BitSet) {
	for i, v := range values {
		if refs != nil && refs.Test(uint(i)) {
			s.markRef(heap, v)
		}
	}
}

func (s *FilteringSerializer) isLive(ref int32) bool {
	return ref >= 0 && s.live.Test(uint(ref))
}

// writeSlots writes the included reference slots as a counted list of dense ids, then the
// included primitive slots as a counted list.
func (s *FilteringSerializer) writeSlots(heap vm.Heap, slots []int32, m *fields.Masks, allRefs bool) {
	if m == nil {
		panic("serialize: nil field mask")
	}
	isRef := func(i int) bool {
		return allRefs || (!m.All && m.Refs.Test(uint(i)))
	}

	count := 0
	for i := range slots {
		if isRef(i) {
			count++
		}
	}
	s.out.AddInt(count)
	for i, v := range slots {
		if isRef(i) {
			s.out.AddInt(s.dense(heap, v))
		}
	}

	count = 0
	for i := range slots {
		if !isRef(i) && m.Includes(i) {
			count++
		}
	}
	s.out.AddInt(count)
	for i, v := range slots {
		if !isRef(i) && m.Includes(i) {
			s.out.Add(v)
		}
	}
}

func (s *FilteringSerializer) writeThread(heap vm.Heap, ti *vm.ThreadInfo) {
	class := 0
	if ei := heap.Get(ti.Object); ti.Object != vm.NullRef && ei != nil {
		class = ei.Class.Id
	}
	s.out.Add(stategraph.MakeTag(stategraph.ThreadObject, class))
	s.out.AddInt(s.dense(heap, ti.Object))
	s.out.AddInt(int(ti.Status))
	s.out.AddInt(len(ti.Frames))
	for _, sf := range ti.Frames {
		s.out.Add(stategraph.MakeTag(stategraph.Frame, sf.Method.Id))
		s.out.AddInt(sf.PC)
		s.writeEntries(heap, sf.Locals, sf.LocalRefs)
		s.writeEntries(heap, sf.Operands, sf.OperandRefs)
	}
}

// writeEntries writes a counted list of locals or operands, each preceded by a marker
// telling primitives from references.
func (s *FilteringSerializer) writeEntries(heap vm.Heap, values []int32, refs *bitset.BitSet) {
	s.out.AddInt(len(values))
	for i, v := range values {
		if refs != nil && refs.Test(uint(i)) {
			s.out.AddAll(referenceEntry, int32(s.dense(heap, v)))
			continue
		}
		s.out.AddAll(primitiveEntry, v)
	}
}
