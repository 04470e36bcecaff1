package vm

import (
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// FieldDecl declares a field for DefineClass. Slots are assigned in declaration order.
type FieldDecl struct {
	Name        string
	Type        FieldType
	Annotations []string
}

// Snapshot is an in-memory State.
//
// It is not safe for concurrent use.
type Snapshot struct {
	classes []*ClassInfo
	byName  map[string]*ClassInfo
	methods []*MethodInfo
	statics []*StaticArea
	objects map[int32]*ElementInfo
	threads []*ThreadInfo
	pinned  []int32
	nextRef int32
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		byName:  map[string]*ClassInfo{},
		objects: map[int32]*ElementInfo{},
	}
}

func layout(decls []FieldDecl) []*FieldInfo {
	fields := make([]*FieldInfo, 0, len(decls))
	slot := 0
	for _, d := range decls {
		fields = append(fields, &FieldInfo{Name: d.Name, Type: d.Type, Slot: slot, Annotations: d.Annotations})
		slot += d.Type.Slots()
	}
	return fields
}

// DefineClass loads a class with the provided instance and static fields.
func (s *Snapshot) DefineClass(name string, fields []FieldDecl, statics []FieldDecl) *ClassInfo {
	return s.AddClass(&ClassInfo{
		Name:         name,
		Fields:       layout(fields),
		StaticFields: layout(statics),
	})
}

// DefineArrayClass loads an array class with the provided element type.
func (s *Snapshot) DefineArrayClass(name string, elem FieldType) *ClassInfo {
	return s.AddClass(&ClassInfo{Name: name, IsArray: true, ElementType: elem})
}

// AddClass loads a class with an explicit slot layout and assigns its id.
func (s *Snapshot) AddClass(cls *ClassInfo) *ClassInfo {
	cls.Id = len(s.classes)
	s.classes = append(s.classes, cls)
	s.byName[cls.Name] = cls
	s.statics = append(s.statics, &StaticArea{Class: cls, Slots: make([]int32, cls.NumStaticSlots())})
	return cls
}

// Class returns the loaded class with the provided name.
func (s *Snapshot) Class(name string) (*ClassInfo, error) {
	cls, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownClass, name)
	}
	return cls, nil
}

// DefineMethod loads a method of cls and assigns its id.
func (s *Snapshot) DefineMethod(cls *ClassInfo, name string) *MethodInfo {
	m := &MethodInfo{Id: len(s.methods), Name: name, Class: cls}
	s.methods = append(s.methods, m)
	return m
}

// NewObject allocates an instance of cls with the next free reference.
//
// Reference slots are initialized to NullRef.
func (s *Snapshot) NewObject(cls *ClassInfo) *ElementInfo {
	for s.objects[s.nextRef] != nil {
		s.nextRef++
	}
	return s.NewObjectAt(s.nextRef, cls)
}

// NewObjectAt allocates an instance of cls with the provided reference.
func (s *Snapshot) NewObjectAt(ref int32, cls *ClassInfo) *ElementInfo {
	ei := &ElementInfo{Ref: ref, Class: cls, Slots: make([]int32, cls.NumSlots())}
	for _, f := range cls.Fields {
		if f.Type.IsReference() {
			ei.Slots[f.Slot] = NullRef
		}
	}
	s.objects[ref] = ei
	return ei
}

// NewArray allocates an array of cls with the next free reference.
func (s *Snapshot) NewArray(cls *ClassInfo, length int) *ElementInfo {
	for s.objects[s.nextRef] != nil {
		s.nextRef++
	}
	return s.NewArrayAt(s.nextRef, cls, length)
}

// NewArrayAt allocates an array of cls with the provided reference.
func (s *Snapshot) NewArrayAt(ref int32, cls *ClassInfo, length int) *ElementInfo {
	ei := &ElementInfo{Ref: ref, Class: cls, Slots: make([]int32, length*cls.ElementType.Slots())}
	if cls.ElementType.IsReference() {
		for i := range ei.Slots {
			ei.Slots[i] = NullRef
		}
	}
	s.objects[ref] = ei
	return ei
}

func fieldNamed(fields []*FieldInfo, name string) *FieldInfo {
	for _, f := range fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func setValue(slots []int32, f *FieldInfo, v int64) {
	if f.Type.Slots() == 2 {
		slots[f.Slot] = int32(v >> 32)
		slots[f.Slot+1] = int32(v)
		return
	}
	slots[f.Slot] = int32(v)
}

// SetField stores v into the named field of ei. Two slot fields store the high word first.
//
// Panics if the field does not exist.
func (s *Snapshot) SetField(ei *ElementInfo, name string, v int64) {
	f := fieldNamed(ei.Class.Fields, name)
	if f == nil {
		panic(fmt.Sprintf("vm: class %v has no field %v", ei.Class.Name, name))
	}
	setValue(ei.Slots, f, v)
}

// SetDouble stores the bits of v into the named field of ei.
func (s *Snapshot) SetDouble(ei *ElementInfo, name string, v float64) {
	s.SetField(ei, name, int64(math.Float64bits(v)))
}

// SetStatic stores v into the named static field of cls.
//
// Panics if the field does not exist.
func (s *Snapshot) SetStatic(cls *ClassInfo, name string, v int64) {
	f := fieldNamed(cls.StaticFields, name)
	if f == nil {
		panic(fmt.Sprintf("vm: class %v has no static field %v", cls.Name, name))
	}
	setValue(s.statics[cls.Id].Slots, f, v)
}

// AddThread starts a thread represented by the heap object obj.
func (s *Snapshot) AddThread(obj int32, status ThreadStatus) *ThreadInfo {
	ti := &ThreadInfo{Id: len(s.threads), Status: status, Object: obj}
	s.threads = append(s.threads, ti)
	return ti
}

// PushFrame pushes a new frame for m on top of the stack of ti.
func (s *Snapshot) PushFrame(ti *ThreadInfo, m *MethodInfo, pc int) *StackFrame {
	sf := &StackFrame{
		Method:      m,
		PC:          pc,
		LocalRefs:   bitset.New(0),
		OperandRefs: bitset.New(0),
	}
	ti.Frames = append(ti.Frames, sf)
	return sf
}

// SetLocal stores v into local i, growing the locals if needed.
func (sf *StackFrame) SetLocal(i int, v int32, isRef bool) {
	for len(sf.Locals) <= i {
		sf.Locals = append(sf.Locals, 0)
	}
	sf.Locals[i] = v
	sf.LocalRefs.SetTo(uint(i), isRef)
}

// Push pushes v on the operand stack.
func (sf *StackFrame) Push(v int32, isRef bool) {
	sf.OperandRefs.SetTo(uint(len(sf.Operands)), isRef)
	sf.Operands = append(sf.Operands, v)
}

// Pin keeps ref alive independently of threads and statics.
func (s *Snapshot) Pin(ref int32) {
	if !slices.Contains(s.pinned, ref) {
		s.pinned = append(s.pinned, ref)
	}
}

func (s *Snapshot) Threads() []*ThreadInfo {
	return s.threads
}

func (s *Snapshot) Statics() []*StaticArea {
	return s.statics
}

func (s *Snapshot) Heap() Heap {
	return s
}

func (s *Snapshot) Classes() []*ClassInfo {
	return s.classes
}

// Methods returns the loaded methods ordered by method id.
func (s *Snapshot) Methods() []*MethodInfo {
	return s.methods
}

func (s *Snapshot) Get(ref int32) *ElementInfo {
	return s.objects[ref]
}

func (s *Snapshot) IsAlive(ref int32) bool {
	return s.objects[ref] != nil
}

func (s *Snapshot) Pinned() []int32 {
	return s.pinned
}

// NumObjects returns the number of live objects.
func (s *Snapshot) NumObjects() int {
	return len(s.objects)
}

// Refs returns the references of all live objects in ascending order.
func (s *Snapshot) Refs() []int32 {
	refs := maps.Keys(s.objects)
	slices.Sort(refs)
	return refs
}

func (s *Snapshot) Collect(live func(ref int32) bool) int {
	removed := 0
	for ref := range s.objects {
		if !live(ref) {
			delete(s.objects, ref)
			removed++
		}
	}
	return removed
}
