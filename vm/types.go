// Package vm describes the live runtime state the checker abstracts.
//
// The interpreter owns the live state. This package only defines what the fingerprinting
// pipeline reads from it, together with an in-memory Snapshot used by tools and tests.
package vm

import (
	"errors"

	"github.com/bits-and-blooms/bitset"
)

// NullRef is the reference value stored in a slot that refers to no object.
const NullRef int32 = -1

var ErrUnknownClass = errors.New("vm: unknown class")

// FieldType classifies the content of a field or array element.
type FieldType int

const (
	Int FieldType = iota
	Long
	Float
	Double
	Boolean
	Byte
	Char
	Short
	Reference
)

// Slots returns the number of storage slots a value of the type occupies.
func (t FieldType) Slots() int {
	if t == Long || t == Double {
		return 2
	}
	return 1
}

func (t FieldType) IsReference() bool {
	return t == Reference
}

var fieldTypeNames = []string{"int", "long", "float", "double", "boolean", "byte", "char", "short", "reference"}

func (t FieldType) String() string {
	if int(t) < 0 || int(t) >= len(fieldTypeNames) {
		return "unknown"
	}
	return fieldTypeNames[t]
}

// ParseFieldType returns the type with the provided name.
func ParseFieldType(name string) (FieldType, bool) {
	for i, n := range fieldTypeNames {
		if n == name {
			return FieldType(i), true
		}
	}
	return 0, false
}

// FieldInfo describes one field of a class.
//
// Slot is the index of the first storage slot of the field.
type FieldInfo struct {
	Name        string
	Type        FieldType
	Slot        int
	Annotations []string
}

func (f *FieldInfo) HasAnnotation(name string) bool {
	for _, a := range f.Annotations {
		if a == name {
			return true
		}
	}
	return false
}

// ClassInfo describes a loaded class.
//
// Id is a small integer assigned when the class is loaded. It is stable for the lifetime of
// the checker and is used to key all per-class caches.
type ClassInfo struct {
	Id           int
	Name         string
	Fields       []*FieldInfo
	StaticFields []*FieldInfo

	// ElementType is the component type of array classes.
	IsArray     bool
	ElementType FieldType
}

// NumSlots returns the number of instance storage slots.
func (c *ClassInfo) NumSlots() int {
	return slotsOf(c.Fields)
}

// NumStaticSlots returns the number of static storage slots.
func (c *ClassInfo) NumStaticSlots() int {
	return slotsOf(c.StaticFields)
}

func slotsOf(fields []*FieldInfo) int {
	n := 0
	for _, f := range fields {
		if end := f.Slot + f.Type.Slots(); end > n {
			n = end
		}
	}
	return n
}

// MethodInfo describes a method. Id is assigned when the method is loaded.
type MethodInfo struct {
	Id    int
	Name  string
	Class *ClassInfo
}

// FullName returns the name in the form "Class.method".
func (m *MethodInfo) FullName() string {
	if m.Class == nil {
		return m.Name
	}
	return m.Class.Name + "." + m.Name
}

// ElementInfo is a live heap object.
//
// Ref is the object's live reference. It is only meaningful within one snapshot.
// For arrays Slots holds the elements, each occupying ElementType.Slots() slots.
type ElementInfo struct {
	Ref   int32
	Class *ClassInfo
	Slots []int32
}

// IsRefSlot reports whether slot i holds a reference.
func (ei *ElementInfo) IsRefSlot(i int) bool {
	if ei.Class.IsArray {
		return ei.Class.ElementType.IsReference()
	}
	for _, f := range ei.Class.Fields {
		if f.Slot == i {
			return f.Type.IsReference()
		}
	}
	return false
}

// ArrayLength returns the number of elements of an array object.
func (ei *ElementInfo) ArrayLength() int {
	return len(ei.Slots) / ei.Class.ElementType.Slots()
}

// ThreadStatus is the scheduling status of a thread.
type ThreadStatus int

const (
	New ThreadStatus = iota
	Running
	Blocked
	Waiting
	TimeoutWaiting
	TimedOut
	Sleeping
	WokeUp
	Terminated
)

var threadStatusNames = []string{
	"new", "running", "blocked", "waiting", "timeout-waiting", "timed-out", "sleeping", "woke-up", "terminated",
}

func (s ThreadStatus) String() string {
	if int(s) < 0 || int(s) >= len(threadStatusNames) {
		return "unknown"
	}
	return threadStatusNames[s]
}

// StackFrame is one activation record of a thread.
//
// LocalRefs and OperandRefs mark the entries of Locals and Operands that hold references.
type StackFrame struct {
	Method      *MethodInfo
	PC          int
	Locals      []int32
	LocalRefs   *bitset.BitSet
	Operands    []int32
	OperandRefs *bitset.BitSet
}

// ThreadInfo is a live thread of the target program.
//
// Object is the reference of the heap object representing the thread.
// Frames are ordered from the bottom of the stack to the top.
type ThreadInfo struct {
	Id     int
	Status ThreadStatus
	Object int32
	Frames []*StackFrame
}

func (ti *ThreadInfo) IsAlive() bool {
	return ti.Status != Terminated
}

// StaticArea holds the static slots of one class.
type StaticArea struct {
	Class *ClassInfo
	Slots []int32
}

// Heap gives access to the live objects.
type Heap interface {
	// Get returns the live object with the provided reference, or nil if there is none.
	Get(ref int32) *ElementInfo

	// IsAlive reports whether the reference denotes a live object.
	IsAlive(ref int32) bool

	// Pinned returns the references kept alive by the runtime independently of threads and statics.
	Pinned() []int32
}

// Collector is implemented by heaps that can drop objects found unreachable while fingerprinting.
type Collector interface {
	// Collect removes every object for which live returns false. Returns the number removed.
	Collect(live func(ref int32) bool) int
}

// State is the live state of the target program at one point of the search.
type State interface {
	// Threads returns the threads ordered by id.
	Threads() []*ThreadInfo

	// Statics returns the static areas ordered by class id.
	Statics() []*StaticArea

	Heap() Heap

	// Classes returns the loaded classes ordered by class id.
	Classes() []*ClassInfo
}
