// Package fields maps the storage slots of classes onto field descriptors and decides which
// slots take part in a fingerprint.
package fields

import (
	"fmt"
	"strconv"

	"github.com/bits-and-blooms/bitset"

	"vmcheck/config"
	"vmcheck/vector"
	"vmcheck/vm"
)

// Meta maps the storage slots of a class onto its fields.
//
// The second slot of a two slot field maps to nil. Meta is immutable once built.
type Meta struct {
	class *vm.ClassInfo
	slots []*vm.FieldInfo
	refs  *bitset.BitSet
}

// NewMeta builds the slot mapping of the instance fields of cls.
//
// Fails if two fields overlap or if a slot is not covered by any field.
func NewMeta(cls *vm.ClassInfo) (*Meta, error) {
	return newMeta(cls, cls.Fields, "fields")
}

// NewStaticMeta builds the slot mapping of the static fields of cls.
func NewStaticMeta(cls *vm.ClassInfo) (*Meta, error) {
	return newMeta(cls, cls.StaticFields, "statics")
}

func newMeta(cls *vm.ClassInfo, fields []*vm.FieldInfo, kind string) (*Meta, error) {
	n := 0
	for _, f := range fields {
		if f.Slot < 0 {
			return nil, layoutError(cls, kind, f.Name+" has a negative slot")
		}
		if end := f.Slot + f.Type.Slots(); end > n {
			n = end
		}
	}
	m := &Meta{
		class: cls,
		slots: make([]*vm.FieldInfo, n),
		refs:  bitset.New(uint(n)),
	}
	covered := bitset.New(uint(n))
	for _, f := range fields {
		for i := f.Slot; i < f.Slot+f.Type.Slots(); i++ {
			if covered.Test(uint(i)) {
				return nil, layoutError(cls, kind, "slot "+strconv.Itoa(i)+" is used by more than one field")
			}
			covered.Set(uint(i))
		}
		m.slots[f.Slot] = f
		if f.Type.IsReference() {
			m.refs.Set(uint(f.Slot))
		}
	}
	if covered.Count() != uint(n) {
		return nil, layoutError(cls, kind, "slots are not contiguous")
	}
	return m, nil
}

func layoutError(cls *vm.ClassInfo, kind, reason string) error {
	return &config.ConfigError{Key: kind, Value: cls.Name, Reason: reason}
}

func (m *Meta) Class() *vm.ClassInfo {
	return m.class
}

func (m *Meta) NumSlots() int {
	return len(m.slots)
}

// Field returns the field starting at slot i, or nil for the second slot of a two slot field.
func (m *Meta) Field(i int) *vm.FieldInfo {
	return m.slots[i]
}

// IsRef reports whether slot i holds a reference.
func (m *Meta) IsRef(i int) bool {
	return m.refs.Test(uint(i))
}

// Refs returns the reference slots. The bitset must not be modified.
func (m *Meta) Refs() *bitset.BitSet {
	return m.refs
}

func (m *Meta) String() string {
	return fmt.Sprintf("%v%v", m.class.Name, m.refs)
}

// Cache holds the Meta of each class, keyed by class id.
//
// It is filled lazily and is not safe for concurrent use.
type Cache struct {
	instance *vector.ObjVector[*Meta]
	static   *vector.ObjVector[*Meta]
}

func NewCache() *Cache {
	return &Cache{
		instance: vector.NewObjVector[*Meta](64, nil),
		static:   vector.NewObjVector[*Meta](64, nil),
	}
}

// Get returns the instance slot mapping of cls, building it on first use.
func (c *Cache) Get(cls *vm.ClassInfo) (*Meta, error) {
	if m := c.instance.Get(cls.Id); m != nil {
		return m, nil
	}
	m, err := NewMeta(cls)
	if err != nil {
		return nil, err
	}
	c.instance.Set(cls.Id, m)
	return m, nil
}

// GetStatic returns the static slot mapping of cls, building it on first use.
func (c *Cache) GetStatic(cls *vm.ClassInfo) (*Meta, error) {
	if m := c.static.Get(cls.Id); m != nil {
		return m, nil
	}
	m, err := NewStaticMeta(cls)
	if err != nil {
		return nil, err
	}
	c.static.Set(cls.Id, m)
	return m, nil
}
