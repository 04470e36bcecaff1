package fields

import (
	"github.com/bits-and-blooms/bitset"

	"vmcheck/config"
	"vmcheck/vector"
	"vmcheck/vm"
)

// Annotations recognized by the default filter.
const (
	FilterAnnotation  = "FilterField"
	IncludeAnnotation = "IncludeField"
)

// Ammendment revises the decision to include a field in the fingerprint.
//
// It receives the decision of the previous ammendments and returns the new decision.
type Ammendment func(cls *vm.ClassInfo, f *vm.FieldInfo, include bool) bool

// Filter decides which fields take part in a fingerprint by applying its ammendments in
// registration order, starting from including every field.
type Filter struct {
	ammendments []Ammendment
}

// NewFilter creates a filter honoring the FilterField and IncludeField annotations followed
// by the exclude and include hints of cfg.
func NewFilter(cfg config.FilterConfig) (*Filter, error) {
	f := &Filter{}
	f.Add(annotationAmmendment)

	exclude, err := hintSet(cfg.Exclude)
	if err != nil {
		return nil, err
	}
	include, err := hintSet(cfg.Include)
	if err != nil {
		return nil, err
	}
	if len(exclude) > 0 {
		f.Add(func(cls *vm.ClassInfo, fi *vm.FieldInfo, in bool) bool {
			if exclude[cls.Name+"."+fi.Name] {
				return false
			}
			return in
		})
	}
	if len(include) > 0 {
		f.Add(func(cls *vm.ClassInfo, fi *vm.FieldInfo, in bool) bool {
			if include[cls.Name+"."+fi.Name] {
				return true
			}
			return in
		})
	}
	return f, nil
}

func hintSet(hints []string) (map[string]bool, error) {
	set := map[string]bool{}
	for _, hint := range hints {
		class, field, err := config.SplitFieldHint(hint)
		if err != nil {
			return nil, err
		}
		set[class+"."+field] = true
	}
	return set, nil
}

func annotationAmmendment(_ *vm.ClassInfo, f *vm.FieldInfo, include bool) bool {
	if f.HasAnnotation(IncludeAnnotation) {
		return true
	}
	if f.HasAnnotation(FilterAnnotation) {
		return false
	}
	return include
}

// Add registers an ammendment after the existing ones.
func (f *Filter) Add(a Ammendment) {
	f.ammendments = append(f.ammendments, a)
}

// Includes reports whether fi of cls takes part in the fingerprint.
func (f *Filter) Includes(cls *vm.ClassInfo, fi *vm.FieldInfo) bool {
	include := true
	for _, a := range f.ammendments {
		include = a(cls, fi, include)
	}
	return include
}

// Masks selects the slots of a class that take part in a fingerprint.
//
// Prims and Refs are disjoint: Refs holds the included reference slots and Prims every
// other included slot, including both slots of two slot fields.
// Array classes are never filtered and have All set instead.
type Masks struct {
	All   bool
	Prims *bitset.BitSet
	Refs  *bitset.BitSet
}

// Includes reports whether slot i takes part in the fingerprint.
func (m *Masks) Includes(i int) bool {
	return m.All || m.Prims.Test(uint(i)) || m.Refs.Test(uint(i))
}

// MaskCache holds the masks of each class, keyed by class id.
//
// It is filled lazily and is not safe for concurrent use.
type MaskCache struct {
	filter   *Filter
	meta     *Cache
	instance *vector.ObjVector[*Masks]
	static   *vector.ObjVector[*Masks]
}

func NewMaskCache(filter *Filter, meta *Cache) *MaskCache {
	return &MaskCache{
		filter:   filter,
		meta:     meta,
		instance: vector.NewObjVector[*Masks](64, nil),
		static:   vector.NewObjVector[*Masks](64, nil),
	}
}

// Filter returns the filter the masks are built from.
func (c *MaskCache) Filter() *Filter {
	return c.filter
}

// Meta returns the slot mapping cache the masks are built from.
func (c *MaskCache) Meta() *Cache {
	return c.meta
}

// Instance returns the masks of the instance slots of cls.
func (c *MaskCache) Instance(cls *vm.ClassInfo) (*Masks, error) {
	if m := c.instance.Get(cls.Id); m != nil {
		return m, nil
	}
	if cls.IsArray {
		m := &Masks{All: true}
		c.instance.Set(cls.Id, m)
		return m, nil
	}
	meta, err := c.meta.Get(cls)
	if err != nil {
		return nil, err
	}
	m := c.build(cls, meta)
	c.instance.Set(cls.Id, m)
	return m, nil
}

// Static returns the masks of the static slots of cls.
func (c *MaskCache) Static(cls *vm.ClassInfo) (*Masks, error) {
	if m := c.static.Get(cls.Id); m != nil {
		return m, nil
	}
	meta, err := c.meta.GetStatic(cls)
	if err != nil {
		return nil, err
	}
	m := c.build(cls, meta)
	c.static.Set(cls.Id, m)
	return m, nil
}

func (c *MaskCache) build(cls *vm.ClassInfo, meta *Meta) *Masks {
	n := uint(meta.NumSlots())
	m := &Masks{Prims: bitset.New(n), Refs: bitset.New(n)}
	for i := 0; i < meta.NumSlots(); i++ {
		f := meta.Field(i)
		if f == nil || !c.filter.Includes(cls, f) {
			continue
		}
		if f.Type.IsReference() {
			m.Refs.Set(uint(i))
			continue
		}
		for j := 0; j < f.Type.Slots(); j++ {
			m.Prims.Set(uint(i + j))
		}
	}
	return m
}
