package serialize

import (
	"testing"

	"vmcheck/abstraction"
	"vmcheck/config"
	"vmcheck/fields"
	"vmcheck/stategraph"
	"vmcheck/vector"
	"vmcheck/vm"
)

func newMasks(t testing.TB, cfg config.Config) *fields.MaskCache {
	t.Helper()
	filter, err := fields.NewFilter(cfg.Filter)
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	return fields.NewMaskCache(filter, fields.NewCache())
}

func newGraphSerializer(t testing.TB, cfg config.Config) *GraphSerializer {
	t.Helper()
	masks := newMasks(t, cfg)
	conf := abstraction.NewCachedConfiguration(abstraction.NewDefaultConfiguration(masks, nil))
	if err := conf.Attach(cfg); err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	builder := abstraction.NewBuilder(conf, abstraction.NewDefaultObject(masks), nil)
	linearizer := stategraph.NewBFS(stategraph.Structural{Depth: cfg.HeuristicDepth}, nil)
	return NewGraphSerializer(builder, linearizer, nil, vector.Doubling{}, nil)
}

type refs struct {
	set, x, y int32
}

// newState creates a set holding two linked nodes, referenced from a local of a thread.
// The refs of the objects are provided, and swap exchanges the slots of the set.
func newState(r refs, swap bool, yValue int64) *vm.Snapshot {
	s := vm.NewSnapshot()
	thread := s.DefineClass("Thread", nil, nil)
	node := s.DefineClass("Node", []vm.FieldDecl{
		{Name: "next", Type: vm.Reference},
		{Name: "value", Type: vm.Long},
	}, nil)
	set := s.DefineClass("Set", []vm.FieldDecl{
		{Name: "a", Type: vm.Reference},
		{Name: "b", Type: vm.Reference},
	}, []vm.FieldDecl{{Name: "size", Type: vm.Int}})
	run := s.DefineMethod(thread, "run")

	so := s.NewObjectAt(r.set, set)
	x := s.NewObjectAt(r.x, node)
	y := s.NewObjectAt(r.y, node)
	s.SetField(x, "value", 1)
	s.SetField(y, "value", yValue)
	s.SetField(x, "next", int64(y.Ref))
	s.SetField(y, "next", int64(x.Ref))
	if swap {
		s.SetField(so, "a", int64(y.Ref))
		s.SetField(so, "b", int64(x.Ref))
	} else {
		s.SetField(so, "a", int64(x.Ref))
		s.SetField(so, "b", int64(y.Ref))
	}
	s.SetStatic(set, "size", 2)
	s.Pin(so.Ref)

	to := s.NewObjectAt(100, thread)
	ti := s.AddThread(to.Ref, vm.Running)
	s.PushFrame(ti, run, 4).SetLocal(0, so.Ref, true)
	return s
}

type record struct {
	tag   int32
	refs  []int32
	prims []int32
}

func decode(fp []int32) []record {
	out := []record{}
	for i := 0; i < len(fp); {
		r := record{tag: fp[i]}
		n := int(fp[i+1])
		r.refs = fp[i+2 : i+2+n]
		i += 2 + n
		m := int(fp[i])
		r.prims = fp[i+1 : i+1+m]
		i += 1 + m
		out = append(out, r)
	}
	return out
}

var isomorphismTests = []struct {
	name      string
	unordered bool
	a, b      refs
	swapB     bool
	equal     bool
}{
	{"renumbered", false, refs{0, 1, 2}, refs{10, 5, 3}, false, true},
	{"swapped ordered", false, refs{0, 1, 2}, refs{0, 1, 2}, true, false},
	{"swapped unordered", true, refs{0, 1, 2}, refs{10, 5, 3}, true, true},
}

func TestGraphSerializerIsomorphism(t *testing.T) {
	for _, test := range isomorphismTests {
		cfg := config.Default()
		if test.unordered {
			cfg.Abstractor.Objects["Set"] = abstraction.UnorderedName
		}
		s := newGraphSerializer(t, cfg)
		fa, err := s.Serialize(newState(test.a, false, 2))
		if err != nil {
			t.Fatalf("Did not expect to receive an error. Got %v", err)
		}
		fb, err := s.Serialize(newState(test.b, test.swapB, 2))
		if err != nil {
			t.Fatalf("Did not expect to receive an error. Got %v", err)
		}
		if fa.Equal(fb) != test.equal {
			t.Errorf("%v: unexpected fingerprint equality. Got %v. Expected: %v\n%v\n%v", test.name, fa.Equal(fb), test.equal, fa, fb)
		}
	}
}

func TestGraphSerializerDistinguishesValues(t *testing.T) {
	s := newGraphSerializer(t, config.Default())
	fa, _ := s.Serialize(newState(refs{0, 1, 2}, false, 2))
	fb, _ := s.Serialize(newState(refs{0, 1, 2}, false, 3))
	if fa.Equal(fb) {
		t.Errorf("Expected different values to give different fingerprints")
	}
}

func TestGraphSerializerUnorderedRefsSorted(t *testing.T) {
	cfg := config.Default()
	cfg.Abstractor.Objects["Set"] = abstraction.UnorderedName
	s := newGraphSerializer(t, cfg)
	fp, err := s.Serialize(newState(refs{0, 1, 2}, true, 2))
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	found := false
	for _, r := range decode(fp.Ints()) {
		if r.tag>>24 != int32(stategraph.InstanceObject) || len(r.refs) != 2 || len(r.prims) != 0 {
			continue
		}
		found = true
		if r.refs[0] >= r.refs[1] {
			t.Errorf("Expected the successors of the set to be sorted. Got %v", r.refs)
		}
	}
	if !found {
		t.Errorf("Did not find the set in %v", fp)
	}
}

func TestSelfReference(t *testing.T) {
	s := vm.NewSnapshot()
	node := s.DefineClass("Node", []vm.FieldDecl{{Name: "self", Type: vm.Reference}}, nil)
	o := s.NewObjectAt(7, node)
	s.SetField(o, "self", int64(o.Ref))
	s.Pin(o.Ref)

	fp, err := newGraphSerializer(t, config.Default()).Serialize(s)
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	records := decode(fp.Ints())
	instance := stategraph.MakeTag(stategraph.InstanceObject, node.Id)
	found := false
	for id, r := range records {
		if r.tag != instance {
			continue
		}
		found = true
		if len(r.refs) != 1 || r.refs[0] != int32(id) {
			t.Errorf("Expected the object to list its own id %v. Got %v", id, r.refs)
		}
	}
	if !found {
		t.Errorf("Did not find the object in %v", fp)
	}
}

func TestEmitRequiresLinearization(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Expected emitting an unlinearized graph to panic")
		}
	}()
	g := stategraph.New()
	g.SetRoot(g.Add(stategraph.Root, 0, 0, true))
	Emit(g, vector.NewIntVector(0, nil))
}

func TestFilteringSerializer(t *testing.T) {
	cfg := config.Default()
	s := NewFilteringSerializer(newMasks(t, cfg), false, nil, nil)
	fa, err := s.Serialize(newState(refs{0, 1, 2}, false, 2))
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	fb, _ := s.Serialize(newState(refs{10, 5, 3}, false, 2))
	if !fa.Equal(fb) {
		t.Errorf("Expected renumbered states to give equal fingerprints.\n%v\n%v", fa, fb)
	}
	fc, _ := s.Serialize(newState(refs{0, 1, 2}, false, 3))
	if fa.Equal(fc) {
		t.Errorf("Expected different values to give different fingerprints")
	}
	for _, v := range fa.Ints() {
		if v == 100 {
			t.Errorf("Expected no live reference in the fingerprint. Got %v", fa)
		}
	}
}

func TestFilteringSerializerHonorsMasks(t *testing.T) {
	cfg := config.Default()
	cfg.Filter.Exclude = []string{"Node.value"}
	s := NewFilteringSerializer(newMasks(t, cfg), false, nil, nil)
	fa, _ := s.Serialize(newState(refs{0, 1, 2}, false, 2))
	fb, _ := s.Serialize(newState(refs{0, 1, 2}, false, 3))
	if !fa.Equal(fb) {
		t.Errorf("Expected the excluded field to be ignored.\n%v\n%v", fa, fb)
	}
}

func TestFilteringSerializerCollects(t *testing.T) {
	state := newState(refs{0, 1, 2}, false, 2)
	node, _ := state.Class("Node")
	garbage := state.NewObject(node)
	before := state.NumObjects()

	s := NewFilteringSerializer(newMasks(t, config.Default()), true, nil, nil)
	if _, err := s.Serialize(state); err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	if state.IsAlive(garbage.Ref) {
		t.Errorf("Expected the unreachable object to be collected")
	}
	if state.NumObjects() != before-1 {
		t.Errorf("Unexpected number of live objects. Got %v. Expected: %v", state.NumObjects(), before-1)
	}
}

func TestFilteringSerializerKeepsObjectsBehindExcludedFields(t *testing.T) {
	state := vm.NewSnapshot()
	holder := state.DefineClass("Holder", []vm.FieldDecl{{Name: "cache", Type: vm.Reference}}, nil)
	item := state.DefineClass("Item", []vm.FieldDecl{{Name: "value", Type: vm.Int}}, nil)
	h := state.NewObject(holder)
	i := state.NewObject(item)
	state.SetField(h, "cache", int64(i.Ref))
	state.Pin(h.Ref)

	cfg := config.Default()
	cfg.Filter.Exclude = []string{"Holder.cache"}
	s := NewFilteringSerializer(newMasks(t, cfg), true, nil, nil)
	if _, err := s.Serialize(state); err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	if !state.IsAlive(i.Ref) {
		t.Errorf("Expected the object referenced by an excluded field to stay alive")
	}
	if state.NumObjects() != 2 {
		t.Errorf("Unexpected number of live objects. Got %v. Expected: 2", state.NumObjects())
	}
}

func newList(n int) *vm.Snapshot {
	s := vm.NewSnapshot()
	node := s.DefineClass("Node", []vm.FieldDecl{
		{Name: "next", Type: vm.Reference},
		{Name: "value", Type: vm.Int},
	}, nil)
	var prev *vm.ElementInfo
	for i := 0; i < n; i++ {
		o := s.NewObject(node)
		s.SetField(o, "value", int64(i))
		if prev != nil {
			s.SetField(prev, "next", int64(o.Ref))
		} else {
			s.Pin(o.Ref)
		}
		prev = o
	}
	return s
}

func BenchmarkGraphSerializer(b *testing.B) {
	state := newList(1000)
	s := newGraphSerializer(b, config.Default())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Serialize(state); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFilteringSerializer(b *testing.B) {
	state := newList(1000)
	s := NewFilteringSerializer(newMasks(b, config.Default()), false, nil, nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Serialize(state); err != nil {
			b.Fatal(err)
		}
	}
}
