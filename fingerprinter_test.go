package vmcheck

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vmcheck/abstraction"
	"vmcheck/config"
	"vmcheck/stategraph"
	"vmcheck/vm"
)

// newThreads creates two threads whose objects hold the provided values.
func newThreads(first, second int64) *vm.Snapshot {
	s := vm.NewSnapshot()
	worker := s.DefineClass("Worker", []vm.FieldDecl{{Name: "id", Type: vm.Int}}, nil)
	run := s.DefineMethod(worker, "run")
	for _, v := range []int64{first, second} {
		o := s.NewObject(worker)
		s.SetField(o, "id", v)
		ti := s.AddThread(o.Ref, vm.Running)
		s.PushFrame(ti, run, 0)
	}
	return s
}

func mustPrepare(t *testing.T, opts ...Option) *Fingerprinter {
	t.Helper()
	fp, err := PrepareFingerprinter(opts...)
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	return fp
}

func TestFingerprintDefault(t *testing.T) {
	fp := mustPrepare(t)
	a, err := fp.Fingerprint(newThreads(1, 2))
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	b, _ := fp.Fingerprint(newThreads(1, 2))
	c, _ := fp.Fingerprint(newThreads(2, 1))
	if !a.Equal(b) {
		t.Errorf("Expected equal states to give equal fingerprints.\n%v\n%v", a, b)
	}
	if a.Equal(c) {
		t.Errorf("Expected thread order to matter by default")
	}
}

var strategyTests = []struct {
	serializer string
	linearizer string
	heuristic  string
}{
	{"graph", "bfs", "structural"},
	{"graph", "bfs", "shallow"},
	{"graph", "ordered", "structural"},
	{"filtering", "bfs", "structural"},
}

func TestStrategies(t *testing.T) {
	for _, test := range strategyTests {
		cfg := config.Default()
		cfg.Serializer = test.serializer
		cfg.Linearizer = test.linearizer
		cfg.Heuristic = test.heuristic
		fp := mustPrepare(t, WithConfig(cfg))
		a, err := fp.Fingerprint(newThreads(1, 2))
		if err != nil {
			t.Fatalf("%v: did not expect to receive an error. Got %v", test, err)
		}
		b, _ := fp.Fingerprint(newThreads(1, 2))
		if !a.Equal(b) || a.Size() == 0 {
			t.Errorf("%v: expected equal non empty fingerprints. Got %v and %v", test, a, b)
		}
	}
}

func TestSymmetricThreadsTransform(t *testing.T) {
	cfg := config.Default()
	cfg.Transforms = []string{"symmetric-threads"}
	fp := mustPrepare(t, WithConfig(cfg))
	a, _ := fp.Fingerprint(newThreads(1, 2))
	b, _ := fp.Fingerprint(newThreads(2, 1))
	if !a.Equal(b) {
		t.Errorf("Expected permuted threads to give equal fingerprints.\n%v\n%v", a, b)
	}
}

var unknownNameTests = []struct {
	key    string
	mutate func(*config.Config)
}{
	{"linearizer", func(c *config.Config) { c.Linearizer = "dfs" }},
	{"serializer", func(c *config.Config) { c.Serializer = "json" }},
	{"heuristic", func(c *config.Config) { c.Heuristic = "exact" }},
	{"transform", func(c *config.Config) { c.Transforms = []string{"rotate"} }},
	{"abstractor.frames.Worker.run", func(c *config.Config) { c.Abstractor.Frames["Worker.run"] = "none" }},
}

func TestUnknownStrategy(t *testing.T) {
	for _, test := range unknownNameTests {
		cfg := config.Default()
		test.mutate(&cfg)
		_, err := PrepareFingerprinter(WithConfig(cfg))
		var cerr *config.ConfigError
		if !errors.As(err, &cerr) || cerr.Key != test.key {
			t.Errorf("Expected a configuration error for %v. Got %v", test.key, err)
		}
		if !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("Expected the error to wrap ErrInvalidConfig. Got %v", err)
		}
	}
}

func TestFieldAmmendment(t *testing.T) {
	fp := mustPrepare(t, WithFieldAmmendment(func(cls *vm.ClassInfo, f *vm.FieldInfo, include bool) bool {
		return include && f.Name != "id"
	}))
	a, _ := fp.Fingerprint(newThreads(1, 1))
	b, _ := fp.Fingerprint(newThreads(3, 4))
	if !a.Equal(b) {
		t.Errorf("Expected the excluded field to be ignored")
	}
}

func TestObjectAmmendmentWithoutDecision(t *testing.T) {
	fp := mustPrepare(t, WithObjectAmmendment(func(*vm.ClassInfo, abstraction.ObjectAbstractor) abstraction.ObjectAbstractor {
		return nil
	}))
	s := newThreads(1, 2)
	if err := fp.Prepare(s.Classes(), s.Methods()); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("Expected a configuration error. Got %v", err)
	}
}

func TestGraph(t *testing.T) {
	fp := mustPrepare(t, WithHeuristic(stategraph.Shallow{}))
	g, err := fp.Graph(newThreads(1, 2))
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	// root, statics, threads, heap entry, one class, two threads with a frame each
	if len(g.Linearized()) != 9 {
		t.Errorf("Unexpected number of nodes. Got %v. Expected: 9\n%v", len(g.Linearized()), g)
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmcheck.yaml")
	doc := "serializer: filtering\nheuristic_depth: 5\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	fp := mustPrepare(t, WithConfigFile(path))
	if fp.Config().Serializer != "filtering" || fp.Config().HeuristicDepth != 5 {
		t.Errorf("Unexpected configuration %+v", fp.Config())
	}
	if _, err := PrepareFingerprinter(WithConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))); err == nil {
		t.Errorf("Expected an error for a missing file")
	}
}

func TestUnknownOption(t *testing.T) {
	if _, err := PrepareFingerprinter(42); err == nil {
		t.Errorf("Expected an error for an unknown option")
	}
}
