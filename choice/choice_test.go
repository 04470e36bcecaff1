package choice

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"golang.org/x/exp/slices"

	"vmcheck/config"
	"vmcheck/vm"
)

func TestIntChoiceFromSet(t *testing.T) {
	cg := NewIntChoiceFromSet("input", -1, 0, 2)
	if cg.TotalNumberOfChoices() != 3 {
		t.Fatalf("Unexpected number of choices. Got %v. Expected: 3", cg.TotalNumberOfChoices())
	}
	if cg.NextChoice() != NoIntChoice {
		t.Errorf("Expected the sentinel before the first advance. Got %v", cg.NextChoice())
	}

	got := []int{}
	for i := 0; i < 3; i++ {
		if !cg.HasMoreChoices() {
			t.Fatalf("Expected more choices after %v advances", i)
		}
		cg.Advance()
		got = append(got, cg.NextChoice())
	}
	if !slices.Equal(got, []int{-1, 0, 2}) {
		t.Errorf("Unexpected choices. Got %v. Expected: [-1 0 2]", got)
	}
	if cg.HasMoreChoices() {
		t.Errorf("Did not expect more choices after the third advance")
	}
	if cg.ProcessedNumberOfChoices() != 3 {
		t.Errorf("Unexpected processed choices. Got %v. Expected: 3", cg.ProcessedNumberOfChoices())
	}
	if cg.String() != "input[-1,0,>2]" {
		t.Errorf("Unexpected rendering. Got %v", cg.String())
	}

	// Querying past the end returns the sentinel
	cg.Advance()
	if cg.NextChoice() != NoIntChoice {
		t.Errorf("Expected the sentinel after exhaustion. Got %v", cg.NextChoice())
	}

	cg.Reset()
	if cg.ProcessedNumberOfChoices() != 0 || !cg.HasMoreChoices() {
		t.Errorf("Reset should restore the initial state. Processed: %v, HasMoreChoices: %v", cg.ProcessedNumberOfChoices(), cg.HasMoreChoices())
	}
}

func TestSetDone(t *testing.T) {
	cg := NewIntChoiceFromSet("input", 1, 2, 3)
	cg.Advance()
	cg.SetDone()
	if cg.HasMoreChoices() {
		t.Errorf("Did not expect more choices after SetDone")
	}
	if cg.NextChoice() != 1 {
		t.Errorf("SetDone should not move the cursor. Got %v. Expected: 1", cg.NextChoice())
	}
	cg.Reset()
	if !cg.HasMoreChoices() || cg.IsDone() {
		t.Errorf("Reset should clear the done flag")
	}
}

func TestDoubleAndBoolean(t *testing.T) {
	d := NewDoubleChoiceFromSet("d", 0.5)
	if !math.IsNaN(d.NextChoice()) {
		t.Errorf("Expected NaN before the first advance. Got %v", d.NextChoice())
	}
	d.Advance()
	if d.NextChoice() != 0.5 {
		t.Errorf("Unexpected choice. Got %v. Expected: 0.5", d.NextChoice())
	}

	b := NewBooleanChoiceGenerator("b")
	got := []bool{}
	for b.HasMoreChoices() {
		b.Advance()
		got = append(got, b.NextChoice())
	}
	if !slices.Equal(got, []bool{false, true}) {
		t.Errorf("Unexpected choices. Got %v. Expected: [false true]", got)
	}
}

var intervalTests = []struct {
	min, max, delta int
	expected        []int
}{
	{0, 4, 2, []int{0, 2, 4}},
	{0, 5, 2, []int{0, 2, 4}},
	{1, 3, -1, []int{3, 2, 1}},
	{3, 3, 1, []int{3}},
}

func TestIntIntervalGenerator(t *testing.T) {
	for i, test := range intervalTests {
		cg := NewIntIntervalGenerator("i", test.min, test.max, test.delta)
		if cg.TotalNumberOfChoices() != len(test.expected) {
			t.Errorf("Test %v: unexpected number of choices. Got %v. Expected: %v", i, cg.TotalNumberOfChoices(), len(test.expected))
		}
		got := []int{}
		for cg.HasMoreChoices() {
			cg.Advance()
			got = append(got, cg.NextChoice())
		}
		if !slices.Equal(got, test.expected) {
			t.Errorf("Test %v: unexpected choices. Got %v. Expected: %v", i, got, test.expected)
		}
		cg.Reset()
		if cg.ProcessedNumberOfChoices() != 0 {
			t.Errorf("Test %v: reset should clear the processed choices", i)
		}
	}
}

var extremeIntervalTests = []struct {
	min, max, delta int
	expected        int
}{
	{math.MinInt, math.MaxInt, 1, math.MaxInt},
	{math.MinInt, math.MaxInt, math.MinInt, 2},
	{-1, math.MaxInt, math.MaxInt, 2},
}

func TestIntIntervalGeneratorExtremeBounds(t *testing.T) {
	for i, test := range extremeIntervalTests {
		cg := NewIntIntervalGenerator("i", test.min, test.max, test.delta)
		if cg.TotalNumberOfChoices() != test.expected {
			t.Errorf("Test %v: unexpected number of choices. Got %v. Expected: %v", i, cg.TotalNumberOfChoices(), test.expected)
		}
	}
	cg := NewIntIntervalGenerator("i", math.MinInt, math.MaxInt, math.MinInt)
	cg.Advance()
	cg.Advance()
	if cg.NextChoice() != -1 {
		t.Errorf("Unexpected second choice. Got %v. Expected: -1", cg.NextChoice())
	}
}

func TestRandomize(t *testing.T) {
	values := []int{1, 2, 3, 4, 5, 6, 7, 8}
	cg := NewIntChoiceFromSet("r", slices.Clone(values)...)
	if g := cg.Randomize(rand.New(rand.NewSource(42))); g != Generator(cg) {
		t.Errorf("Randomize should return the generator itself")
	}
	got := slices.Clone(cg.Values())
	slices.Sort(got)
	if !slices.Equal(got, values) {
		t.Errorf("Randomize should permute the values. Got %v", cg.Values())
	}

	interval := NewIntIntervalGenerator("i", 0, 9, 1)
	interval.Randomize(rand.New(rand.NewSource(7)))
	seen := []int{}
	for interval.HasMoreChoices() {
		interval.Advance()
		seen = append(seen, interval.NextChoice())
	}
	slices.Sort(seen)
	if !slices.Equal(seen, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}) {
		t.Errorf("Randomize should permute the interval. Got %v", seen)
	}
}

func TestCompound(t *testing.T) {
	first := NewIntChoiceFromSet("first", 1, 2)
	second := NewIntChoiceFromSet("second", 3, 4, 5)
	cg := NewCompound("compound", first, second)

	if cg.TotalNumberOfChoices() != 5 {
		t.Fatalf("Unexpected number of choices. Got %v. Expected: 5", cg.TotalNumberOfChoices())
	}
	got := []int{}
	advances := 0
	for cg.HasMoreChoices() {
		cg.Advance()
		advances++
		got = append(got, cg.Choice().(int))
		if cg.ProcessedNumberOfChoices() != advances {
			t.Errorf("Unexpected processed choices. Got %v. Expected: %v", cg.ProcessedNumberOfChoices(), advances)
		}
	}
	if advances != 5 {
		t.Errorf("Expected the compound to be exhausted after 5 advances. Got %v", advances)
	}
	if !slices.Equal(got, []int{1, 2, 3, 4, 5}) {
		t.Errorf("Unexpected choices. Got %v. Expected: [1 2 3 4 5]", got)
	}
	if cg.String() != "compound{first[1,>2],>second[3,4,>5]}" {
		t.Errorf("Unexpected rendering. Got %v", cg.String())
	}

	cg.Reset()
	if cg.ProcessedNumberOfChoices() != 0 || !cg.HasMoreChoices() || cg.Current() != Generator(first) {
		t.Errorf("Reset should restore the initial state")
	}
}

func TestCompoundSkipsEmptyChildren(t *testing.T) {
	cg := NewCompound("c", NewIntChoiceFromSet("empty"), NewIntChoiceFromSet("one", 7))
	if !cg.HasMoreChoices() {
		t.Fatalf("Expected the compound to have a choice")
	}
	cg.Advance()
	if cg.Choice() != 7 {
		t.Errorf("Unexpected choice. Got %v. Expected: 7", cg.Choice())
	}
	if cg.HasMoreChoices() {
		t.Errorf("Did not expect more choices")
	}

	empty := NewCompound("none")
	if empty.HasMoreChoices() || empty.Choice() != nil {
		t.Errorf("An empty compound has no choices")
	}
	empty.Advance()
}

func TestThreadChoiceStatus(t *testing.T) {
	waiting := &vm.ThreadInfo{Id: 0, Status: vm.TimeoutWaiting}
	running := &vm.ThreadInfo{Id: 1, Status: vm.Running}
	sleeping := &vm.ThreadInfo{Id: 2, Status: vm.Sleeping}
	cg := NewThreadChoiceFromSet("sched", waiting, running, sleeping)

	cg.Advance()
	if cg.NextChoice() != waiting || waiting.Status != vm.TimedOut {
		t.Errorf("Expected the waiting thread to time out. Got %v", waiting.Status)
	}
	cg.Advance()
	if waiting.Status != vm.TimeoutWaiting {
		t.Errorf("Expected the timeout status to be reverted. Got %v", waiting.Status)
	}
	if running.Status != vm.Running {
		t.Errorf("Running threads should not change status. Got %v", running.Status)
	}
	cg.Advance()
	if sleeping.Status != vm.WokeUp {
		t.Errorf("Expected the sleeping thread to wake up. Got %v", sleeping.Status)
	}
	if cg.String() != "sched[T0,T1,>T2]" {
		t.Errorf("Unexpected rendering. Got %v", cg.String())
	}
	cg.Release()
	if sleeping.Status != vm.Sleeping {
		t.Errorf("Expected Release to revert the status. Got %v", sleeping.Status)
	}

	// A transition that changed the status must not be undone
	cg.Reset()
	cg.Advance()
	waiting.Status = vm.Running
	cg.Advance()
	if waiting.Status != vm.Running {
		t.Errorf("Did not expect the status to be reverted. Got %v", waiting.Status)
	}
}

var parseTests = []struct {
	spec     string
	expected []int
}{
	{"-1, 0, 2", []int{-1, 0, 2}},
	{"1 2\t3", []int{1, 2, 3}},
	{"0..3,7", []int{0, 1, 2, 3, 7}},
}

func TestParseIntChoiceFromSet(t *testing.T) {
	for i, test := range parseTests {
		cg, err := ParseIntChoiceFromSet("p", test.spec)
		if err != nil {
			t.Errorf("Test %v: did not expect to receive an error. Got %v", i, err)
			continue
		}
		if !slices.Equal(cg.Values(), test.expected) {
			t.Errorf("Test %v: unexpected values. Got %v. Expected: %v", i, cg.Values(), test.expected)
		}
	}

	for _, spec := range []string{"", " , ", "1,x", "3..1", "1.5", "0..2000000000", "-2147483648..2147483647", "0..65535,1", "0..65535,2..3", "-9223372036854775808..9223372036854775807"} {
		_, err := ParseIntChoiceFromSet("p", spec)
		if !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("Expected a configuration error for %q. Got %v", spec, err)
		}
	}
}

func TestParseOthers(t *testing.T) {
	d, err := ParseDoubleChoiceFromSet("d", "0.5, 2")
	if err != nil || d.TotalNumberOfChoices() != 2 {
		t.Errorf("Unexpected result. Got %v, %v", d, err)
	}
	if _, err := ParseDoubleChoiceFromSet("d", "abc"); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("Expected a configuration error. Got %v", err)
	}

	i, err := ParseIntInterval("i", "0:10:5")
	if err != nil || i.TotalNumberOfChoices() != 3 {
		t.Errorf("Unexpected result. Got %v, %v", i, err)
	}
	big, err := ParseIntInterval("i", "0:2000000000")
	if err != nil || big.TotalNumberOfChoices() != 2000000001 {
		t.Errorf("Expected a large interval to be accepted. Got %v", err)
	}
	for _, spec := range []string{"", "1", "1:2:0", "5:1", "a:b", "-2000000000:2000000000"} {
		if _, err := ParseIntInterval("i", spec); !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("Expected a configuration error for %q. Got %v", spec, err)
		}
	}
}
