package choice

import (
	"fmt"
	"math/rand"
	"strings"

	"vmcheck/vm"
)

// ThreadChoiceFromSet enumerates the threads that may run the next transition.
//
// When a thread that is waiting with a timeout becomes the current choice its status is
// changed to TimedOut, and a sleeping thread is changed to WokeUp, so the transition executed
// for the choice observes why the thread runs. The transient status is reverted before the
// next choice is made, on Reset and on Release.
type ThreadChoiceFromSet struct {
	*FromSet[*vm.ThreadInfo]

	// status the current thread had before it became the choice
	restore vm.ThreadStatus
	changed *vm.ThreadInfo
}

func NewThreadChoiceFromSet(id string, threads ...*vm.ThreadInfo) *ThreadChoiceFromSet {
	return &ThreadChoiceFromSet{FromSet: NewFromSet[*vm.ThreadInfo](id, nil, threads...)}
}

func (g *ThreadChoiceFromSet) Advance() {
	g.Release()
	g.FromSet.Advance()

	ti := g.NextChoice()
	if ti == nil {
		return
	}
	switch ti.Status {
	case vm.TimeoutWaiting:
		g.changed, g.restore = ti, ti.Status
		ti.Status = vm.TimedOut
	case vm.Sleeping:
		g.changed, g.restore = ti, ti.Status
		ti.Status = vm.WokeUp
	}
}

func (g *ThreadChoiceFromSet) Reset() {
	g.Release()
	g.FromSet.Reset()
}

// Release reverts the transient status of the current choice.
//
// The driver calls it when it discards the generator.
func (g *ThreadChoiceFromSet) Release() {
	if g.changed == nil {
		return
	}
	// Only revert if the transition did not move the thread on to some other status
	if g.changed.Status == vm.TimedOut || g.changed.Status == vm.WokeUp {
		g.changed.Status = g.restore
	}
	g.changed = nil
}

func (g *ThreadChoiceFromSet) Randomize(rnd *rand.Rand) Generator {
	g.FromSet.Randomize(rnd)
	return g
}

func (g *ThreadChoiceFromSet) String() string {
	out := strings.Builder{}
	out.WriteString(g.Id())
	out.WriteString("[")
	for i, ti := range g.Values() {
		if i > 0 {
			out.WriteString(",")
		}
		if i == g.count {
			out.WriteString(">")
		}
		out.WriteString(fmt.Sprintf("T%v", ti.Id))
	}
	out.WriteString("]")
	return out.String()
}
