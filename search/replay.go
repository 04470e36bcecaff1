package search

import (
	"fmt"

	"vmcheck/choice"
	"vmcheck/vm"
)

// Replay executes the transitions of path on sys, starting from its current state, and
// returns the state reached.
//
// path holds rendered choices as found in Violation.Path. For every step the generator of
// the current decision is advanced until its rendering matches the step.
func Replay(sys System, path []string) (vm.State, error) {
	for i, step := range path {
		gen, ok := sys.Choices()
		if !ok {
			return nil, fmt.Errorf("search: replay step %v: %q: state is terminal", i, step)
		}
		if !advanceTo(gen, step) {
			return nil, fmt.Errorf("search: replay step %v: no choice of %v matches %q", i, gen.Id(), step)
		}
		if err := sys.Execute(gen); err != nil {
			return nil, fmt.Errorf("search: replay step %v: executing %v: %w", i, gen, err)
		}
		if r, ok := gen.(interface{ Release() }); ok {
			r.Release()
		}
	}
	return sys.State(), nil
}

func advanceTo(gen choice.Generator, step string) bool {
	for gen.HasMoreChoices() {
		gen.Advance()
		if gen.String() == step {
			return true
		}
	}
	return false
}
