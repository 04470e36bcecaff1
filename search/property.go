package search

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"vmcheck/vm"
)

// State is a state reached by the search, as seen by properties.
type State struct {
	vm.State
	// Depth is the number of transitions from the initial state.
	Depth int
	// IsTerminal is true if the state has no further choices.
	IsTerminal bool
}

// A function evaluated on every new state.
// It returns true if the property holds for the state and false otherwise
type Property func(s State) bool

// Check that the property holds eventually.
//
// Returns a property that evaluates p on terminal states only.
// On every other state it holds.
func Eventually(p Property) Property {
	return func(s State) bool {
		if !s.IsTerminal {
			return true
		}
		return p(s)
	}
}

// Violation describes a state breaking a property.
type Violation struct {
	// Property is the index of the broken property
	Property int
	// Path holds the rendered choice generators leading from the initial state to the
	// violating state, each with a marker at the choice taken
	Path []string
	Depth int
}

// Stats counts the work of a search.
type Stats struct {
	States      int
	Revisits    int
	Transitions int
	Backtracks  int
	// Truncated counts the new states that were not expanded because of the depth bound.
	Truncated int
}

// Result is the outcome of a search.
type Result struct {
	Stats
	// nil if every property holds in every explored state
	Violation *Violation
	// nil unless the state space was recorded
	StateSpace *StateSpace
}

// Generate a response
// Returns two parameters, result, and description.
// Result is true if all properties hold, false otherwise.
// If result is false the description holds the sequence of choices leading to the violation
func (r Result) Response() (bool, string) {
	if r.Violation == nil {
		return true, fmt.Sprintf("All properties hold. States: %v, transitions: %v", r.States, r.Transitions)
	}
	var buffer bytes.Buffer
	wrt := tabwriter.NewWriter(&buffer, 4, 4, 0, ' ', 0)
	fmt.Fprintf(wrt, "Property broken. Property: %v. Depth: %v. Choices: \n", r.Violation.Property, r.Violation.Depth)
	for _, c := range r.Violation.Path {
		fmt.Fprintf(wrt, "-> %v \n", c)
	}
	wrt.Flush()
	return false, buffer.String()
}
