// Package choice implements choice generators: resumable cursors over the values of one
// nondeterministic decision of the explored program.
//
// A generator starts before its first choice. The search driver calls Advance before it
// reads the current choice, and keeps advancing each time it backtracks to the decision
// until HasMoreChoices returns false.
package choice

import (
	"math"
	"math/rand"
)

// Values returned by NextChoice when the cursor is outside of the choices.
// Reading past the end is not an error.
const (
	NoIntChoice = math.MinInt
)

var NoDoubleChoice = math.NaN()

// Generator is the untyped view of a choice generator used by the driver and listeners.
type Generator interface {
	// Id names the decision point.
	Id() string

	// HasMoreChoices returns true while the cursor is before the last choice and the generator is not done.
	HasMoreChoices() bool

	// Advance moves the cursor to the next choice.
	Advance()

	// Reset moves the cursor before the first choice and clears the done flag.
	Reset()

	// SetDone prunes the remaining choices independently of the cursor position.
	SetDone()

	IsDone() bool

	TotalNumberOfChoices() int

	// ProcessedNumberOfChoices returns the number of choices the cursor has passed, including the current one.
	ProcessedNumberOfChoices() int

	// Choice returns the current choice, or the generator's sentinel if there is none.
	Choice() any

	// Randomize permutes the choices and returns the generator.
	Randomize(rnd *rand.Rand) Generator

	// String renders the choices with a '>' in front of the current one.
	String() string
}

// Typed is a generator whose choices have type T.
type Typed[T any] interface {
	Generator
	NextChoice() T
}
