package choice

import (
	"fmt"
	"math/rand"
	"strings"
)

// FromSet enumerates an explicit list of values.
type FromSet[T any] struct {
	id       string
	values   []T
	count    int
	done     bool
	sentinel T
}

// Create a new FromSet generator over values.
//
// sentinel is returned by NextChoice when the cursor is outside of the values.
func NewFromSet[T any](id string, sentinel T, values ...T) *FromSet[T] {
	return &FromSet[T]{
		id:       id,
		values:   values,
		count:    -1,
		sentinel: sentinel,
	}
}

func (g *FromSet[T]) Id() string {
	return g.id
}

func (g *FromSet[T]) HasMoreChoices() bool {
	return !g.done && g.count < len(g.values)-1
}

func (g *FromSet[T]) Advance() {
	if g.count < len(g.values) {
		g.count++
	}
}

func (g *FromSet[T]) Reset() {
	g.count = -1
	g.done = false
}

func (g *FromSet[T]) SetDone() {
	g.done = true
}

func (g *FromSet[T]) IsDone() bool {
	return g.done
}

func (g *FromSet[T]) TotalNumberOfChoices() int {
	return len(g.values)
}

func (g *FromSet[T]) ProcessedNumberOfChoices() int {
	return g.count + 1
}

// NextChoice returns the value at the cursor, or the sentinel if there is none.
func (g *FromSet[T]) NextChoice() T {
	if g.count < 0 || g.count >= len(g.values) {
		return g.sentinel
	}
	return g.values[g.count]
}

func (g *FromSet[T]) Choice() any {
	return g.NextChoice()
}

// Values returns the choices in enumeration order.
func (g *FromSet[T]) Values() []T {
	return g.values
}

// Randomize permutes the values with a Fisher-Yates shuffle.
func (g *FromSet[T]) Randomize(rnd *rand.Rand) Generator {
	for i := len(g.values) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		g.values[i], g.values[j] = g.values[j], g.values[i]
	}
	return g
}

func (g *FromSet[T]) String() string {
	out := strings.Builder{}
	out.WriteString(g.id)
	out.WriteString("[")
	for i, v := range g.values {
		if i > 0 {
			out.WriteString(",")
		}
		if i == g.count {
			out.WriteString(">")
		}
		out.WriteString(fmt.Sprint(v))
	}
	out.WriteString("]")
	return out.String()
}

// IntChoiceFromSet enumerates a set of int values.
type IntChoiceFromSet struct {
	*FromSet[int]
}

func NewIntChoiceFromSet(id string, values ...int) *IntChoiceFromSet {
	return &IntChoiceFromSet{FromSet: NewFromSet(id, NoIntChoice, values...)}
}

// DoubleChoiceFromSet enumerates a set of float64 values.
type DoubleChoiceFromSet struct {
	*FromSet[float64]
}

func NewDoubleChoiceFromSet(id string, values ...float64) *DoubleChoiceFromSet {
	return &DoubleChoiceFromSet{FromSet: NewFromSet(id, NoDoubleChoice, values...)}
}

// BooleanChoiceGenerator enumerates false and then true.
type BooleanChoiceGenerator struct {
	*FromSet[bool]
}

func NewBooleanChoiceGenerator(id string) *BooleanChoiceGenerator {
	return &BooleanChoiceGenerator{FromSet: NewFromSet(id, false, false, true)}
}

func (g *IntChoiceFromSet) Randomize(rnd *rand.Rand) Generator {
	g.FromSet.Randomize(rnd)
	return g
}

func (g *DoubleChoiceFromSet) Randomize(rnd *rand.Rand) Generator {
	g.FromSet.Randomize(rnd)
	return g
}

func (g *BooleanChoiceGenerator) Randomize(rnd *rand.Rand) Generator {
	g.FromSet.Randomize(rnd)
	return g
}
