package choice

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
)

// IntIntervalGenerator enumerates min, min+delta, ... up to max.
//
// A negative delta enumerates from max down to min. Values are computed on demand, only
// Randomize allocates a slot per choice.
type IntIntervalGenerator struct {
	id    string
	min   int
	max   int
	delta int
	count int
	done  bool

	// set by Randomize
	order []int
}

func NewIntIntervalGenerator(id string, min, max, delta int) *IntIntervalGenerator {
	return &IntIntervalGenerator{
		id:    id,
		min:   min,
		max:   max,
		delta: delta,
		count: -1,
	}
}

func (g *IntIntervalGenerator) Id() string {
	return g.id
}

func (g *IntIntervalGenerator) HasMoreChoices() bool {
	return !g.done && g.count < g.TotalNumberOfChoices()-1
}

func (g *IntIntervalGenerator) Advance() {
	if g.count < g.TotalNumberOfChoices() {
		g.count++
	}
}

func (g *IntIntervalGenerator) Reset() {
	g.count = -1
	g.done = false
}

func (g *IntIntervalGenerator) SetDone() {
	g.done = true
}

func (g *IntIntervalGenerator) IsDone() bool {
	return g.done
}

// TotalNumberOfChoices returns the number of values in the interval, saturated at math.MaxInt.
func (g *IntIntervalGenerator) TotalNumberOfChoices() int {
	if g.delta == 0 || g.max < g.min {
		return 0
	}
	step := uint(g.delta)
	if g.delta < 0 {
		step = -step
	}
	// unsigned arithmetic keeps the span exact for any bounds
	n := (uint(g.max)-uint(g.min))/step + 1
	if n == 0 || n > math.MaxInt {
		return math.MaxInt
	}
	return int(n)
}

func (g *IntIntervalGenerator) ProcessedNumberOfChoices() int {
	return g.count + 1
}

func (g *IntIntervalGenerator) valueAt(i int) int {
	if g.order != nil {
		i = g.order[i]
	}
	if g.delta > 0 {
		return g.min + i*g.delta
	}
	return g.max + i*g.delta
}

// NextChoice returns the value at the cursor, or NoIntChoice if there is none.
func (g *IntIntervalGenerator) NextChoice() int {
	if g.count < 0 || g.count >= g.TotalNumberOfChoices() {
		return NoIntChoice
	}
	return g.valueAt(g.count)
}

func (g *IntIntervalGenerator) Choice() any {
	return g.NextChoice()
}

// Randomize permutes the enumeration order with a Fisher-Yates shuffle.
func (g *IntIntervalGenerator) Randomize(rnd *rand.Rand) Generator {
	n := g.TotalNumberOfChoices()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	g.order = order
	return g
}

func (g *IntIntervalGenerator) String() string {
	out := strings.Builder{}
	out.WriteString(g.id)
	out.WriteString("[")
	for i := 0; i < g.TotalNumberOfChoices(); i++ {
		if i > 0 {
			out.WriteString(",")
		}
		if i == g.count {
			out.WriteString(">")
		}
		out.WriteString(fmt.Sprint(g.valueAt(i)))
	}
	out.WriteString("]")
	return out.String()
}
