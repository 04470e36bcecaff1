package choice

import (
	"math/rand"
	"strings"
)

// Compound enumerates the choices of a sequence of generators, one after the other.
//
// All the children share the id of the compound. The children are visited in the order they
// were provided; current is the index of the child the cursor is in.
type Compound struct {
	id       string
	children []Generator
	current  int
	done     bool
}

func NewCompound(id string, children ...Generator) *Compound {
	return &Compound{
		id:       id,
		children: children,
	}
}

// Add appends a child to the sequence.
func (c *Compound) Add(g Generator) {
	c.children = append(c.children, g)
}

func (c *Compound) Id() string {
	return c.id
}

// Children returns the child generators in enumeration order.
func (c *Compound) Children() []Generator {
	return c.children
}

// Current returns the child the cursor is in, or nil if there are no children.
func (c *Compound) Current() Generator {
	if c.current >= len(c.children) {
		return nil
	}
	return c.children[c.current]
}

func (c *Compound) HasMoreChoices() bool {
	if c.done {
		return false
	}
	for _, child := range c.children[c.current:] {
		if child.HasMoreChoices() {
			return true
		}
	}
	return false
}

// Advance advances the current child, moving on to the next child when it is exhausted.
func (c *Compound) Advance() {
	for c.current < len(c.children) {
		child := c.children[c.current]
		if child.HasMoreChoices() {
			child.Advance()
			return
		}
		if c.current == len(c.children)-1 {
			return
		}
		c.current++
	}
}

func (c *Compound) Reset() {
	for _, child := range c.children {
		child.Reset()
	}
	c.current = 0
	c.done = false
}

func (c *Compound) SetDone() {
	c.done = true
}

func (c *Compound) IsDone() bool {
	return c.done
}

func (c *Compound) TotalNumberOfChoices() int {
	total := 0
	for _, child := range c.children {
		total += child.TotalNumberOfChoices()
	}
	return total
}

// ProcessedNumberOfChoices sums the choices of the children before the current one and the progress of the current child.
func (c *Compound) ProcessedNumberOfChoices() int {
	processed := 0
	for i, child := range c.children {
		if i == c.current {
			return processed + child.ProcessedNumberOfChoices()
		}
		processed += child.TotalNumberOfChoices()
	}
	return processed
}

// Choice returns the current choice of the current child, or nil if there are no children.
func (c *Compound) Choice() any {
	child := c.Current()
	if child == nil {
		return nil
	}
	return child.Choice()
}

// Randomize permutes the choices within each child. The order of the children is kept.
func (c *Compound) Randomize(rnd *rand.Rand) Generator {
	for _, child := range c.children {
		child.Randomize(rnd)
	}
	return c
}

func (c *Compound) String() string {
	out := strings.Builder{}
	out.WriteString(c.id)
	out.WriteString("{")
	for i, child := range c.children {
		if i > 0 {
			out.WriteString(",")
		}
		if i == c.current {
			out.WriteString(">")
		}
		out.WriteString(child.String())
	}
	out.WriteString("}")
	return out.String()
}
