package search

import (
	"fmt"
	"io"
	"strings"
)

// Transition labels a node of the explored state space with the choice that led to it.
type Transition struct {
	Choice string
	// Revisit is true if the reached state had been visited before.
	Revisit bool
}

func (t Transition) String() string {
	if t.Revisit {
		return t.Choice + " (visited)"
	}
	return t.Choice
}

// StateSpace is the tree of transitions taken by the search.
//
// A state reached along two paths appears twice, the second time as a revisit leaf.
type StateSpace struct {
	transition Transition
	parent     *StateSpace
	children   []*StateSpace
	depth      int
}

func newStateSpace(t Transition) *StateSpace {
	return &StateSpace{transition: t}
}

// Adds a child reached by t and returns it
func (s *StateSpace) addChild(t Transition) *StateSpace {
	child := &StateSpace{
		transition: t,
		parent:     s,
		depth:      s.depth + 1,
	}
	s.children = append(s.children, child)
	return child
}

func (s *StateSpace) Transition() Transition {
	return s.transition
}

func (s *StateSpace) Parent() *StateSpace {
	return s.parent
}

func (s *StateSpace) Children() []*StateSpace {
	return s.children
}

func (s *StateSpace) Depth() int {
	return s.depth
}

func (s *StateSpace) IsRoot() bool {
	return s.parent == nil
}

func (s *StateSpace) IsLeaf() bool {
	return len(s.children) == 0
}

// Returns the total number of nodes in the tree
func (s *StateSpace) Len() int {
	n := 1
	for _, child := range s.children {
		n += child.Len()
	}
	return n
}

// Returns true if search is true for some node. Nodes are searched depth first.
func (s *StateSpace) DepthFirstSearch(search func(Transition) bool) bool {
	if search(s.transition) {
		return true
	}
	for _, child := range s.children {
		if child.DepthFirstSearch(search) {
			return true
		}
	}
	return false
}

// Newick renders the tree in the Newick format, with the transitions as labels.
func (s *StateSpace) Newick() string {
	out := strings.Builder{}
	s.newick(&out)
	out.WriteString(";")
	return out.String()
}

func (s *StateSpace) newick(out *strings.Builder) {
	if len(s.children) > 0 {
		out.WriteString("(")
		for i, child := range s.children {
			if i > 0 {
				out.WriteString(",")
			}
			child.newick(out)
		}
		out.WriteString(")")
	}
	out.WriteString(fmt.Sprintf("%q", s.transition.String()))
}

// Export writes the Newick rendering of the tree to w.
func (s *StateSpace) Export(w io.Writer) error {
	_, err := io.WriteString(w, s.Newick())
	return err
}

func (s *StateSpace) String() string {
	out := strings.Builder{}
	out.WriteString(strings.Repeat("-", s.depth))
	out.WriteString(fmt.Sprintf("%v\n", s.transition))
	for _, child := range s.children {
		out.WriteString(child.String())
	}
	return out.String()
}
