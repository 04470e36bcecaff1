// Package stategraph holds the abstract state graph of one program snapshot and assigns its
// nodes canonical ids.
//
// Nodes live in an arena and refer to their successors by arena index, so cyclic object
// graphs need no special handling: a node has been reached once it has a linear id.
package stategraph

import (
	"fmt"
	"strings"
)

const (
	// NullIndex is the successor index of a null reference.
	NullIndex = -1

	// NullID is the linear id of a null reference.
	NullID = -1

	// InvalidID is the linear id of a node that has not been linearized.
	InvalidID = -2
)

// Kind is the variant of a node.
type Kind int

const (
	// Root has the statics, threads and heap entry containers as successors.
	Root Kind = iota
	// Statics has one ClassObject per loaded class, in class id order.
	Statics
	// Threads has one ThreadObject per thread, in thread id order.
	Threads
	// HeapEntry has the objects pinned by the runtime as order-insignificant successors.
	HeapEntry
	// ClassObject holds the static fields of a class.
	ClassObject
	// InstanceObject is a heap object.
	InstanceObject
	// ThreadObject is the heap object of a thread extended with its status and stack frames.
	ThreadObject
	// Frame is one stack frame.
	Frame
)

var kindNames = []string{"root", "statics", "threads", "heap-entry", "class", "instance", "thread", "frame"}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Node is one vertex of the state graph.
//
// Class is the class id of object nodes and the method id of frames.
// VMID is the identity of the node in the live runtime; it is only used to make sorting
// repeatable and never leaves the graph.
type Node struct {
	Kind     Kind
	Class    int
	Refs     []int
	Prims    []int32
	VMID     int64
	LinearID int
	// Ordered is false when the order of Refs carries no meaning.
	Ordered bool
}

// Tag returns the runtime type tag of the node.
func (n *Node) Tag() int32 {
	return MakeTag(n.Kind, n.Class)
}

// MaxClassID is the largest class or method id a type tag can hold.
const MaxClassID = 1<<24 - 1

// MakeTag combines a kind and a class or method id into a type tag: the kind in the high
// byte and the id in the lower three bytes. Ids above MaxClassID share tags, abstraction.Prepare
// rejects them.
func MakeTag(kind Kind, class int) int32 {
	return int32(kind)<<24 | int32(class&0xffffff)
}

// Graph is the arena of the nodes of one snapshot.
type Graph struct {
	nodes  []*Node
	root   int
	linear []int
}

func New() *Graph {
	return &Graph{root: NullIndex}
}

// Add creates a node and returns its index.
func (g *Graph) Add(kind Kind, class int, vmID int64, ordered bool) int {
	g.nodes = append(g.nodes, &Node{
		Kind:     kind,
		Class:    class,
		VMID:     vmID,
		LinearID: InvalidID,
		Ordered:  ordered,
	})
	return len(g.nodes) - 1
}

// Node returns the node at index i.
func (g *Graph) Node(i int) *Node {
	return g.nodes[i]
}

// Len returns the number of nodes in the arena, reachable or not.
func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) Root() int {
	return g.root
}

func (g *Graph) SetRoot(i int) {
	g.root = i
}

// AddRef appends to as a successor of from. to may be NullIndex.
func (g *Graph) AddRef(from, to int) {
	n := g.nodes[from]
	n.Refs = append(n.Refs, to)
}

// InvalidateLinearization resets every linear id so the graph can be linearized again.
func (g *Graph) InvalidateLinearization() {
	for _, n := range g.nodes {
		n.LinearID = InvalidID
	}
	g.linear = nil
}

// Linearized returns the indices of the reachable nodes ordered by linear id.
//
// It is nil until the graph has been linearized.
func (g *Graph) Linearized() []int {
	return g.linear
}

func (g *Graph) IsLinearized() bool {
	return g.linear != nil
}

// LinearID returns the linear id of the successor index i, mapping NullIndex to NullID.
func (g *Graph) LinearID(i int) int {
	if i == NullIndex {
		return NullID
	}
	return g.nodes[i].LinearID
}

// String renders the linearized nodes, one per line.
func (g *Graph) String() string {
	out := strings.Builder{}
	for _, i := range g.linear {
		n := g.nodes[i]
		ids := make([]int, len(n.Refs))
		for j, r := range n.Refs {
			ids[j] = g.LinearID(r)
		}
		out.WriteString(fmt.Sprintf("%v: %v(%v) refs=%v prims=%v\n", n.LinearID, n.Kind, n.Class, ids, n.Prims))
	}
	return out.String()
}
