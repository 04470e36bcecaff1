// Package vector provides append-oriented integer and object vectors with a pluggable growth policy.
package vector

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// GrowthStrategy decides the new capacity of a vector that needs room for minCap elements.
type GrowthStrategy interface {
	Grow(oldCap, minCap int) int
}

// Doubling grows a vector to twice its capacity, or to minCap if that is larger.
type Doubling struct{}

func (Doubling) Grow(oldCap, minCap int) int {
	newCap := oldCap * 2
	if newCap < 8 {
		newCap = 8
	}
	if newCap < minCap {
		newCap = minCap
	}
	return newCap
}

// Linear grows a vector by a fixed number of elements.
type Linear struct {
	Step int
}

func (l Linear) Grow(oldCap, minCap int) int {
	step := l.Step
	if step <= 0 {
		step = 1
	}
	newCap := oldCap + step
	for newCap < minCap {
		newCap += step
	}
	return newCap
}

// NewGrowth returns the growth strategy for a step as returned by config.ParseGrowth.
//
// A step of 0 means doubling.
func NewGrowth(step int) GrowthStrategy {
	if step == 0 {
		return Doubling{}
	}
	return Linear{Step: step}
}

// IntVector is a growable vector of 32 bit integers.
//
// The fingerprint of a state is an IntVector.
type IntVector struct {
	data   []int32
	growth GrowthStrategy
}

// Create a new IntVector with the provided initial capacity.
//
// If growth is nil the vector doubles its capacity when it is full.
func NewIntVector(capacity int, growth GrowthStrategy) *IntVector {
	if growth == nil {
		growth = Doubling{}
	}
	return &IntVector{
		data:   make([]int32, 0, capacity),
		growth: growth,
	}
}

func (v *IntVector) ensure(extra int) {
	needed := len(v.data) + extra
	if needed <= cap(v.data) {
		return
	}
	data := make([]int32, len(v.data), v.growth.Grow(cap(v.data), needed))
	copy(data, v.data)
	v.data = data
}

// Add appends a value.
func (v *IntVector) Add(x int32) {
	v.ensure(1)
	v.data = append(v.data, x)
}

// AddInt appends an int value truncated to 32 bits.
func (v *IntVector) AddInt(x int) {
	v.Add(int32(x))
}

// AddAll appends all the values.
func (v *IntVector) AddAll(xs ...int32) {
	v.ensure(len(xs))
	v.data = append(v.data, xs...)
}

// Get returns the value at index i.
func (v *IntVector) Get(i int) int32 {
	return v.data[i]
}

// Set replaces the value at index i, growing the vector with zeros if needed.
func (v *IntVector) Set(i int, x int32) {
	if i >= len(v.data) {
		n := len(v.data)
		v.ensure(i + 1 - n)
		v.data = v.data[:i+1]
		for j := n; j < i; j++ {
			v.data[j] = 0
		}
	}
	v.data[i] = x
}

func (v *IntVector) Size() int {
	return len(v.data)
}

// Clear removes all the values but keeps the capacity.
func (v *IntVector) Clear() {
	v.data = v.data[:0]
}

// Ints returns the underlying values. The slice is only valid until the next modification.
func (v *IntVector) Ints() []int32 {
	return v.data
}

// Clone returns an independent copy of the vector.
func (v *IntVector) Clone() *IntVector {
	return &IntVector{
		data:   slices.Clone(v.data),
		growth: v.growth,
	}
}

func (v *IntVector) Equal(o *IntVector) bool {
	return slices.Equal(v.data, o.data)
}

// Bytes returns the little endian encoding of the values.
func (v *IntVector) Bytes() []byte {
	out := make([]byte, 4*len(v.data))
	for i, x := range v.data {
		binary.LittleEndian.PutUint32(out[4*i:], uint32(x))
	}
	return out
}

func (v *IntVector) String() string {
	out := strings.Builder{}
	out.WriteString("[")
	for i, x := range v.data {
		if i > 0 {
			out.WriteString(",")
		}
		out.WriteString(fmt.Sprint(x))
	}
	out.WriteString("]")
	return out.String()
}

// ObjVector is a growable vector of arbitrary values, indexed by small integers.
//
// Reading an index that has not been set returns the zero value.
// It is used for caches keyed by class or method id.
type ObjVector[T any] struct {
	data   []T
	growth GrowthStrategy
}

func NewObjVector[T any](capacity int, growth GrowthStrategy) *ObjVector[T] {
	if growth == nil {
		growth = Doubling{}
	}
	return &ObjVector[T]{
		data:   make([]T, 0, capacity),
		growth: growth,
	}
}

func (v *ObjVector[T]) Add(x T) {
	v.Set(len(v.data), x)
}

// Get returns the value at index i, or the zero value if i is out of range.
func (v *ObjVector[T]) Get(i int) T {
	if i < 0 || i >= len(v.data) {
		var zero T
		return zero
	}
	return v.data[i]
}

// Set replaces the value at index i, growing the vector with zero values if needed.
func (v *ObjVector[T]) Set(i int, x T) {
	if i >= cap(v.data) {
		data := make([]T, len(v.data), v.growth.Grow(cap(v.data), i+1))
		copy(data, v.data)
		v.data = data
	}
	if i >= len(v.data) {
		v.data = v.data[:i+1]
	}
	v.data[i] = x
}

func (v *ObjVector[T]) Size() int {
	return len(v.data)
}

// Clear removes all the values but keeps the capacity.
func (v *ObjVector[T]) Clear() {
	var zero T
	for i := range v.data {
		v.data[i] = zero
	}
	v.data = v.data[:0]
}
