package search

import (
	"github.com/cespare/xxhash/v2"

	"vmcheck/vector"
)

// StateSet holds the fingerprints of the visited states.
//
// Fingerprints are bucketed by their hash and compared in full within a bucket, so a hash
// collision never merges two different states.
type StateSet struct {
	buckets map[uint64][]*vector.IntVector
	size    int
}

func NewStateSet() *StateSet {
	return &StateSet{buckets: map[uint64][]*vector.IntVector{}}
}

// Add inserts fp and returns true if it was not in the set already.
//
// The set keeps fp, so it must not be modified afterwards.
func (s *StateSet) Add(fp *vector.IntVector) bool {
	h := xxhash.Sum64(fp.Bytes())
	for _, other := range s.buckets[h] {
		if other.Equal(fp) {
			return false
		}
	}
	s.buckets[h] = append(s.buckets[h], fp)
	s.size++
	return true
}

func (s *StateSet) Contains(fp *vector.IntVector) bool {
	for _, other := range s.buckets[xxhash.Sum64(fp.Bytes())] {
		if other.Equal(fp) {
			return true
		}
	}
	return false
}

// Len returns the number of distinct fingerprints.
func (s *StateSet) Len() int {
	return s.size
}
