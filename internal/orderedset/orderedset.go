// Package orderedset implements a deduplicated, deterministically-ordered
// collection keyed by a comparable, ordered key. It backs cell.Cell's
// possibility set, where spec.md requires an "ordered multiset of
// prototypes, deduplicated by id... deterministic [iteration order] for a
// given state so that seeded runs are reproducible".
//
// The search/insert strategy (binary search for position, shift to make
// room) is adapted from catrate's ringBuffer, which maintains a sorted
// slice of int64 timestamps for its sliding-window rate limiter - the same
// sort.Search-based insert shape, without the circular-buffer wraparound
// (which exists there only to support O(1) eviction from the front of a
// fixed-capacity window, a concern this set doesn't have).
package orderedset

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Set is a sorted, deduplicated slice of values, ordered by a key extracted
// with a KeyFunc. The zero value is an empty, usable set.
type Set[K constraints.Ordered, V any] struct {
	key    func(V) K
	values []V
}

// New creates a Set whose order and de-duplication are determined by key.
func New[K constraints.Ordered, V any](key func(V) K) *Set[K, V] {
	return &Set[K, V]{key: key}
}

// FromSlice builds a Set from values, discarding duplicate keys (last
// occurrence wins) and sorting by key.
func FromSlice[K constraints.Ordered, V any](key func(V) K, values []V) *Set[K, V] {
	s := New[K, V](key)
	for _, v := range values {
		s.Insert(v)
	}
	return s
}

func (s *Set[K, V]) search(k K) int {
	return sort.Search(len(s.values), func(i int) bool {
		return s.key(s.values[i]) >= k
	})
}

// Insert adds v, replacing any existing element with the same key. Returns
// true if this added a new key (set grew), false if it replaced an
// existing entry.
func (s *Set[K, V]) Insert(v V) bool {
	k := s.key(v)
	i := s.search(k)
	if i < len(s.values) && s.key(s.values[i]) == k {
		s.values[i] = v
		return false
	}
	s.values = append(s.values, v)
	copy(s.values[i+1:], s.values[i:])
	s.values[i] = v
	return true
}

// Contains reports whether a value with key k is present.
func (s *Set[K, V]) Contains(k K) bool {
	i := s.search(k)
	return i < len(s.values) && s.key(s.values[i]) == k
}

// Len returns the number of elements.
func (s *Set[K, V]) Len() int {
	return len(s.values)
}

// Values returns the elements in deterministic (ascending key) order.
// Callers must not mutate the result.
func (s *Set[K, V]) Values() []V {
	return s.values
}

// Clone returns a Set with an independent backing slice, same contents.
func (s *Set[K, V]) Clone() *Set[K, V] {
	values := make([]V, len(s.values))
	copy(values, s.values)
	return &Set[K, V]{key: s.key, values: values}
}
