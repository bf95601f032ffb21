package orderedset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ident(s string) string { return s }

func TestInsertDedupAndOrder(t *testing.T) {
	s := New(ident)
	assert.True(t, s.Insert("b"))
	assert.True(t, s.Insert("a"))
	assert.False(t, s.Insert("a")) // duplicate key, replaces in place
	assert.True(t, s.Insert("c"))

	assert.Equal(t, []string{"a", "b", "c"}, s.Values())
	assert.Equal(t, 3, s.Len())
}

func TestContains(t *testing.T) {
	s := FromSlice(ident, []string{"x", "y", "z"})
	assert.True(t, s.Contains("y"))
	assert.False(t, s.Contains("q"))
}

func TestCloneIndependent(t *testing.T) {
	s := FromSlice(ident, []string{"a", "b"})
	clone := s.Clone()
	clone.Insert("c")
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 3, clone.Len())
}

func TestFromSliceDedupesLastWins(t *testing.T) {
	type kv struct {
		k string
		v int
	}
	s := FromSlice(func(x kv) string { return x.k }, []kv{{"a", 1}, {"a", 2}})
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, s.Values()[0].v)
}
