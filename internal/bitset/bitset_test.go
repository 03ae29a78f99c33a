package bitset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetUnionAndMembership(t *testing.T) {
	interner := NewInterner()
	main := NewSet(interner)
	main.Add("row-0")
	main.Add("row-1")

	draft := NewSet(interner)
	draft.Add("row-2")

	merged := main.Union(draft)
	require.True(t, merged.Contains("row-0"))
	require.True(t, merged.Contains("row-1"))
	require.True(t, merged.Contains("row-2"))
	require.Equal(t, 3, merged.Len())

	require.False(t, main.Contains("row-2"))
}

func TestSetRemove(t *testing.T) {
	interner := NewInterner()
	s := NewSet(interner)
	s.Add("a")
	s.Add("b")
	s.Remove("a")
	require.False(t, s.Contains("a"))
	require.True(t, s.Contains("b"))
	require.Equal(t, 1, s.Len())
}
