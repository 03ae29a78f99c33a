package store

import (
	"testing"

	"github.com/lilac-data/lilac/schema"
	"github.com/stretchr/testify/require"
)

func mustPath(t *testing.T, s string) schema.Path {
	t.Helper()
	p, err := schema.NormalizePath(s)
	require.NoError(t, err)
	return p
}

func TestFilterEqualsAndOrdered(t *testing.T) {
	f := Filter{Path: mustPath(t, "score"), Op: OpGreaterEq, Value: 3.0}
	ok, err := f.Matches(5.0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.Matches(1.0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilterInAndNotIn(t *testing.T) {
	f := Filter{Path: mustPath(t, "tag"), Op: OpIn, Value: []any{"a", "b"}}
	ok, err := f.Matches("b")
	require.NoError(t, err)
	require.True(t, ok)

	f.Op = OpNotIn
	ok, err = f.Matches("b")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilterRepeatedAnyVsAll(t *testing.T) {
	f := Filter{Path: mustPath(t, "chunks.*.text"), Op: OpEquals, Value: "x", Repeated: Any}
	ok, err := f.Matches([]any{"x", "y"})
	require.NoError(t, err)
	require.True(t, ok)

	f.Repeated = All
	ok, err = f.Matches([]any{"x", "y"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilterLike(t *testing.T) {
	f := Filter{Path: mustPath(t, "text"), Op: OpLike, Value: "hel%"}
	ok, err := f.Matches("hello")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.Matches("world")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilterExists(t *testing.T) {
	f := Filter{Path: mustPath(t, "text"), Op: OpExists}
	ok, err := f.Matches(nil)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = f.Matches("present")
	require.NoError(t, err)
	require.True(t, ok)
}
