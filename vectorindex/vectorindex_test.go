package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddAndBruteForceTopK(t *testing.T) {
	idx := NewIndex(DefaultConfig(2))
	require.NoError(t, idx.Add("a", []float32{1, 0}))
	require.NoError(t, idx.Add("b", []float32{0, 1}))
	require.NoError(t, idx.Add("c", []float32{0.9, 0.1}))

	results, err := idx.TopK([]float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "a", results[0].RowID)
	require.Equal(t, "c", results[1].RowID)
}

func TestBuildThenGraphTopKAgreesWithBruteForce(t *testing.T) {
	idx := NewIndex(DefaultConfig(2))
	vectors := map[string][]float32{
		"a": {1, 0}, "b": {0, 1}, "c": {0.9, 0.1}, "d": {-1, 0}, "e": {0.5, 0.5},
	}
	for id, v := range vectors {
		require.NoError(t, idx.Add(id, v))
	}
	require.NoError(t, idx.Build(context.Background()))

	got, err := idx.TopK([]float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].RowID)
}

func TestTopKRestrictKeys(t *testing.T) {
	idx := NewIndex(DefaultConfig(2))
	require.NoError(t, idx.Add("a", []float32{1, 0}))
	require.NoError(t, idx.Add("b", []float32{0.9, 0.1}))

	results, err := idx.TopK([]float32{1, 0}, 2, map[string]bool{"b": true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "b", results[0].RowID)
}

func TestDimensionMismatchIsError(t *testing.T) {
	idx := NewIndex(DefaultConfig(3))
	err := idx.Add("a", []float32{1, 0})
	require.Error(t, err)
}

func TestReAddReplacesVector(t *testing.T) {
	idx := NewIndex(DefaultConfig(2))
	require.NoError(t, idx.Add("a", []float32{1, 0}))
	require.NoError(t, idx.Add("a", []float32{0, 1}))
	require.Equal(t, 1, idx.Count())

	results, err := idx.TopK([]float32{0, 1}, 1, nil)
	require.NoError(t, err)
	require.Equal(t, "a", results[0].RowID)
}

func TestStoreSwapIsAtomic(t *testing.T) {
	gen1 := NewIndex(DefaultConfig(2))
	require.NoError(t, gen1.Add("a", []float32{1, 0}))
	store := NewStore(gen1)
	require.Equal(t, 1, store.Count())

	gen2 := NewIndex(DefaultConfig(2))
	require.NoError(t, gen2.Add("a", []float32{1, 0}))
	require.NoError(t, gen2.Add("b", []float32{0, 1}))
	store.Swap(gen2)
	require.Equal(t, 2, store.Count())
}
