package flatten

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlattenUnflattenRagged(t *testing.T) {
	// [[1,2],[[3]],[4,5,5]]
	input := []any{
		[]any{1, 2},
		[]any{[]any{3}},
		[]any{4, 5, 5},
	}

	items := Flatten(input)
	vals := Values(items)
	require.Equal(t, []any{1, 2, 3, 4, 5, 5}, vals)

	rebuilt := Unflatten(vals, input)
	require.Equal(t, input, rebuilt)
}

func TestFlattenBareScalar(t *testing.T) {
	items := Flatten("hello")
	require.Len(t, items, 1)
	require.Empty(t, items[0].Trail)
	require.Equal(t, "hello", items[0].Value)

	rebuilt := Unflatten(Values(items), "hello")
	require.Equal(t, "hello", rebuilt)
}

func TestBatchedComputeAlignment(t *testing.T) {
	input := []any{
		[]any{1},
		[]any{2, 3},
		[]any{4, 5},
	}
	items := Flatten(input)
	vals := Values(items)

	square := func(xs []any) []any {
		out := make([]any, len(xs))
		for i, x := range xs {
			n := x.(int)
			out[i] = n * n
		}
		return out
	}

	const batchSize = 2
	results := make([]any, 0, len(vals))
	for i := 0; i < len(vals); i += batchSize {
		end := i + batchSize
		if end > len(vals) {
			end = len(vals)
		}
		results = append(results, square(vals[i:end])...)
	}

	rebuilt := Unflatten(results, input)
	require.Equal(t, []any{
		[]any{1},
		[]any{4, 9},
		[]any{16, 25},
	}, rebuilt)
}
