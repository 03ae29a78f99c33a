package signal

import (
	"context"
	"testing"

	"github.com/lilac-data/lilac/vectorindex"
	"github.com/stretchr/testify/require"
)

// TestEmbeddingModelSignalDependency reproduces spec.md's scenario 4
// acceptance test: a fixed embedding mapping feeding a sum-of-embedding
// ModelSignal yields {1: 1.0, 2: 2.0}.
func TestEmbeddingModelSignalDependency(t *testing.T) {
	idx := vectorindex.NewIndex(vectorindex.DefaultConfig(3))
	require.NoError(t, idx.Add("1", []float32{1, 0, 0}))
	require.NoError(t, idx.Add("2", []float32{1, 1, 0}))
	store := vectorindex.NewStore(idx)

	modelSig := &SumEmbeddingModelSignal{}
	out, err := modelSig.VectorCompute(context.Background(), []string{"1", "2"}, store)
	require.NoError(t, err)
	require.Equal(t, []any{float64(1), float64(2)}, out)
}

func TestHashEmbeddingSignalIsDeterministic(t *testing.T) {
	sig, err := NewHashEmbeddingSignal(map[string]any{"dims": 4})
	require.NoError(t, err)
	emb := sig.(*HashEmbeddingSignal)

	out1, err := emb.Compute(context.Background(), []string{"hello"})
	require.NoError(t, err)
	out2, err := emb.Compute(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Equal(t, out1, out2)
	require.Len(t, out1[0], 1)
	require.Len(t, out1[0][0].Vector, 4)
}
