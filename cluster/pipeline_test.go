package cluster

import (
	"context"
	"testing"

	"github.com/lilac-data/lilac/internal/retry"
	"github.com/lilac-data/lilac/schema"
	sig "github.com/lilac-data/lilac/signal"
	"github.com/lilac-data/lilac/store"
	"github.com/lilac-data/lilac/vectorindex"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	rows []store.SourceRow
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Schema(ctx context.Context) (*schema.Field, error) {
	return schema.NewStruct(map[string]*schema.Field{
		"text": schema.NewLeaf(schema.String),
	}), nil
}

func (f *fakeSource) Rows(ctx context.Context) (<-chan store.SourceRow, <-chan error) {
	rowsCh := make(chan store.SourceRow)
	errCh := make(chan error, 1)
	go func() {
		defer close(rowsCh)
		defer close(errCh)
		for _, r := range f.rows {
			rowsCh <- r
		}
	}()
	return rowsCh, errCh
}

type stubTitler struct{}

func (stubTitler) Title(ctx context.Context, examples []string, maxTokens int) (string, error) {
	return "a title", nil
}

type stubCategorizer struct{}

func (stubCategorizer) Categorize(ctx context.Context, titles []string, maxTokens int) (string, error) {
	return "a category", nil
}

func TestRunPipelineWritesClusterColumn(t *testing.T) {
	fs := store.NewMemFilesystem()
	src := &fakeSource{rows: []store.SourceRow{
		{RowID: "1", Values: map[string]any{"text": "hello"}},
		{RowID: "2", Values: map[string]any{"text": "hello there"}},
		{RowID: "3", Values: map[string]any{"text": "hello again"}},
		{RowID: "4", Values: map[string]any{"text": "goodbye"}},
	}}
	ds, err := store.Create(context.Background(), fs, src)
	require.NoError(t, err)

	reg := sig.NewRegistry()
	require.NoError(t, reg.Register("hash_embedding", sig.NewHashEmbeddingSignal))

	idx := vectorindex.NewIndex(vectorindex.DefaultConfig(16))
	vstore := vectorindex.NewStore(idx)

	for _, row := range src.rows {
		text := row.Values["text"].(string)
		emb := sig.NewHashEmbeddingSignal
		s, err := emb(nil)
		require.NoError(t, err)
		entries, err := s.(sig.EmbeddingSignal).Compute(context.Background(), []string{text})
		require.NoError(t, err)
		require.NoError(t, vstore.AddVector(row.RowID, entries[0][0].Vector))
	}

	opts := Options{
		InputPath:      mustPath(t, "text"),
		OutputField:    "text__cluster",
		MinClusterSize: 1,
		Titler:         stubTitler{},
		Categorizer:    stubCategorizer{},
		Budget:         retry.Budget{MaxAttempts: 1},
	}

	var progressCalls int
	err = Run(context.Background(), ds, vstore, opts, func(completed, total int) { progressCalls++ })
	require.NoError(t, err)
	require.Greater(t, progressCalls, 0)

	row, err := ds.Get("1")
	require.NoError(t, err)
	col, ok := row.Values["text__cluster"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, col, "cluster_id")
	require.Contains(t, col, "cluster_title")
	require.Contains(t, col, "category_title")
}

func mustPath(t *testing.T, s string) schema.Path {
	t.Helper()
	p, err := schema.NormalizePath(s)
	require.NoError(t, err)
	return p
}
