package store

import (
	"context"
	"testing"

	"github.com/lilac-data/lilac/schema"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name string
	rows []SourceRow
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Schema(ctx context.Context) (*schema.Field, error) {
	return schema.NewStruct(map[string]*schema.Field{
		"text": schema.NewLeaf(schema.String),
	}), nil
}

func (f *fakeSource) Rows(ctx context.Context) (<-chan SourceRow, <-chan error) {
	rowsCh := make(chan SourceRow)
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

func newTestDataset(t *testing.T, rows []SourceRow) *Dataset {
	t.Helper()
	fs := NewMemFilesystem()
	src := &fakeSource{name: "fake", rows: rows}
	ds, err := Create(context.Background(), fs, src)
	require.NoError(t, err)
	return ds
}

func TestCreateAndIterRowsRoundTrip(t *testing.T) {
	ds := newTestDataset(t, []SourceRow{
		{RowID: "r1", Values: map[string]any{"text": "hello"}},
		{RowID: "r2", Values: map[string]any{"text": "world"}},
	})

	rows, err := ds.IterRows(nil)
	require.NoError(t, err)

	var got []Row
	for r := range rows {
		got = append(got, r)
	}
	require.Len(t, got, 2)
}

func TestRowIDsAssignedWhenMissing(t *testing.T) {
	ds := newTestDataset(t, []SourceRow{
		{Values: map[string]any{"text": "a"}},
		{Values: map[string]any{"text": "b"}},
	})
	ids, errs := ds.RowIDsSorted()
	require.Empty(t, errs)
	require.Len(t, ids, 2)
	require.NotEqual(t, ids[0], ids[1])
}

func TestAddColumnJoinsByRowID(t *testing.T) {
	ds := newTestDataset(t, []SourceRow{
		{RowID: "r1", Values: map[string]any{"text": "hello"}},
		{RowID: "r2", Values: map[string]any{"text": "world"}},
	})

	w, err := ds.AddColumn("text_length")
	require.NoError(t, err)
	require.NoError(t, w.Put("r1", 5))
	require.NoError(t, w.Put("r2", 5))
	require.NoError(t, w.Finish(schema.NewLeaf(schema.Int32)))

	row, err := ds.Get("r1")
	require.NoError(t, err)
	require.Equal(t, "hello", row.Values["text"])
	require.Equal(t, 5, row.Values["text_length"])

	require.Contains(t, ds.Manifest().ColumnShards, "text_length")
}

func TestAddColumnRejectsDuplicateField(t *testing.T) {
	ds := newTestDataset(t, []SourceRow{{RowID: "r1", Values: map[string]any{"text": "hi"}}})
	w, err := ds.AddColumn("dup")
	require.NoError(t, err)
	require.NoError(t, w.Put("r1", 1))
	require.NoError(t, w.Finish(schema.NewLeaf(schema.Int32)))

	_, err = ds.AddColumn("dup")
	require.Error(t, err)
}

func TestGetMissingRowReturnsNotFound(t *testing.T) {
	ds := newTestDataset(t, []SourceRow{{RowID: "r1", Values: map[string]any{"text": "hi"}}})
	_, err := ds.Get("nonexistent")
	require.Error(t, err)
	var notFound *ErrRowNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestSelectRowsAppliesFilters(t *testing.T) {
	ds := newTestDataset(t, []SourceRow{
		{RowID: "r1", Values: map[string]any{"text": "hello"}},
		{RowID: "r2", Values: map[string]any{"text": "world"}},
	})
	path, err := schema.NormalizePath("text")
	require.NoError(t, err)

	rows, err := ds.SelectRows([]Filter{{Path: path, Op: OpEquals, Value: "hello"}}, nil)
	require.NoError(t, err)

	var got []Row
	for r := range rows {
		got = append(got, r)
	}
	require.Len(t, got, 1)
	require.Equal(t, "r1", got[0].RowID)
}

func TestUncommittedShardIsInvisibleToReaders(t *testing.T) {
	fs := NewMemFilesystem()
	data := &shardFile{
		Committed: false,
		Schema:    schema.NewLeaf(schema.String),
		Rows:      []shardRow{{RowID: "r1", Values: map[string]any{"text": "ghost"}}},
	}
	require.NoError(t, writeShard(fs, "source-00000.json", data))

	m := &manifestFile{
		Schema:       schema.NewLeaf(schema.String),
		SourceShard:  []string{"source-00000.json"},
		ColumnShards: map[string][]string{},
	}
	require.NoError(t, writeManifest(fs, m))

	ds, err := Open(fs)
	require.NoError(t, err)

	_, err = ds.Get("r1")
	require.Error(t, err)
}
