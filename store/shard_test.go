package store

import (
	"testing"

	"github.com/lilac-data/lilac/schema"
	"github.com/stretchr/testify/require"
)

func TestWriteLoadShardRoundTrip(t *testing.T) {
	fs := NewMemFilesystem()
	data := &shardFile{
		Committed: true,
		Schema:    schema.NewLeaf(schema.String),
		Rows: []shardRow{
			{RowID: "a", Values: map[string]any{"text": "hi"}},
		},
	}
	require.NoError(t, writeShard(fs, "source-00000.json", data))

	loaded, err := loadShard(fs, "source-00000.json")
	require.NoError(t, err)
	require.True(t, loaded.committed())

	v, ok := loaded.lookup("a")
	require.True(t, ok)
	require.Equal(t, "hi", v["text"])
}

func TestLoadShardMissingFileIsCorrupt(t *testing.T) {
	fs := NewMemFilesystem()
	_, err := loadShard(fs, "does-not-exist.json")
	require.Error(t, err)
	var corrupt *CorruptShardError
	require.ErrorAs(t, err, &corrupt)
}

func TestCorruptShardIsolatedFromOtherShards(t *testing.T) {
	fs := NewMemFilesystem()
	good := &shardFile{Committed: true, Schema: schema.NewLeaf(schema.String),
		Rows: []shardRow{{RowID: "good", Values: map[string]any{"text": "ok"}}}}
	require.NoError(t, writeShard(fs, "source-00000.json", good))

	f, err := fs.Create("source-00001.json")
	require.NoError(t, err)
	_, err = f.Write([]byte("{not valid json"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	m := &manifestFile{
		Schema:       schema.NewLeaf(schema.String),
		SourceShard:  []string{"source-00000.json", "source-00001.json"},
		ColumnShards: map[string][]string{},
	}
	require.NoError(t, writeManifest(fs, m))

	ds, err := Open(fs)
	require.NoError(t, err)

	var gotErrs []error
	rows, err := ds.IterRows(func(e error) { gotErrs = append(gotErrs, e) })
	require.NoError(t, err)

	var got []Row
	for r := range rows {
		got = append(got, r)
	}
	require.Len(t, got, 1)
	require.Equal(t, "good", got[0].RowID)
	require.Len(t, gotErrs, 1)
}
