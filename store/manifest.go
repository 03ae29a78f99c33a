package store

import (
	"encoding/json"
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/lilac-data/lilac/schema"
)

// SourceDescriptor records which Source a dataset was ingested from and
// with what configuration, so a dataset can be reloaded or re-synced
// without the caller re-specifying the source (spec.md §6).
type SourceDescriptor struct {
	Name   string         `json:"name"`
	Config map[string]any `json:"config,omitempty"`
}

// manifestFile is the top-level, atomically-swapped description of a
// dataset: its schema, its source, and the shard files that make it up.
// Grounded on the teacher's control.go generation record, generalized
// from an mmap'd counter to a small JSON document since a dataset's
// manifest changes far less often than a live ingestion loop's cursor.
type manifestFile struct {
	Schema      *schema.Field `json:"schema"`
	Source      *SourceDescriptor `json:"source,omitempty"`
	SourceShard []string      `json:"source_shards"`
	ColumnShards map[string][]string `json:"column_shards,omitempty"` // enrichment root field -> shard paths
}

const manifestPath = "manifest.json"

func loadManifest(fs billy.Filesystem) (*manifestFile, error) {
	f, err := fs.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	var m manifestFile
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.ColumnShards == nil {
		m.ColumnShards = map[string][]string{}
	}
	return &m, nil
}

// writeManifest replaces the manifest via write-new-then-rename, the same
// atomic-swap discipline as writeShard, so a reader never observes a
// half-written manifest (spec.md §5).
func writeManifest(fs billy.Filesystem, m *manifestFile) error {
	tmp, err := fs.TempFile("", "lilac-manifest-*")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	if err := json.NewEncoder(tmp).Encode(m); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("close temp manifest: %w", err)
	}
	if err := fs.Rename(tmpName, manifestPath); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("rename manifest into place: %w", err)
	}
	return nil
}

// Manifest is the public, read-only snapshot returned by Dataset.Manifest.
type Manifest struct {
	Schema       *schema.Field
	Source       *SourceDescriptor
	SourceShards []string
	ColumnShards map[string][]string
}

func (m *manifestFile) snapshot() Manifest {
	cs := make(map[string][]string, len(m.ColumnShards))
	for k, v := range m.ColumnShards {
		cp := make([]string, len(v))
		copy(cp, v)
		cs[k] = cp
	}
	return Manifest{
		Schema:       m.Schema,
		Source:       m.Source,
		SourceShards: append([]string(nil), m.SourceShard...),
		ColumnShards: cs,
	}
}
