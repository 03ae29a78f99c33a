package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/lilac-data/lilac/schema"
)

// shardRow is one row's worth of a shard's leaf data.
type shardRow struct {
	RowID  RowID          `json:"row_id"`
	Values map[string]any `json:"values"`
}

// shardFile is the on-disk representation of one shard. A source shard
// (written by Create) carries the full row for its columns; an enrichment
// shard (written by AddColumn) carries only the row-id key and the new
// column, per spec.md 4.B.
//
// Committed tracks the Open Question resolution in spec.md §9
// ("incomplete shards"): a shard is written with Committed=false, flipped
// to true only after every row has flushed, and readers skip uncommitted
// shards.
type shardFile struct {
	Committed bool               `json:"committed"`
	Schema    *schema.Field      `json:"schema"`
	RootField string             `json:"root_field,omitempty"` // "" for source shards
	Rows      []shardRow         `json:"rows"`
	rowIndex  map[RowID]int      `json:"-"`
}

// Shard is one columnar file, grounded on the teacher's SQLiteGraph (one
// self-describing file per logical unit of data) but using go-billy's
// Filesystem abstraction (rather than a concrete os path) for its actual
// bytes, so the same Dataset code runs against memfs in tests and osfs in
// production — generalizing internal/ingest/git.go's use of go-billy to
// read a git worktree without touching the real filesystem.
type Shard struct {
	mu   sync.RWMutex
	fs   billy.Filesystem
	path string
	data *shardFile
}

func newShard(fs billy.Filesystem, path string, data *shardFile) *Shard {
	reindex(data)
	return &Shard{fs: fs, path: path, data: data}
}

func reindex(d *shardFile) {
	d.rowIndex = make(map[RowID]int, len(d.Rows))
	for i, r := range d.Rows {
		d.rowIndex[r.RowID] = i
	}
}

// loadShard reads and parses a shard file. A JSON-decode failure (or a
// missing file) is reported as a CorruptShardError rather than propagated
// raw, so callers can isolate it per spec.md §7.
func loadShard(fs billy.Filesystem, path string) (*Shard, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, &CorruptShardError{ShardPath: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	var data shardFile
	dec := json.NewDecoder(f)
	if err := dec.Decode(&data); err != nil {
		return nil, &CorruptShardError{ShardPath: path, Err: err}
	}
	return newShard(fs, path, &data), nil
}

// writeShard serializes data to a temp file and renames it into place,
// adapted from internal/writeback/splice.go's atomic write-then-rename
// discipline (spec.md §5: "the manifest is updated atomically
// (write-new, rename)" — the same rule applies to shard files).
func writeShard(fs billy.Filesystem, path string, data *shardFile) error {
	tmp, err := fs.TempFile("", "lilac-shard-*")
	if err != nil {
		return fmt.Errorf("create temp shard: %w", err)
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("encode shard: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("close temp shard: %w", err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("rename shard into place %s: %w", path, err)
	}
	return nil
}

// rowIDs returns every row id present in this shard, in ascending order.
func (s *Shard) rowIDs() []RowID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]RowID, 0, len(s.data.Rows))
	for _, r := range s.data.Rows {
		ids = append(ids, r.RowID)
	}
	sort.Strings(ids)
	return ids
}

func (s *Shard) lookup(id RowID) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.data.Committed {
		return nil, false
	}
	idx, ok := s.data.rowIndex[id]
	if !ok {
		return nil, false
	}
	return s.data.Rows[idx].Values, true
}

func (s *Shard) committed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Committed
}

func (s *Shard) fieldSchema() *schema.Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Schema
}
