package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/lilac-data/lilac/schema"
)

// shardRowLimit bounds how many rows accumulate into a single shard file
// before a new one is started, keeping any one JSON document (and any one
// CorruptShardError blast radius) bounded regardless of dataset size.
const shardRowLimit = 10_000

// Dataset is a columnar, shard-addressed table: a fixed source schema
// plus zero or more enrichment columns added after the fact, joined by
// row id at read time (spec.md §4.B). It is the core's on-disk
// representation of one loaded collection.
//
// Grounded on the teacher's SQLiteGraph as "one struct owning a
// filesystem handle plus a manifest of what's in it", generalized from a
// single SQLite file to a shard-and-manifest layout so enrichments can be
// added as new files rather than rewriting the source in place.
type Dataset struct {
	fs       billy.Filesystem
	manifest *manifestFile
}

// Create ingests every row from src into a brand-new dataset rooted at
// fs. fs must be empty; use Open to load an existing dataset.
func Create(ctx context.Context, fs billy.Filesystem, src Source) (*Dataset, error) {
	rootSchema, err := src.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("read source schema: %w", err)
	}

	rowsCh, errCh := src.Rows(ctx)

	var shardPaths []string
	buf := make([]shardRow, 0, shardRowLimit)
	shardIndex := 0

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		path := nextShardPath("source", shardIndex)
		shardIndex++
		data := &shardFile{Schema: rootSchema, Rows: buf}
		if err := writeShard(fs, path, data); err != nil {
			return err
		}
		data.Committed = true
		if err := writeShard(fs, path, data); err != nil {
			return err
		}
		shardPaths = append(shardPaths, path)
		buf = make([]shardRow, 0, shardRowLimit)
		return nil
	}

	for row := range rowsCh {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		id := row.RowID
		if id == "" {
			id = NewRowID()
		}
		buf = append(buf, shardRow{RowID: id, Values: row.Values})
		if len(buf) >= shardRowLimit {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Name(), err)
	}

	m := &manifestFile{
		Schema:       rootSchema,
		Source:       &SourceDescriptor{Name: src.Name()},
		SourceShard:  shardPaths,
		ColumnShards: map[string][]string{},
	}
	if err := writeManifest(fs, m); err != nil {
		return nil, err
	}
	return &Dataset{fs: fs, manifest: m}, nil
}

// Open loads a dataset previously written by Create, without touching
// source data again.
func Open(fs billy.Filesystem) (*Dataset, error) {
	m, err := loadManifest(fs)
	if err != nil {
		return nil, err
	}
	return &Dataset{fs: fs, manifest: m}, nil
}

// Manifest returns a read-only snapshot of the dataset's current schema
// and shard layout.
func (d *Dataset) Manifest() Manifest {
	return d.manifest.snapshot()
}

func (d *Dataset) loadSourceShards() ([]*Shard, []error) {
	var shards []*Shard
	var errs []error
	for _, p := range d.manifest.SourceShard {
		s, err := loadShard(d.fs, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if s.committed() {
			shards = append(shards, s)
		}
	}
	return shards, errs
}

func (d *Dataset) loadColumnShards(field string) ([]*Shard, []error) {
	var shards []*Shard
	var errs []error
	for _, p := range d.manifest.ColumnShards[field] {
		s, err := loadShard(d.fs, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if s.committed() {
			shards = append(shards, s)
		}
	}
	return shards, errs
}

// Row is one joined record: its stable id plus the merged struct of
// source values and every committed enrichment column.
type Row struct {
	RowID  RowID
	Values map[string]any
}

// IterRows streams every row in the dataset, merging source values with
// every enrichment column added via AddColumn. A corrupt source shard is
// skipped (and reported via onError, if non-nil) rather than aborting
// the whole iteration, per spec.md §7's shard-isolation requirement.
func (d *Dataset) IterRows(onError func(error)) (<-chan Row, error) {
	sourceShards, errs := d.loadSourceShards()
	for _, e := range errs {
		if onError != nil {
			onError(e)
		}
	}

	columnShardsByField := map[string][]*Shard{}
	for field := range d.manifest.ColumnShards {
		shards, errs := d.loadColumnShards(field)
		for _, e := range errs {
			if onError != nil {
				onError(e)
			}
		}
		columnShardsByField[field] = shards
	}

	out := make(chan Row)
	go func() {
		defer close(out)
		for _, shard := range sourceShards {
			for _, id := range shard.rowIDs() {
				values, ok := shard.lookup(id)
				if !ok {
					continue
				}
				merged := make(map[string]any, len(values)+len(columnShardsByField))
				for k, v := range values {
					merged[k] = v
				}
				for field, shards := range columnShardsByField {
					for _, cs := range shards {
						if v, ok := cs.lookup(id); ok {
							merged[field] = v["value"]
							break
						}
					}
				}
				out <- Row{RowID: id, Values: merged}
			}
		}
	}()
	return out, nil
}

// Get resolves one row by id, merging in enrichment columns the same way
// IterRows does.
func (d *Dataset) Get(id RowID) (Row, error) {
	sourceShards, errs := d.loadSourceShards()
	if len(errs) > 0 && len(sourceShards) == 0 {
		return Row{}, errs[0]
	}
	for _, shard := range sourceShards {
		values, ok := shard.lookup(id)
		if !ok {
			continue
		}
		merged := make(map[string]any, len(values))
		for k, v := range values {
			merged[k] = v
		}
		for field := range d.manifest.ColumnShards {
			shards, _ := d.loadColumnShards(field)
			for _, cs := range shards {
				if v, ok := cs.lookup(id); ok {
					merged[field] = v["value"]
					break
				}
			}
		}
		return Row{RowID: id, Values: merged}, nil
	}
	return Row{}, &ErrRowNotFound{RowID: id}
}

// ColumnWriter accumulates one enrichment column's values before they are
// committed to a new shard via Finish. Created by Dataset.AddColumn.
type ColumnWriter struct {
	ds    *Dataset
	field string
	buf   []shardRow
	paths []string
	index int
}

// AddColumn begins writing a new enrichment column rooted at field
// (spec.md §4.B: "adding a column never rewrites existing shards"). field
// must not already exist in the manifest's column shards; re-running an
// enrichment after deleting its prior column shards is how overwrite is
// implemented (spec.md §4.E, "overwrite-gated idempotence").
func (d *Dataset) AddColumn(field string) (*ColumnWriter, error) {
	if _, exists := d.manifest.ColumnShards[field]; exists {
		return nil, fmt.Errorf("column %q already exists; remove it before re-adding", field)
	}
	return &ColumnWriter{ds: d, field: field, buf: make([]shardRow, 0, shardRowLimit)}, nil
}

// Put stages one row's enrichment value.
func (w *ColumnWriter) Put(id RowID, value any) error {
	w.buf = append(w.buf, shardRow{RowID: id, Values: map[string]any{"value": value}})
	if len(w.buf) >= shardRowLimit {
		return w.flush()
	}
	return nil
}

func (w *ColumnWriter) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	path := nextShardPath("col-"+sanitizeFieldName(w.field), w.index)
	w.index++
	data := &shardFile{RootField: w.field, Rows: w.buf}
	if err := writeShard(w.ds.fs, path, data); err != nil {
		return err
	}
	data.Committed = true
	if err := writeShard(w.ds.fs, path, data); err != nil {
		return err
	}
	w.paths = append(w.paths, path)
	w.buf = make([]shardRow, 0, shardRowLimit)
	return nil
}

// Finish flushes any buffered rows and registers the new column's shards
// in the manifest, committing it atomically.
func (w *ColumnWriter) Finish(fieldSchema *schema.Field) error {
	if err := w.flush(); err != nil {
		return err
	}
	m := *w.ds.manifest
	cs := make(map[string][]string, len(m.ColumnShards)+1)
	for k, v := range m.ColumnShards {
		cs[k] = v
	}
	cs[w.field] = w.paths
	m.ColumnShards = cs
	m.Schema = mergeColumnSchema(m.Schema, w.field, fieldSchema)
	if err := writeManifest(w.ds.fs, &m); err != nil {
		return err
	}
	w.ds.manifest = &m
	return nil
}

func mergeColumnSchema(root *schema.Field, field string, col *schema.Field) *schema.Field {
	updated := root.Clone()
	if updated.Fields == nil {
		updated.Fields = map[string]*schema.Field{}
	}
	updated.Fields[field] = col
	return updated
}

func sanitizeFieldName(field string) string {
	out := []rune(field)
	for i, r := range out {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			out[i] = '_'
		}
	}
	return string(out)
}

// SelectRows evaluates every filter against every row (AND semantics)
// and streams the matching rows, grounding spec.md §4.G's "select rows"
// query on this dataset's own row-merge logic rather than a separate
// index.
func (d *Dataset) SelectRows(filters []Filter, onError func(error)) (<-chan Row, error) {
	rows, err := d.IterRows(onError)
	if err != nil {
		return nil, err
	}
	out := make(chan Row)
	go func() {
		defer close(out)
		for row := range rows {
			ok, err := matchesAll(row, filters)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if ok {
				out <- row
			}
		}
	}()
	return out, nil
}

func matchesAll(row Row, filters []Filter) (bool, error) {
	for _, f := range filters {
		v, err := schema.ExtractAtPath(row.Values, f.Path)
		if err != nil {
			return false, err
		}
		ok, err := f.Matches(v)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// RowIDsSorted returns every committed row id in the dataset in sorted
// order, primarily useful for tests and for building a deterministic
// vector-index Add order.
func (d *Dataset) RowIDsSorted() ([]RowID, []error) {
	shards, errs := d.loadSourceShards()
	var ids []RowID
	for _, s := range shards {
		ids = append(ids, s.rowIDs()...)
	}
	sort.Strings(ids)
	return ids, errs
}
