package store

import (
	"context"

	"github.com/lilac-data/lilac/schema"
)

// SourceRow is one record yielded by a Source before it has been assigned
// a row id or reconciled against a schema. Values are keyed by top-level
// field name; nested structure uses map[string]any / []any exactly as
// schema.ExtractAtPath expects.
type SourceRow struct {
	RowID  RowID
	Values map[string]any
}

// Source is the collaborator contract a dataset ingests from (spec.md
// §6): something that can describe its own shape and stream rows. The
// core assigns row ids for rows that arrive without one.
//
// Grounded on the teacher's ingest.Source interface (internal/ingest
// /interfaces.go), which separates "describe the shape" from "stream the
// rows" the same way.
type Source interface {
	Name() string
	Schema(ctx context.Context) (*schema.Field, error)
	Rows(ctx context.Context) (<-chan SourceRow, <-chan error)
}
