// Package query implements Lilac's select-rows planner (spec.md 4.G):
// projection, filters, UDF columns, search bindings, combine-columns, and
// schema preview over a store.Dataset.
//
// Grounded on the teacher's internal/lattice/project.go Project function:
// a pure planner that resolves a result shape from a schema without
// executing a query, generalized here from directory-topology inference
// into select_rows schema preview (PlanSchema, the Go analogue of
// select_rows_schema). Keyword substring matching reuses
// schema.ExtractAtPath's path extraction rather than re-deriving it; see
// that function's doc comment for why it is hand-rolled instead of
// github.com/ohler55/ojg's JSONPath.
package query

import (
	"github.com/lilac-data/lilac/schema"
	sig "github.com/lilac-data/lilac/signal"
	"github.com/lilac-data/lilac/store"
)

// UDFColumn binds a registered signal to an input path, to be computed
// on the fly over the rows a select_rows call produces (spec.md 4.G
// "UDF columns binding a signal to an input path").
type UDFColumn struct {
	SignalName string
	Params     map[string]any
	InputPath  schema.Path
	Alias      string // output column name; defaults to "{leaf}__{signal}" if empty
}

// SearchKind distinguishes the four search binding flavors spec.md 4.G
// names.
type SearchKind string

const (
	SearchKeyword  SearchKind = "keyword"
	SearchSemantic SearchKind = "semantic"
	SearchConcept  SearchKind = "concept"
	SearchMetadata SearchKind = "metadata"
)

// Search is one search binding over Path.
type Search struct {
	Kind  SearchKind
	Path  schema.Path
	Query string    // keyword text, or metadata filter value rendered as a string
	Vector []float32 // semantic query vector; concept search substitutes a concept's stored vector upstream
	TopK  int
}

// Request is one select_rows call's full input (spec.md 4.G).
type Request struct {
	Projection     []schema.Path
	UDFColumns     []UDFColumn
	Filters        []store.Filter
	Searches       []Search
	SortBy         schema.Path
	Offset         int
	Limit          int
	CombineColumns bool
}

// Registry is the subset of signal.Registry query needs to build UDF
// column instances and resolve their output schema for preview.
type Registry interface {
	Build(name string, params map[string]any) (sig.Signal, error)
}
