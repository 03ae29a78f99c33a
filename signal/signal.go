// Package signal defines Lilac's plug-in computation taxonomy (spec.md
// 4.D): named, parameterized computations that read dataset columns and
// write enrichment columns.
//
// Grounded on the teacher's GetLanguageProfile/DetectLanguageFromExt
// name-keyed dispatch (internal/ingest/language.go) for the shape of a
// small, explicit registry, generalized from a fixed switch over file
// extensions to an injectable name->constructor map per spec.md's
// REDESIGN FLAG ("Global registries -> process-local tables injected at
// construction").
package signal

import (
	"context"
	"fmt"

	"github.com/lilac-data/lilac/schema"
	"github.com/lilac-data/lilac/vectorindex"
)

// ExecutionKind is the scheduling kind a signal declares (spec.md
// 4.D/4.E: "threads" for I/O-bound/GIL-releasing work, "processes" for
// CPU-bound pure functions). The executor does not read it: every
// signal's batches run on the executor's one goroutine worker pool, and
// no signal is run in a separate process.
type ExecutionKind string

const (
	Threads   ExecutionKind = "threads"
	Processes ExecutionKind = "processes"
)

// InputType is the shape of value a signal's Compute expects per row.
type InputType string

const (
	InputText      InputType = "text"
	InputEmbedding InputType = "embedding"
	InputAny       InputType = "any"
)

// Descriptor is the static metadata every signal declares (spec.md 4.D
// "Each concrete signal declares: unique name; input type; preferred
// local batch size; execution kind...").
type Descriptor struct {
	Name            string
	InputType       InputType
	LocalBatchSize  int
	LocalParallelism int
	ExecutionKind   ExecutionKind
	SupportsRemote  bool
}

// Signal is the base contract every concrete signal implements.
type Signal interface {
	Descriptor() Descriptor
	Fields() *schema.Field
	Setup(ctx context.Context) error
	Teardown(ctx context.Context) error
}

// TextSignal computes over a string and emits any non-embedding field
// (spec.md 4.D table row 1).
type TextSignal interface {
	Signal
	Compute(ctx context.Context, batch []string) ([]any, error)
}

// Span is a character-offset range within a sibling string value
// (schema.Span dtype).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SplitterSignal computes a list of spans over a string (table row 2).
type SplitterSignal interface {
	Signal
	Split(ctx context.Context, batch []string) ([][]Span, error)
}

// Chunk is one (span, text) pair an EmbeddingSignal may consult a
// SplitterSignal for, before embedding each chunk independently.
type Chunk struct {
	Span Span
	Text string
}

// EmbeddingSignal computes a list of (span, vector) entries per input
// string, and supports a remote call (table row 3: "Yes (remote call)").
type EmbeddingSignal interface {
	Signal
	Compute(ctx context.Context, batch []string) ([][]EmbeddingEntry, error)
	ComputeRemote(ctx context.Context, batch []string) ([][]EmbeddingEntry, error)
	Dimensions() int
}

// EmbeddingEntry is one embedded chunk's output.
type EmbeddingEntry struct {
	Span   Span
	Vector []float32
}

// ModelSignal computes over an embedding (via the vector index) or text,
// and may query the index directly for top-k lookups (table row 4).
type ModelSignal interface {
	Signal
	VectorCompute(ctx context.Context, keys []string, index *vectorindex.Store) ([]any, error)
	VectorComputeTopK(ctx context.Context, k int, index *vectorindex.Store, restrictKeys map[string]bool) (map[string][]vectorindex.Result, error)
}

// ClusterMembership is one row's cluster assignment (table row 5).
type ClusterMembership struct {
	ClusterID      int
	MembershipProb float64
}

// ClusterSignal computes per-row cluster metadata from embeddings plus a
// cluster config; it is batched, not streamed per-row, since HDBSCAN
// needs the whole population at once (spec.md 4.D table row 5, 4.F).
type ClusterSignal interface {
	Signal
	ComputeClusters(ctx context.Context, keys []string, vectors [][]float32) ([]ClusterMembership, error)
}

// Constructor builds a fresh Signal instance from decoded parameters.
// Kept as a plain function type (rather than a reflective/JSON-schema'd
// tool description as the teacher's dropped mcp-go dependency would
// imply) because Lilac's signal params are already a plain
// map[string]any by the time a Constructor sees them (decoded from CLI
// flags or JSON upstream), not dispatched through an RPC tool-call
// boundary.
type Constructor func(params map[string]any) (Signal, error)

// Registry is a process-local name->constructor table, constructed and
// passed explicitly rather than held in a package-level var — the
// REDESIGN FLAG's resolution for "global registries -> process-local
// tables injected at construction."
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: map[string]Constructor{}}
}

// Register adds name to the registry. Registering a name twice is a
// configuration error, since it would make signal provenance ambiguous.
func (r *Registry) Register(name string, ctor Constructor) error {
	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("signal: %q already registered", name)
	}
	r.constructors[name] = ctor
	return nil
}

// Build instantiates the named signal with the given params. An unknown
// name returns an *UnknownSignalError (a configuration error in spec.md
// §7's taxonomy).
func (r *Registry) Build(name string, params map[string]any) (Signal, error) {
	ctor, ok := r.constructors[name]
	if !ok {
		return nil, &UnknownSignalError{Name: name}
	}
	return ctor(params)
}

// Names returns every registered signal name.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.constructors))
	for n := range r.constructors {
		out = append(out, n)
	}
	return out
}

// Clear removes every registration. Spec.md 4.D: "clearing is only
// permitted in tests" — enforced by convention (only test files call
// this), not a runtime guard, matching the teacher's own test-only
// helper functions (e.g. graph test fixtures) that carry no production
// caller.
func (r *Registry) Clear() {
	r.constructors = map[string]Constructor{}
}

// UnknownSignalError reports a Build call for an unregistered name.
type UnknownSignalError struct {
	Name string
}

func (e *UnknownSignalError) Error() string {
	return fmt.Sprintf("signal: unknown signal %q", e.Name)
}
