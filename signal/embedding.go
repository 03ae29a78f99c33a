package signal

import (
	"context"

	"github.com/lilac-data/lilac/schema"
	"github.com/lilac-data/lilac/vectorindex"
)

// HashEmbeddingSignal is a built-in, dependency-free EmbeddingSignal: it
// embeds the whole input string as one chunk (span covering the entire
// string) into a small deterministic vector: each rune's code point is
// added to the component at its byte offset modulo the dimensionality.
// It exists so the executor and vector index have a signal to
// exercise without a real remote embedding provider; real deployments
// register a provider-backed EmbeddingSignal under a different name.
type HashEmbeddingSignal struct {
	dims int
}

// NewHashEmbeddingSignal builds a HashEmbeddingSignal. An optional "dims"
// param overrides the default dimensionality.
func NewHashEmbeddingSignal(params map[string]any) (Signal, error) {
	dims := 16
	if raw, ok := params["dims"]; ok {
		if n, ok := raw.(int); ok && n > 0 {
			dims = n
		}
	}
	return &HashEmbeddingSignal{dims: dims}, nil
}

func (s *HashEmbeddingSignal) Descriptor() Descriptor {
	return Descriptor{
		Name:             "hash_embedding",
		InputType:        InputText,
		LocalBatchSize:   256,
		LocalParallelism: 4,
		ExecutionKind:    Threads,
		SupportsRemote:   true,
	}
}

func (s *HashEmbeddingSignal) Fields() *schema.Field {
	return schema.NewRepeated(schema.NewStruct(map[string]*schema.Field{
		"span":   schema.NewLeaf(schema.Span),
		"vector": schema.NewLeaf(schema.Embedding),
	}))
}

func (s *HashEmbeddingSignal) Setup(ctx context.Context) error    { return nil }
func (s *HashEmbeddingSignal) Teardown(ctx context.Context) error { return nil }

func (s *HashEmbeddingSignal) Dimensions() int { return s.dims }

func (s *HashEmbeddingSignal) Compute(ctx context.Context, batch []string) ([][]EmbeddingEntry, error) {
	out := make([][]EmbeddingEntry, len(batch))
	for i, text := range batch {
		out[i] = []EmbeddingEntry{{
			Span:   Span{Start: 0, End: len(text)},
			Vector: s.embed(text),
		}}
	}
	return out, nil
}

// ComputeRemote is identical to Compute for this fixture signal: there is
// no real network boundary, so the "remote" path just runs locally.
func (s *HashEmbeddingSignal) ComputeRemote(ctx context.Context, batch []string) ([][]EmbeddingEntry, error) {
	return s.Compute(ctx, batch)
}

func (s *HashEmbeddingSignal) embed(text string) []float32 {
	v := make([]float32, s.dims)
	for i, r := range text {
		v[i%s.dims] += float32(r)
	}
	return v
}

// SumEmbeddingModelSignal is a built-in ModelSignal computing the sum of
// each embedding vector's components, grounded directly on spec.md's
// §8 scenario 4 acceptance test ("a sum-of-embedding ModelSignal yields
// row-ordered outputs {1:1.0, 2:2.0}").
type SumEmbeddingModelSignal struct{}

// NewSumEmbeddingModelSignal is the Constructor registered under
// "embedding_sum".
func NewSumEmbeddingModelSignal(params map[string]any) (Signal, error) {
	return &SumEmbeddingModelSignal{}, nil
}

func (s *SumEmbeddingModelSignal) Descriptor() Descriptor {
	return Descriptor{
		Name:             "embedding_sum",
		InputType:        InputEmbedding,
		LocalBatchSize:   1024,
		LocalParallelism: 4,
		ExecutionKind:    Threads,
	}
}

func (s *SumEmbeddingModelSignal) Fields() *schema.Field { return schema.NewLeaf(schema.Float64) }

func (s *SumEmbeddingModelSignal) Setup(ctx context.Context) error    { return nil }
func (s *SumEmbeddingModelSignal) Teardown(ctx context.Context) error { return nil }

func (s *SumEmbeddingModelSignal) VectorCompute(ctx context.Context, keys []string, index *vectorindex.Store) ([]any, error) {
	out := make([]any, len(keys))
	for i, key := range keys {
		vec, ok := index.Vector(key)
		if !ok {
			out[i] = nil
			continue
		}
		var sum float64
		for _, c := range vec {
			sum += float64(c)
		}
		out[i] = sum
	}
	return out, nil
}

// VectorComputeTopK is not meaningful for a sum-of-components scorer
// (there is no query vector to rank against); it returns an empty result
// map rather than an error, since a ModelSignal that only ever runs in
// the per-row scoring path (not the semantic-search path of spec.md 4.G)
// legitimately never calls this method.
func (s *SumEmbeddingModelSignal) VectorComputeTopK(ctx context.Context, k int, index *vectorindex.Store, restrictKeys map[string]bool) (map[string][]vectorindex.Result, error) {
	return map[string][]vectorindex.Result{}, nil
}
