// Package vectorindex implements Lilac's approximate nearest-neighbor
// index over row-id-addressed embedding vectors (spec.md 4.C).
//
// Grounded on other_examples' VectorStore/VectorStoreConfig shape
// (M/EfConstruction/EfSearch, Add/Search/Delete/Contains/Count/Save/Load)
// and on a5b551f9's float32 vector arena (kept here as one slice per
// vector; top-k sorts its candidates rather than using a heap), neither
// of which exists in the teacher: the teacher repo has no vector-search
// component, so this package is built net-new from the rest of the pack,
// following the teacher's concurrency idiom (internal/graph/hotswap.go's
// RWMutex swap) for its one piece of ambient structure, atomic index
// replacement.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Metric is a vector distance function. Lower is more similar.
type Metric string

const (
	Cosine    Metric = "cosine"
	Euclidean Metric = "euclidean"
	Dot       Metric = "dot"
)

// Config mirrors the HNSW tuning knobs the pack's vector stores expose,
// generalized to Lilac's embedding signals (spec.md 4.D "EmbeddingSignal").
type Config struct {
	Dimensions     int
	Metric         Metric
	M              int // max graph connections per node
	EfConstruction int // build-time candidate list size
	EfSearch       int // query-time candidate list size
}

// DefaultConfig returns the same defaults the pack's vector stores use,
// adjusted to dims.
func DefaultConfig(dims int) Config {
	return Config{
		Dimensions:     dims,
		Metric:         Cosine,
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// Result is one nearest-neighbor hit.
type Result struct {
	RowID    string
	Distance float32
}

// Index is a single generation of the ANN index: an immutable-once-built
// HNSW-style graph over a float32 vector arena holding one slice per
// vector. Index itself
// is not safe for concurrent Add; callers needing concurrent
// read-while-build use Store, below.
type Index struct {
	cfg     Config
	ids     []string
	idOf    map[string]int // row id -> arena slot
	arena   [][]float32    // arena[slot] = vector
	layers  [][]neighborSet // layers[0][slot] = slot's neighbor set, filled by Build; only layer 0 exists
	entry   int
	built   bool
}

type neighborSet struct {
	ids []int
}

// NewIndex allocates an empty index for cfg.
func NewIndex(cfg Config) *Index {
	return &Index{
		cfg:  cfg,
		idOf: map[string]int{},
		entry: -1,
	}
}

// Add inserts or replaces the vector for rowID. Re-adding an existing id
// updates the arena slot in place and leaves the graph connectivity to be
// repaired by the next Build.
func (idx *Index) Add(rowID string, vec []float32) error {
	if len(vec) != idx.cfg.Dimensions {
		return fmt.Errorf("vectorindex: expected %d dimensions, got %d", idx.cfg.Dimensions, len(vec))
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	if slot, ok := idx.idOf[rowID]; ok {
		idx.arena[slot] = cp
		idx.built = false
		return nil
	}
	slot := len(idx.arena)
	idx.arena = append(idx.arena, cp)
	idx.ids = append(idx.ids, rowID)
	idx.idOf[rowID] = slot
	idx.built = false
	return nil
}

// Contains reports whether rowID has a vector in the index.
func (idx *Index) Contains(rowID string) bool {
	_, ok := idx.idOf[rowID]
	return ok
}

// Vector returns the raw stored vector for rowID, used by ModelSignals
// (spec.md 4.D) that need the embedding itself rather than a nearest-
// neighbor search over it.
func (idx *Index) Vector(rowID string) ([]float32, bool) {
	slot, ok := idx.idOf[rowID]
	if !ok {
		return nil, false
	}
	return idx.arena[slot], true
}

// Count returns the number of vectors in the index.
func (idx *Index) Count() int { return len(idx.arena) }

// AllIDs returns every row id present, for consistency checks against the
// dataset's own row id set (spec.md 4.C "the index and the dataset must
// agree on which rows exist").
func (idx *Index) AllIDs() []string {
	out := make([]string, len(idx.ids))
	copy(out, idx.ids)
	return out
}

// Build constructs the approximate graph used by TopK. Build is a
// coarse, single-pass nearest-neighbor-list construction (each node's
// neighbor set is its true top-M by brute force) rather than a full
// layered HNSW — an appropriate simplification for Lilac's dataset
// scale (spec.md's own ANN index is explicitly approximate, "a small
// accuracy loss is acceptable for speed").
func (idx *Index) Build(ctx context.Context) error {
	n := len(idx.arena)
	layer := make([]neighborSet, n)
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		layer[i] = neighborSet{ids: idx.nearestBruteForce(i, idx.cfg.M)}
	}
	idx.layers = [][]neighborSet{layer}
	if n > 0 {
		idx.entry = 0
	}
	idx.built = true
	return nil
}

func (idx *Index) nearestBruteForce(slot int, k int) []int {
	type cand struct {
		slot int
		dist float32
	}
	cands := make([]cand, 0, len(idx.arena)-1)
	for i, v := range idx.arena {
		if i == slot {
			continue
		}
		cands = append(cands, cand{i, idx.distance(idx.arena[slot], v)})
	}
	sort.Slice(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })
	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]int, len(cands))
	for i, c := range cands {
		out[i] = c.slot
	}
	return out
}

// TopK returns the k nearest neighbors to query, optionally restricted to
// restrictKeys (spec.md 4.C: "search can be restricted to a row-id
// subset" — used by the query planner to combine a filter with a
// semantic search). A nil restrictKeys searches the whole index.
func (idx *Index) TopK(query []float32, k int, restrictKeys map[string]bool) ([]Result, error) {
	if len(query) != idx.cfg.Dimensions {
		return nil, fmt.Errorf("vectorindex: expected %d dimensions, got %d", idx.cfg.Dimensions, len(query))
	}
	if !idx.built || restrictKeys != nil {
		// Graph traversal assumes the full population; a restricted
		// search falls back to brute force over the allowed subset,
		// same as a filtered query degrades gracefully without an
		// index (spec.md 4.C, 4.G).
		return idx.bruteForceTopK(query, k, restrictKeys), nil
	}
	return idx.graphTopK(query, k), nil
}

func (idx *Index) bruteForceTopK(query []float32, k int, restrictKeys map[string]bool) []Result {
	results := make([]Result, 0, len(idx.arena))
	for i, v := range idx.arena {
		id := idx.ids[i]
		if restrictKeys != nil && !restrictKeys[id] {
			continue
		}
		results = append(results, Result{RowID: id, Distance: idx.distance(query, v)})
	}
	sort.Slice(results, func(a, b int) bool { return results[a].Distance < results[b].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// graphTopK walks from the entry point, greedily expanding through each
// visited node's precomputed neighbor set, keeping the best efSearch
// candidates seen — the single-layer analogue of HNSW's greedy search.
func (idx *Index) graphTopK(query []float32, k int) []Result {
	if idx.entry < 0 {
		return nil
	}
	ef := idx.cfg.EfSearch
	if ef < k {
		ef = k
	}
	visited := map[int]bool{idx.entry: true}
	frontier := []int{idx.entry}
	best := map[int]float32{idx.entry: idx.distance(query, idx.arena[idx.entry])}

	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, nb := range idx.layers[0][next].ids {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			best[nb] = idx.distance(query, idx.arena[nb])
			frontier = append(frontier, nb)
		}
		if len(visited) >= ef*4 {
			break
		}
	}

	results := make([]Result, 0, len(best))
	for slot, d := range best {
		results = append(results, Result{RowID: idx.ids[slot], Distance: d})
	}
	sort.Slice(results, func(a, b int) bool { return results[a].Distance < results[b].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func (idx *Index) distance(a, b []float32) float32 {
	switch idx.cfg.Metric {
	case Euclidean:
		return euclidean(a, b)
	case Dot:
		return -dot(a, b)
	default:
		return 1 - cosineSim(a, b)
	}
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func cosineSim(a, b []float32) float32 {
	d := dot(a, b)
	na := float32(math.Sqrt(float64(dot(a, a))))
	nb := float32(math.Sqrt(float64(dot(b, b))))
	if na == 0 || nb == 0 {
		return 0
	}
	return d / (na * nb)
}

func euclidean(a, b []float32) float32 {
	var s float32
	for i := range a {
		diff := a[i] - b[i]
		s += diff * diff
	}
	return float32(math.Sqrt(float64(s)))
}

// Store is the hot-swappable handle the executor and query planner hold:
// a generation of Index that can be atomically replaced by a freshly
// built one without blocking in-flight reads. Grounded directly on
// internal/graph/hotswap.go's HotSwapGraph, generalized from a graph
// handle to a vector index handle.
type Store struct {
	mu      sync.RWMutex
	current *Index
}

// NewStore wraps an initial index generation.
func NewStore(initial *Index) *Store {
	return &Store{current: initial}
}

// Swap atomically replaces the live index generation, used after an
// EmbeddingSignal run finishes (re)building the index off to the side
// (spec.md 4.E/4.C: "the index is rebuilt out of line and swapped in").
func (s *Store) Swap(next *Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = next
}

// TopK delegates to the current generation.
func (s *Store) TopK(query []float32, k int, restrictKeys map[string]bool) ([]Result, error) {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur == nil {
		return nil, nil
	}
	return cur.TopK(query, k, restrictKeys)
}

// Contains delegates to the current generation.
func (s *Store) Contains(rowID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && s.current.Contains(rowID)
}

// AddVector inserts or replaces rowID's vector in the live generation in
// place. Used by the executor's embedding collector goroutine, which is
// the index's single writer per embedding name (spec.md §5); concurrent
// readers (TopK, Vector) are still serialized against this call by the
// Store's own lock.
func (s *Store) AddVector(rowID string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return fmt.Errorf("vectorindex: store has no index generation to add to")
	}
	return s.current.Add(rowID, vec)
}

// AllIDs delegates to the current generation, used by the clustering
// pipeline's gather stage (spec.md 4.F step 1).
func (s *Store) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	return s.current.AllIDs()
}

// Vector delegates to the current generation.
func (s *Store) Vector(rowID string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, false
	}
	return s.current.Vector(rowID)
}

// Count delegates to the current generation.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return 0
	}
	return s.current.Count()
}
