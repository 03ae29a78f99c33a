package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/lilac-data/lilac/schema"
	sig "github.com/lilac-data/lilac/signal"
	"github.com/lilac-data/lilac/store"
	"github.com/lilac-data/lilac/vectorindex"
)

// Executor runs Plans against a Dataset, optionally populating a vector
// index for embedding signals.
type Executor struct {
	registry *sig.Registry
	workers  int
}

// New builds an Executor. workers <= 0 defaults to runtime.NumCPU(),
// mirroring ingestSQLiteStreaming's numWorkers := runtime.NumCPU().
func New(registry *sig.Registry, workers int) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Executor{registry: registry, workers: workers}
}

// RunOptions governs one Run call.
type RunOptions struct {
	Overwrite bool
	Vectors   *vectorindex.Store // populated target for EmbeddingSignal output; may be nil
}

// Progress reports incremental counts as a plan executes, consumed by
// the task manager (4.I) for per-subtask status.
type Progress struct {
	Step      Step
	Completed int
	Total     int
}

// Run executes every step of plan in order against ds, skipping any step
// whose output column already exists with a signal descriptor of the same
// signal name when opts.Overwrite is false (spec.md 4.E step 6,
// idempotence). Only the name is compared: a column produced by the same
// signal with different params also counts as up to date.
func (e *Executor) Run(ctx context.Context, ds *store.Dataset, plan *Plan, opts RunOptions, onProgress func(Progress)) error {
	for _, step := range plan.Steps {
		if !opts.Overwrite && columnUpToDate(ds, step) {
			continue
		}
		if err := e.runStep(ctx, ds, step, opts, onProgress); err != nil {
			return fmt.Errorf("executor: step %s(%s): %w", step.SignalName, step.InputPath, err)
		}
	}
	return nil
}

func columnUpToDate(ds *store.Dataset, step Step) bool {
	m := ds.Manifest()
	if _, ok := m.ColumnShards[step.OutputPath]; !ok {
		return false
	}
	field, ok := m.Schema.Fields[step.OutputPath]
	if !ok || field.Signal == nil {
		return false
	}
	return field.Signal.Name == step.SignalName
}

func (e *Executor) runStep(ctx context.Context, ds *store.Dataset, step Step, opts RunOptions, onProgress func(Progress)) error {
	instance, err := e.registry.Build(step.SignalName, step.Params)
	if err != nil {
		return err
	}
	if err := instance.Setup(ctx); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer func() { _ = instance.Teardown(ctx) }()

	inputPath, err := schema.NormalizePath(step.InputPath)
	if err != nil {
		return err
	}

	switch s := instance.(type) {
	case sig.TextSignal:
		return e.runText(ctx, ds, step, inputPath, s, onProgress)
	case sig.SplitterSignal:
		return e.runSplitter(ctx, ds, step, inputPath, s, onProgress)
	case sig.EmbeddingSignal:
		return e.runEmbedding(ctx, ds, step, inputPath, s, opts, onProgress)
	case sig.ModelSignal:
		return e.runModel(ctx, ds, step, s, opts, onProgress)
	default:
		return fmt.Errorf("signal %q implements no known signal kind", step.SignalName)
	}
}

type rowBatch struct {
	ids    []string
	texts  []string
}

func (e *Executor) streamBatches(ctx context.Context, ds *store.Dataset, path schema.Path, batchSize int, onErr func(error)) <-chan rowBatch {
	out := make(chan rowBatch)
	go func() {
		defer close(out)
		rows, err := ds.IterRows(onErr)
		if err != nil {
			onErr(err)
			return
		}
		var batch rowBatch
		for row := range rows {
			v, err := schema.ExtractAtPath(row.Values, path)
			if err != nil {
				onErr(err)
				continue
			}
			text, ok := v.(string)
			if !ok {
				continue
			}
			batch.ids = append(batch.ids, row.RowID)
			batch.texts = append(batch.texts, text)
			if len(batch.ids) >= batchSize {
				select {
				case out <- batch:
				case <-ctx.Done():
					return
				}
				batch = rowBatch{}
			}
		}
		if len(batch.ids) > 0 {
			select {
			case out <- batch:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

// runText runs the reader -> worker-pool -> single-collector pattern
// directly adapted from ingestSQLiteStreaming: jobs are batches read off
// the dataset, workers call the signal's pure Compute, and one collector
// goroutine serializes writes to the new column (a ColumnWriter is not
// safe for concurrent use, the same reason the teacher's collector is
// the sole writer to its graph store).
func (e *Executor) runText(ctx context.Context, ds *store.Dataset, step Step, path schema.Path, s sig.TextSignal, onProgress func(Progress)) error {
	desc := s.Descriptor()
	var onErrOnce sync.Once
	var firstErr error
	onErr := func(err error) {
		onErrOnce.Do(func() { firstErr = err })
	}

	jobs := e.streamBatches(ctx, ds, path, desc.LocalBatchSize, onErr)
	type result struct {
		ids    []string
		values []any
		err    error
	}
	results := make(chan result, e.workers)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				vals, err := s.Compute(ctx, batch.texts)
				results <- result{ids: batch.ids, values: vals, err: err}
			}
		}()
	}
	go func() { wg.Wait(); close(results) }()

	writer, err := ds.AddColumn(step.OutputPath)
	if err != nil {
		return err
	}
	completed := 0
	for res := range results {
		if res.err != nil {
			onErr(res.err)
			continue
		}
		for i, id := range res.ids {
			if err := writer.Put(id, res.values[i]); err != nil {
				return err
			}
		}
		completed += len(res.ids)
		if onProgress != nil {
			onProgress(Progress{Step: step, Completed: completed})
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return writer.Finish(schema.CreateEnrichmentSchema(s.Fields(), path, step.SignalName, step.Params))
}

func (e *Executor) runSplitter(ctx context.Context, ds *store.Dataset, step Step, path schema.Path, s sig.SplitterSignal, onProgress func(Progress)) error {
	desc := s.Descriptor()
	var onErrOnce sync.Once
	var firstErr error
	onErr := func(err error) { onErrOnce.Do(func() { firstErr = err }) }

	jobs := e.streamBatches(ctx, ds, path, desc.LocalBatchSize, onErr)
	type result struct {
		ids    []string
		values [][]sig.Span
		err    error
	}
	results := make(chan result, e.workers)
	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				vals, err := s.Split(ctx, batch.texts)
				results <- result{ids: batch.ids, values: vals, err: err}
			}
		}()
	}
	go func() { wg.Wait(); close(results) }()

	writer, err := ds.AddColumn(step.OutputPath)
	if err != nil {
		return err
	}
	completed := 0
	for res := range results {
		if res.err != nil {
			onErr(res.err)
			continue
		}
		for i, id := range res.ids {
			spans := make([]any, len(res.values[i]))
			for j, sp := range res.values[i] {
				spans[j] = map[string]any{"start": sp.Start, "end": sp.End}
			}
			if err := writer.Put(id, spans); err != nil {
				return err
			}
		}
		completed += len(res.ids)
		if onProgress != nil {
			onProgress(Progress{Step: step, Completed: completed})
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return writer.Finish(schema.CreateEnrichmentSchema(s.Fields(), path, step.SignalName, step.Params))
}

// runEmbedding is not sharded on the write side (spec.md §5 "Shared
// resources": "the vector index is single-writer per embedding name;
// concurrent add calls for the same name are serialized by the executor
// by never sharding an embedding signal's write, only its compute").
// Compute still runs on the worker pool; the vectorindex.Add calls all
// happen on the single collector goroutine below.
func (e *Executor) runEmbedding(ctx context.Context, ds *store.Dataset, step Step, path schema.Path, s sig.EmbeddingSignal, opts RunOptions, onProgress func(Progress)) error {
	desc := s.Descriptor()
	var onErrOnce sync.Once
	var firstErr error
	onErr := func(err error) { onErrOnce.Do(func() { firstErr = err }) }

	jobs := e.streamBatches(ctx, ds, path, desc.LocalBatchSize, onErr)
	type result struct {
		ids    []string
		values [][]sig.EmbeddingEntry
		err    error
	}
	results := make(chan result, e.workers)
	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				var vals [][]sig.EmbeddingEntry
				var err error
				if desc.SupportsRemote {
					vals, err = s.ComputeRemote(ctx, batch.texts)
				} else {
					vals, err = s.Compute(ctx, batch.texts)
				}
				results <- result{ids: batch.ids, values: vals, err: err}
			}
		}()
	}
	go func() { wg.Wait(); close(results) }()

	writer, err := ds.AddColumn(step.OutputPath)
	if err != nil {
		return err
	}
	completed := 0
	for res := range results {
		if res.err != nil {
			onErr(res.err)
			continue
		}
		for i, id := range res.ids {
			entries := res.values[i]
			out := make([]any, len(entries))
			for j, entry := range entries {
				out[j] = map[string]any{
					"span":   map[string]any{"start": entry.Span.Start, "end": entry.Span.End},
					"vector": entry.Vector,
				}
			}
			if err := writer.Put(id, out); err != nil {
				return err
			}
			if opts.Vectors != nil {
				addEmbeddingToIndex(opts.Vectors, id, entries)
			}
		}
		completed += len(res.ids)
		if onProgress != nil {
			onProgress(Progress{Step: step, Completed: completed})
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return writer.Finish(schema.CreateEnrichmentSchema(s.Fields(), path, step.SignalName, step.Params))
}

// addEmbeddingToIndex mutates the live index generation in place for a
// single row. This runs only on the collector goroutine, so it never
// races with itself; it is still guarded by the Store's own lock since
// concurrent readers (query.SelectRows / ModelSignal.VectorCompute) may
// be consulting the index at the same time.
func addEmbeddingToIndex(vstore *vectorindex.Store, rowID string, entries []sig.EmbeddingEntry) {
	if len(entries) == 0 {
		return
	}
	_ = vstore.AddVector(rowID, entries[0].Vector)
}

func (e *Executor) runModel(ctx context.Context, ds *store.Dataset, step Step, s sig.ModelSignal, opts RunOptions, onProgress func(Progress)) error {
	if opts.Vectors == nil {
		return fmt.Errorf("model signal %q requires a vector index", step.SignalName)
	}
	ids, errs := ds.RowIDsSorted()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	values, err := s.VectorCompute(ctx, ids, opts.Vectors)
	if err != nil {
		return err
	}

	writer, err := ds.AddColumn(step.OutputPath)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if err := writer.Put(id, values[i]); err != nil {
			return err
		}
	}
	if onProgress != nil {
		onProgress(Progress{Step: step, Completed: len(ids), Total: len(ids)})
	}
	return writer.Finish(s.Fields())
}
