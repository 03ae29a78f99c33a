// Package executor implements Lilac's enrichment executor (spec.md 4.E):
// given a signal instance and an input path, it resolves dependencies,
// computes the output schema, shards the input, and writes a new
// enrichment column.
//
// Grounded on internal/ingest/engine.go's ingestSQLiteStreaming: a
// single reader goroutine feeds a bounded job channel, a worker pool
// runs a pure compute function per job, and a single collector goroutine
// applies results — generalized here from "parse JSON record, build
// graph nodes" to "read a signal's input batch, compute its output,
// write a dataset column".
package executor

import (
	"fmt"

	"github.com/lilac-data/lilac/schema"
	"github.com/lilac-data/lilac/signal"
)

// EmbeddingDependent is implemented by a ModelSignal that is keyed to a
// particular embedding signal by name (spec.md 4.E step 1: "If the
// signal is a ModelSignal keyed by embedding name E...").
type EmbeddingDependent interface {
	EmbeddingName() string
}

// SplitterDependent is implemented by an EmbeddingSignal that needs its
// input chunked by a named SplitterSignal before embedding (spec.md 4.E
// step 1: "If E in turn declares a splitter dependency...").
type SplitterDependent interface {
	SplitterName() string
}

// Step is one scheduled signal run within a Plan.
type Step struct {
	SignalName string
	Params     map[string]any
	InputPath  string
	OutputPath string
}

// Plan is the ordered, acyclic sequence of signal runs needed to satisfy
// one requested enrichment (spec.md 4.E: "Dependency resolution is a
// directed-acyclic plan; cycles are a configuration error.").
type Plan struct {
	Steps []Step
}

// CycleError reports a dependency cycle detected while building a Plan.
type CycleError struct {
	SignalName string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("executor: dependency cycle detected at signal %q", e.SignalName)
}

// BuildPlan resolves the dependency chain for running signalName over
// inputPath, in the order the executor must run them: splitter (if any),
// then embedding (if any), then the requested signal itself.
func BuildPlan(reg *signal.Registry, signalName string, params map[string]any, inputPath string) (*Plan, error) {
	visited := map[string]bool{}
	var steps []Step
	if err := resolveInto(reg, signalName, params, inputPath, visited, &steps); err != nil {
		return nil, err
	}
	return &Plan{Steps: steps}, nil
}

func resolveInto(reg *signal.Registry, signalName string, params map[string]any, inputPath string, visited map[string]bool, steps *[]Step) error {
	if visited[signalName] {
		return &CycleError{SignalName: signalName}
	}
	visited[signalName] = true

	sig, err := reg.Build(signalName, params)
	if err != nil {
		return err
	}

	if dep, ok := sig.(EmbeddingDependent); ok {
		embName := dep.EmbeddingName()
		if err := resolveInto(reg, embName, nil, inputPath, visited, steps); err != nil {
			return err
		}
	}
	if dep, ok := sig.(SplitterDependent); ok {
		splitName := dep.SplitterName()
		if splitName != "" {
			if err := resolveInto(reg, splitName, nil, inputPath, visited, steps); err != nil {
				return err
			}
		}
	}

	*steps = append(*steps, Step{
		SignalName: signalName,
		Params:     params,
		InputPath:  inputPath,
		OutputPath: defaultOutputPath(inputPath, signalName),
	})
	return nil
}

// defaultOutputPath names the output column "{input_leaf}__{signal.name}"
// (spec.md 4.E step 2). The result is a top-level column name: for a
// nested input path such as "chunks.*.text" the parent segments are
// dropped ("text__{signal.name}"), so the column is not placed beside
// the input leaf.
func defaultOutputPath(inputPath, signalName string) string {
	path, err := schema.NormalizePath(inputPath)
	if err != nil || len(path) == 0 {
		return signalName
	}
	leaf := path[len(path)-1]
	return leaf.String() + "__" + signalName
}
