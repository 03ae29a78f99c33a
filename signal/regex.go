package signal

import (
	"context"
	"fmt"
	"regexp"

	"github.com/lilac-data/lilac/schema"
)

// RegexSignal is a built-in TextSignal reporting how many times a
// configured pattern matches the input string.
type RegexSignal struct {
	pattern *regexp.Regexp
}

// NewRegexSignal builds a RegexSignal from a "pattern" string param in
// the plain map[string]any every Constructor receives (spec.md 4.D).
func NewRegexSignal(params map[string]any) (Signal, error) {
	raw, ok := params["pattern"]
	if !ok {
		return nil, fmt.Errorf("signal: regex_count requires a \"pattern\" param")
	}
	pattern, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("signal: regex_count \"pattern\" must be a string, got %T", raw)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("signal: invalid regex pattern %q: %w", pattern, err)
	}
	return &RegexSignal{pattern: re}, nil
}

func (s *RegexSignal) Descriptor() Descriptor {
	return Descriptor{
		Name:             "regex_count",
		InputType:        InputText,
		LocalBatchSize:   1024,
		LocalParallelism: 4,
		ExecutionKind:    Processes,
	}
}

func (s *RegexSignal) Fields() *schema.Field { return schema.NewLeaf(schema.Int32) }

func (s *RegexSignal) Setup(ctx context.Context) error    { return nil }
func (s *RegexSignal) Teardown(ctx context.Context) error { return nil }

func (s *RegexSignal) Compute(ctx context.Context, batch []string) ([]any, error) {
	out := make([]any, len(batch))
	for i, text := range batch {
		out[i] = len(s.pattern.FindAllStringIndex(text, -1))
	}
	return out, nil
}
