package signal

import (
	"context"
	"unicode/utf8"

	"github.com/lilac-data/lilac/schema"
)

// LengthSignal is a built-in TextSignal emitting the rune length of its
// input string, the simplest possible signal and a smoke test for the
// executor's shard-and-write path.
type LengthSignal struct{}

// NewLengthSignal is the Constructor registered under "text_length".
func NewLengthSignal(params map[string]any) (Signal, error) {
	return &LengthSignal{}, nil
}

func (s *LengthSignal) Descriptor() Descriptor {
	return Descriptor{
		Name:             "text_length",
		InputType:        InputText,
		LocalBatchSize:   1024,
		LocalParallelism: 4,
		ExecutionKind:    Processes,
	}
}

func (s *LengthSignal) Fields() *schema.Field { return schema.NewLeaf(schema.Int32) }

func (s *LengthSignal) Setup(ctx context.Context) error    { return nil }
func (s *LengthSignal) Teardown(ctx context.Context) error { return nil }

func (s *LengthSignal) Compute(ctx context.Context, batch []string) ([]any, error) {
	out := make([]any, len(batch))
	for i, text := range batch {
		out[i] = utf8.RuneCountInString(text)
	}
	return out, nil
}
