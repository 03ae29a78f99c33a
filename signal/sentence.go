package signal

import (
	"context"

	"github.com/lilac-data/lilac/schema"
)

// SentenceSplitterSignal is a built-in SplitterSignal producing a list of
// character-offset spans, one per sentence, over the input string.
//
// Its offset bookkeeping is grounded on internal/ingest/sitter_flatten.go's
// node-walk recording structural facts as it descends; here there is no
// parser to walk, so the signal instead advances a cursor through the raw
// string and records [start,end) byte offsets directly, the same
// discipline tree-sitter's own Node.StartByte()/EndByte() would give a
// parsed node.
type SentenceSplitterSignal struct{}

// NewSentenceSplitterSignal is the Constructor registered under "sentences".
func NewSentenceSplitterSignal(params map[string]any) (Signal, error) {
	return &SentenceSplitterSignal{}, nil
}

func (s *SentenceSplitterSignal) Descriptor() Descriptor {
	return Descriptor{
		Name:             "sentences",
		InputType:        InputText,
		LocalBatchSize:   512,
		LocalParallelism: 4,
		ExecutionKind:    Processes,
	}
}

func (s *SentenceSplitterSignal) Fields() *schema.Field {
	return schema.NewRepeated(schema.NewLeaf(schema.Span))
}

func (s *SentenceSplitterSignal) Setup(ctx context.Context) error    { return nil }
func (s *SentenceSplitterSignal) Teardown(ctx context.Context) error { return nil }

func (s *SentenceSplitterSignal) Split(ctx context.Context, batch []string) ([][]Span, error) {
	out := make([][]Span, len(batch))
	for i, text := range batch {
		out[i] = splitSentences(text)
	}
	return out, nil
}

// splitSentences breaks text on '.', '!', '?' followed by whitespace or
// end-of-string, trimming surrounding space from each span but keeping
// offsets relative to the original string.
func splitSentences(text string) []Span {
	var spans []Span
	start := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + 1
		atBoundary := end == len(text)
		if !atBoundary {
			next := text[end]
			atBoundary = next == ' ' || next == '\n' || next == '\t'
		}
		if !atBoundary {
			continue
		}
		spanStart, spanEnd := trimSpan(text, start, end)
		if spanEnd > spanStart {
			spans = append(spans, Span{Start: spanStart, End: spanEnd})
		}
		start = end
	}
	if start < len(text) {
		spanStart, spanEnd := trimSpan(text, start, len(text))
		if spanEnd > spanStart {
			spans = append(spans, Span{Start: spanStart, End: spanEnd})
		}
	}
	return spans
}

func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return start, end
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
