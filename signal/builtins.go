package signal

// NewBuiltinRegistry returns a Registry pre-populated with Lilac's
// built-in signals. Callers needing a clean registry for tests use
// NewRegistry directly and register only what they need.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	builtins := map[string]Constructor{
		"text_length":     NewLengthSignal,
		"regex_count":     NewRegexSignal,
		"sentences":       NewSentenceSplitterSignal,
		"hash_embedding":  NewHashEmbeddingSignal,
		"embedding_sum":   NewSumEmbeddingModelSignal,
	}
	for name, ctor := range builtins {
		if err := r.Register(name, ctor); err != nil {
			panic(err) // unreachable: builtins is a fixed, non-duplicated map literal
		}
	}
	return r
}
