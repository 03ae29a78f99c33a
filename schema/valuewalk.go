package schema

import "fmt"

// ExtractAtPath walks row (a map[string]any / []any tree shaped like the
// dataset's rows) along path and returns the sub-value found there. A
// Wildcard part passes every element of the current []any through
// unchanged, preserving nesting, so the result retains exactly
// path.WildcardDepth() levels of []any wrapping — the shape
// internal/flatten.Flatten expects as input when the executor streams
// input_path leaves for a signal (spec.md 4.E step 3).
//
// Hand-rolled rather than built on github.com/ohler55/ojg's JSONPath
// (the teacher's internal/ingest/json_walker.go engine): ojg's Expr.Get
// returns a single flattened []any across every matched node, which
// throws away exactly the per-wildcard-level nesting this function's
// callers depend on to rewrap a signal's output. A JSONPath engine built
// to answer "every node matching this selector" is the wrong shape for
// "every node matching this selector, grouped by which repeated-field
// instance it came from".
func ExtractAtPath(row any, path Path) (any, error) {
	return extract(row, path)
}

func extract(v any, path Path) (any, error) {
	if len(path) == 0 {
		return v, nil
	}
	part := path[0]
	rest := path[1:]

	switch part.Kind {
	case FieldName:
		m, ok := v.(map[string]any)
		if !ok {
			if v == nil {
				return nil, nil
			}
			return nil, fmt.Errorf("extract: expected struct at %q, got %T", part.Name, v)
		}
		child, ok := m[part.Name]
		if !ok {
			return nil, nil // absent-value convention: sparse, not an error
		}
		return extract(child, rest)

	case Wildcard:
		list, ok := v.([]any)
		if !ok {
			if v == nil {
				return []any{}, nil
			}
			return nil, fmt.Errorf("extract: expected repeated field, got %T", v)
		}
		out := make([]any, len(list))
		for i, elem := range list {
			r, err := extract(elem, rest)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil

	case Index:
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("extract: expected repeated field, got %T", v)
		}
		if part.Index < 0 || part.Index >= len(list) {
			return nil, nil
		}
		return extract(list[part.Index], rest)
	}
	return nil, fmt.Errorf("extract: unknown path part kind %v", part.Kind)
}
