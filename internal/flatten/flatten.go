// Package flatten provides the universal flatten/unflatten utility used by
// the enrichment executor to run batched signal compute over ragged,
// wildcard-nested input and re-nest the results using the original shape.
package flatten

// Trail records the index path taken through nested lists to reach a single
// leaf value. An empty trail means the original value was a bare scalar
// (not wrapped in any list).
type Trail []int

// Item pairs a flattened leaf value with the trail needed to put it back.
type Item struct {
	Trail Trail
	Value any
}

// Flatten walks v, a value built from `any` scalars and []any lists
// (arbitrarily nested and ragged), and returns one Item per leaf in
// depth-first order. A bare scalar flattens to a single Item with an empty
// trail, matching scenario 1 in the spec ("hello" -> ["hello"]).
func Flatten(v any) []Item {
	var out []Item
	flattenInto(v, nil, &out)
	return out
}

func flattenInto(v any, trail Trail, out *[]Item) {
	list, ok := v.([]any)
	if !ok {
		// Copy the trail: callers share the backing array across siblings.
		t := make(Trail, len(trail))
		copy(t, trail)
		*out = append(*out, Item{Trail: t, Value: v})
		return
	}
	for i, child := range list {
		flattenInto(child, append(trail, i), out)
	}
}

// Values returns just the leaf values of items, in order, for callers that
// only need to batch inputs through compute(batch).
func Values(items []Item) []any {
	vals := make([]any, len(items))
	for i, it := range items {
		vals[i] = it.Value
	}
	return vals
}

// Unflatten rebuilds the original nested shape from a shape template
// (the value originally passed to Flatten) and a parallel slice of
// possibly-transformed results (same order Flatten produced them in).
//
// unflatten(flatten(x), x) == x for any x whose leaves satisfy the
// flattener's primitive predicate (anything that isn't []any).
func Unflatten(results []any, shape any) any {
	idx := 0
	return unflattenInto(shape, &idx, results)
}

func unflattenInto(shape any, idx *int, results []any) any {
	list, ok := shape.([]any)
	if !ok {
		v := results[*idx]
		*idx++
		return v
	}
	out := make([]any, len(list))
	for i, child := range list {
		out[i] = unflattenInto(child, idx, results)
	}
	return out
}

// Rebuild is like Unflatten but takes Items directly (trail is unused for
// reconstruction — the shape alone determines structure — but is kept on
// Item so callers needing random access, e.g. row-id lookups, can use it).
func Rebuild(items []Item, shape any) any {
	vals := make([]any, len(items))
	for i, it := range items {
		vals[i] = it.Value
	}
	return Unflatten(vals, shape)
}
