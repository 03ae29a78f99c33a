package store

import (
	"fmt"

	"github.com/lilac-data/lilac/schema"
)

// FilterOp is one of the comparison operators spec.md §4.B/§4.G names for
// select-rows filtering.
type FilterOp string

const (
	OpEquals    FilterOp = "equals"
	OpNotEqual  FilterOp = "not_equal"
	OpLess      FilterOp = "less"
	OpLessEq    FilterOp = "less_equal"
	OpGreater   FilterOp = "greater"
	OpGreaterEq FilterOp = "greater_equal"
	OpIn        FilterOp = "in"
	OpNotIn     FilterOp = "not_in"
	OpExists    FilterOp = "exists"
	OpLike      FilterOp = "like"
)

// RepeatedMode governs how a filter combines across a repeated field's
// elements (spec.md §4.B: "any row where any/all chunk satisfies ...").
type RepeatedMode string

const (
	Any RepeatedMode = "any"
	All RepeatedMode = "all"
)

// Filter selects rows whose value at Path satisfies Op against Value.
type Filter struct {
	Path     schema.Path
	Op       FilterOp
	Value    any
	Repeated RepeatedMode // applies only when Path resolves through a wildcard
}

// Matches reports whether extracted (the value schema.ExtractAtPath
// returned for this filter's Path against one row) satisfies the filter.
// A wildcard path yields a []any; Matches reduces it per Repeated before
// returning, defaulting to Any per spec.md's "exists anywhere" framing.
func (f Filter) Matches(extracted any) (bool, error) {
	if list, ok := extracted.([]any); ok && f.Path.WildcardDepth() > 0 {
		mode := f.Repeated
		if mode == "" {
			mode = Any
		}
		for _, elem := range list {
			ok, err := f.matchesScalar(elem)
			if err != nil {
				return false, err
			}
			if ok && mode == Any {
				return true, nil
			}
			if !ok && mode == All {
				return false, nil
			}
		}
		return mode == All, nil
	}
	return f.matchesScalar(extracted)
}

func (f Filter) matchesScalar(v any) (bool, error) {
	switch f.Op {
	case OpExists:
		return v != nil, nil
	case OpEquals:
		return compareEqual(v, f.Value), nil
	case OpNotEqual:
		return !compareEqual(v, f.Value), nil
	case OpIn:
		items, ok := f.Value.([]any)
		if !ok {
			return false, fmt.Errorf("filter: 'in' requires a list value")
		}
		for _, item := range items {
			if compareEqual(v, item) {
				return true, nil
			}
		}
		return false, nil
	case OpNotIn:
		ok, err := f.matchesScalarOp(OpIn, v)
		return !ok, err
	case OpLess, OpLessEq, OpGreater, OpGreaterEq:
		return compareOrdered(f.Op, v, f.Value)
	case OpLike:
		return matchLike(v, f.Value)
	}
	return false, fmt.Errorf("filter: unknown op %q", f.Op)
}

func (f Filter) matchesScalarOp(op FilterOp, v any) (bool, error) {
	f2 := f
	f2.Op = op
	return f2.matchesScalar(v)
}

func compareEqual(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b) && sameKind(a, b)
}

func sameKind(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	_, aNum := toFloat(a)
	_, bNum := toFloat(b)
	return aNum == bNum
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func compareOrdered(op FilterOp, v, target any) (bool, error) {
	vf, ok1 := toFloat(v)
	tf, ok2 := toFloat(target)
	if !ok1 || !ok2 {
		return false, fmt.Errorf("filter: %q requires numeric operands, got %T and %T", op, v, target)
	}
	switch op {
	case OpLess:
		return vf < tf, nil
	case OpLessEq:
		return vf <= tf, nil
	case OpGreater:
		return vf > tf, nil
	case OpGreaterEq:
		return vf >= tf, nil
	}
	return false, fmt.Errorf("filter: unreachable op %q", op)
}

func matchLike(v, pattern any) (bool, error) {
	s, ok := v.(string)
	if !ok {
		if v == nil {
			return false, nil
		}
		return false, fmt.Errorf("filter: 'like' requires a string value, got %T", v)
	}
	p, ok := pattern.(string)
	if !ok {
		return false, fmt.Errorf("filter: 'like' requires a string pattern")
	}
	return likeMatch(s, p), nil
}

// likeMatch implements SQL-style LIKE with '%' (any run) and '_' (single
// char) wildcards, matched against the whole string.
func likeMatch(s, pattern string) bool {
	return likeMatchRunes([]rune(s), []rune(pattern))
}

func likeMatchRunes(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	if p[0] == '%' {
		for i := 0; i <= len(s); i++ {
			if likeMatchRunes(s[i:], p[1:]) {
				return true
			}
		}
		return false
	}
	if len(s) == 0 {
		return false
	}
	if p[0] == '_' || p[0] == s[0] {
		return likeMatchRunes(s[1:], p[1:])
	}
	return false
}
