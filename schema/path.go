package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// PathPartKind distinguishes the three things a Path element can address.
type PathPartKind int

const (
	// FieldName addresses a named struct field.
	FieldName PathPartKind = iota
	// Wildcard ("*") addresses every element of a repeated field.
	Wildcard
	// Index addresses one explicit element of a repeated field.
	Index
)

// PathPart is one element of a Path.
type PathPart struct {
	Kind  PathPartKind
	Name  string // set when Kind == FieldName
	Index int    // set when Kind == Index
}

func (p PathPart) String() string {
	switch p.Kind {
	case Wildcard:
		return "*"
	case Index:
		return strconv.Itoa(p.Index)
	default:
		return p.Name
	}
}

// Path is an ordered sequence of struct field names, repeated-wildcards, or
// explicit integer indices addressing one or many schema leaves (spec.md §3,
// GLOSSARY).
type Path []PathPart

// NormalizePath accepts either a dotted string ("a.b.*.c") or a pre-built
// []string/[]any tuple and returns a canonical Path, per spec.md 4.A
// ("normalize_path(str_or_tuple)").
func NormalizePath(v any) (Path, error) {
	switch t := v.(type) {
	case Path:
		return t, nil
	case string:
		return parseDottedPath(t)
	case []string:
		return partsToPath(t)
	case []any:
		parts := make([]string, len(t))
		for i, p := range t {
			s, ok := p.(string)
			if !ok {
				s = fmt.Sprintf("%v", p)
			}
			parts[i] = s
		}
		return partsToPath(parts)
	default:
		return nil, fmt.Errorf("normalize_path: unsupported type %T", v)
	}
}

func parseDottedPath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	return partsToPath(strings.Split(s, "."))
}

func partsToPath(parts []string) (Path, error) {
	out := make(Path, 0, len(parts))
	for _, p := range parts {
		switch {
		case p == "*":
			out = append(out, PathPart{Kind: Wildcard})
		case isInt(p):
			n, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("normalize_path: bad index %q: %w", p, err)
			}
			out = append(out, PathPart{Kind: Index, Index: n})
		default:
			if p == "" {
				return nil, fmt.Errorf("normalize_path: empty path segment")
			}
			out = append(out, PathPart{Kind: FieldName, Name: p})
		}
	}
	return out, nil
}

func isInt(s string) bool {
	if s == "" {
		return false
	}
	start := 0
	if s[0] == '-' {
		start = 1
	}
	if start == len(s) {
		return false
	}
	for _, c := range s[start:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// String renders the path in dotted form.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, part := range p {
		parts[i] = part.String()
	}
	return strings.Join(parts, ".")
}

// WildcardDepth returns the number of Wildcard parts in p — the number of
// list levels a signal writing at this path must re-wrap its output in
// (spec.md 4.A: "every * in the template corresponds to one list level at
// the output").
func (p Path) WildcardDepth() int {
	n := 0
	for _, part := range p {
		if part.Kind == Wildcard {
			n++
		}
	}
	return n
}
