package schema

import "fmt"

// ConflictError reports a dtype conflict found while merging two schemas,
// per spec.md §6 ("schema-merge conflicts are reported with the offending
// path and ... both dtypes").
type ConflictError struct {
	Path  string
	Left  DType
	Right DType
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schema merge conflict at %q: %s vs %s", e.Path, e.Left, e.Right)
}

// Merge unions two struct field trees recursively, failing on dtype
// conflict (spec.md 4.A). Merge is associative: Merge(Merge(a,b),c) ==
// Merge(a,Merge(b,c)) whenever no conflict exists (spec.md §8).
func Merge(a, b *Field) (*Field, error) {
	return mergeAt(a, b, "")
}

func mergeAt(a, b *Field, path string) (*Field, error) {
	if a == nil {
		return b.Clone(), nil
	}
	if b == nil {
		return a.Clone(), nil
	}

	if a.DType != b.DType {
		return nil, &ConflictError{Path: path, Left: a.DType, Right: b.DType}
	}

	switch a.DType {
	case Struct:
		merged := make(map[string]*Field, len(a.Fields)+len(b.Fields))
		for name, f := range a.Fields {
			merged[name] = f.Clone()
		}
		for name, f := range b.Fields {
			childPath := joinPath(path, name)
			if existing, ok := merged[name]; ok {
				m, err := mergeAt(existing, f, childPath)
				if err != nil {
					return nil, err
				}
				merged[name] = m
			} else {
				merged[name] = f.Clone()
			}
		}
		out := &Field{DType: Struct, Fields: merged}
		copySidecars(out, a, b)
		return out, nil

	case Repeated:
		elem, err := mergeAt(a.Repeated, b.Repeated, joinPath(path, "*"))
		if err != nil {
			return nil, err
		}
		out := &Field{DType: Repeated, Repeated: elem}
		copySidecars(out, a, b)
		return out, nil

	default:
		// Leaf: dtypes already match above; sidecars must also agree or we
		// prefer the more specific (non-nil) one, matching the "additive
		// enrichment" spirit rather than erroring on every metadata diff.
		out := a.Clone()
		copySidecars(out, a, b)
		return out, nil
	}
}

func copySidecars(out, a, b *Field) {
	if out.Signal == nil {
		if a.Signal != nil {
			out.Signal = a.Signal
		} else if b.Signal != nil {
			out.Signal = b.Signal
		}
	}
	if out.Cluster == nil {
		if a.Cluster != nil {
			out.Cluster = a.Cluster
		} else if b.Cluster != nil {
			out.Cluster = b.Cluster
		}
	}
	out.Categorical = a.Categorical || b.Categorical
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// ContainsPath reports whether path resolves to at least one leaf in root.
func ContainsPath(root *Field, path Path) bool {
	return len(resolve(root, path)) > 0
}

// LeafPath pairs a concrete (wildcard-free) path with the leaf Field found
// there.
type LeafPath struct {
	Path  Path
	Field *Field
}

// Leaves returns every leaf path in root, depth-first, struct fields in Go
// map iteration order is not guaranteed so callers that need determinism
// should sort the result by Path.String().
func Leaves(root *Field) []LeafPath {
	var out []LeafPath
	collectLeaves(root, nil, &out)
	return out
}

func collectLeaves(f *Field, prefix Path, out *[]LeafPath) {
	if f == nil {
		return
	}
	switch f.DType {
	case Struct:
		for name, child := range f.Fields {
			collectLeaves(child, append(append(Path{}, prefix...), PathPart{Kind: FieldName, Name: name}), out)
		}
	case Repeated:
		collectLeaves(f.Repeated, append(append(Path{}, prefix...), PathPart{Kind: Wildcard}), out)
	default:
		p := append(Path{}, prefix...)
		*out = append(*out, LeafPath{Path: p, Field: f})
	}
}

// resolve walks root along path, expanding Wildcard/Index parts across
// Repeated fields and FieldName parts across Struct fields, and returns
// every Field reached. Multiple results only arise from Wildcard parts
// combined with a schema (schemas describe structure, not cardinality) so
// in practice this returns 0 or 1 Field per distinct structural path — the
// multiplicity described in spec.md 4.A ("a path resolves to a set of
// leaves") is realized over row *values*, not over the schema tree itself;
// see ExtractAtPath for the value-level expansion.
func resolve(root *Field, path Path) []*Field {
	cur := []*Field{root}
	for _, part := range path {
		var next []*Field
		for _, f := range cur {
			if f == nil {
				continue
			}
			switch part.Kind {
			case FieldName:
				if f.DType == Struct {
					if child, ok := f.Fields[part.Name]; ok {
						next = append(next, child)
					}
				}
			case Wildcard, Index:
				if f.DType == Repeated {
					next = append(next, f.Repeated)
				}
			}
		}
		cur = next
		if len(cur) == 0 {
			return nil
		}
	}
	return cur
}

// ResolveField returns the schema Field reached by path, or nil if path
// does not resolve against root. Used by query planning to type-check a
// projection or filter path without executing anything (spec.md 4.G
// "select_rows_schema").
func ResolveField(root *Field, path Path) *Field {
	fields := resolve(root, path)
	if len(fields) == 0 {
		return nil
	}
	return fields[0]
}

// CreateEnrichmentSchema wraps signalFields in the same repeated/struct
// nesting as sourcePath's wildcard profile and attaches the signal
// descriptor at the root of the wrapping (spec.md 4.A, 4.E step 2).
//
// The result's only leaves are at sourcePath's wildcard-matched positions,
// and their dtypes are exactly those declared by signalFields (spec.md §8).
func CreateEnrichmentSchema(signalFields *Field, sourcePath Path, signalName string, params map[string]any) *Field {
	wrapped := signalFields.Clone()
	depth := sourcePath.WildcardDepth()
	for i := 0; i < depth; i++ {
		wrapped = NewRepeated(wrapped)
	}
	wrapped.Signal = &SignalDescriptor{Name: signalName, Params: params}
	return wrapped
}
