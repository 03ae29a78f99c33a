// Package schema implements Lilac's typed hierarchical data model: dtypes,
// Field trees, and Path addressing with wildcard semantics (spec.md §3, 4.A).
//
// Grounded on the teacher's api.Topology/api.Node/api.Leaf recursive tree
// (generalized from filesystem nodes to typed struct/repeated fields) and on
// internal/lattice's Attribute{Name, Kind, Field} sidecar-tagging idea,
// generalized here into Field.Signal/Field.Cluster descriptors.
package schema

// DType is the closed sum of primitive and special leaf types (spec.md §3).
type DType string

const (
	Bool      DType = "bool"
	Int8      DType = "int8"
	Int16     DType = "int16"
	Int32     DType = "int32"
	Int64     DType = "int64"
	Float16   DType = "float16"
	Float32   DType = "float32"
	Float64   DType = "float64"
	String    DType = "string"
	Bytes     DType = "bytes"
	Timestamp DType = "timestamp"
	Date      DType = "date"
	Interval  DType = "interval"

	// Span refers to a character-offset range within a sibling string value.
	Span DType = "span"
	// Embedding is a dense float vector, stored out-of-line and
	// non-queryable in user filters.
	Embedding DType = "embedding"

	// Struct and Repeated are structural, not leaf, dtypes: a Field with
	// one of these set carries Fields or Repeated instead of a leaf DType.
	Struct   DType = "struct"
	Repeated DType = "repeated"
)

// IsLeaf reports whether d is addressable as a schema leaf (i.e. not a
// structural dtype).
func (d DType) IsLeaf() bool {
	return d != Struct && d != Repeated && d != ""
}

// SignalDescriptor records the signal instance that produced an enrichment
// field, per spec.md §3 ("For every enrichment field, there exists a signal
// descriptor").
type SignalDescriptor struct {
	Name   string         `json:"signal_name"`
	Params map[string]any `json:"signal_params,omitempty"`
}

// ClusterDescriptor records clustering parameters attached to a cluster
// enrichment field (spec.md §3, §4.F).
type ClusterDescriptor struct {
	MinClusterSize int    `json:"min_cluster_size"`
	InputPath      string `json:"input_path"`
	Remote         bool   `json:"remote"`
}

// Field is one node of the schema tree. Exactly one of (DType is a leaf),
// (Fields != nil), or (Repeated != nil) is meaningful at a time: a struct
// field carries Fields, a repeated field carries Repeated (the element
// field, which may itself be a struct/repeated), and anything else is a
// leaf carrying DType.
type Field struct {
	DType DType `json:"dtype,omitempty"`

	// Fields is set when DType == Struct: the named children.
	Fields map[string]*Field `json:"fields,omitempty"`

	// Repeated is set when DType == Repeated: the homogeneous element type.
	Repeated *Field `json:"repeated_field,omitempty"`

	Categorical bool `json:"categorical,omitempty"`

	Signal  *SignalDescriptor  `json:"signal,omitempty"`
	Cluster *ClusterDescriptor `json:"cluster,omitempty"`
}

// NewStruct builds a struct Field from named children.
func NewStruct(fields map[string]*Field) *Field {
	return &Field{DType: Struct, Fields: fields}
}

// NewRepeated builds a repeated Field wrapping elem.
func NewRepeated(elem *Field) *Field {
	return &Field{DType: Repeated, Repeated: elem}
}

// NewLeaf builds a leaf Field of the given primitive/special dtype.
func NewLeaf(d DType) *Field {
	return &Field{DType: d}
}

// IsStruct reports whether f is a struct node.
func (f *Field) IsStruct() bool { return f != nil && f.DType == Struct }

// IsRepeated reports whether f is a repeated node.
func (f *Field) IsRepeated() bool { return f != nil && f.DType == Repeated }

// Clone deep-copies f.
func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}
	out := &Field{
		DType:       f.DType,
		Categorical: f.Categorical,
	}
	if f.Signal != nil {
		sig := *f.Signal
		out.Signal = &sig
	}
	if f.Cluster != nil {
		cl := *f.Cluster
		out.Cluster = &cl
	}
	if f.Fields != nil {
		out.Fields = make(map[string]*Field, len(f.Fields))
		for k, v := range f.Fields {
			out.Fields[k] = v.Clone()
		}
	}
	if f.Repeated != nil {
		out.Repeated = f.Repeated.Clone()
	}
	return out
}
