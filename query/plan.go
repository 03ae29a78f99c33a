package query

import (
	"fmt"

	"github.com/lilac-data/lilac/schema"
)

// PlanSchema resolves the exact schema a select_rows call with req would
// produce, without executing anything (spec.md 4.G "select_rows_schema").
// Projection paths must already exist in datasetSchema; UDF columns are
// resolved by asking the registry to build the named signal (pure
// construction, no Setup/Compute) and wrapping its Fields() the same way
// CreateEnrichmentSchema wraps an executor-run signal's output.
func PlanSchema(datasetSchema *schema.Field, reg Registry, req Request) (*schema.Field, error) {
	out := map[string]*schema.Field{}

	paths := req.Projection
	if len(paths) == 0 {
		paths = allTopLevelPaths(datasetSchema)
	}
	for _, p := range paths {
		field := schema.ResolveField(datasetSchema, p)
		if field == nil {
			return nil, fmt.Errorf("query: projection path %q does not resolve against the dataset schema", p.String())
		}
		out[leafName(p)] = field
	}

	for _, udf := range req.UDFColumns {
		instance, err := reg.Build(udf.SignalName, udf.Params)
		if err != nil {
			return nil, fmt.Errorf("query: udf column %q: %w", udf.SignalName, err)
		}
		name := udf.Alias
		if name == "" {
			name = leafName(udf.InputPath) + "__" + udf.SignalName
		}
		out[name] = schema.CreateEnrichmentSchema(instance.Fields(), udf.InputPath, udf.SignalName, udf.Params)
	}

	for _, s := range req.Searches {
		if s.Kind == SearchKeyword {
			name := leafName(s.Path) + "__match_spans"
			out[name] = schema.NewRepeated(schema.NewLeaf(schema.Span))
		}
	}

	return schema.NewStruct(out), nil
}

func leafName(p schema.Path) string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1].String()
}

func allTopLevelPaths(root *schema.Field) []schema.Path {
	if root == nil || !root.IsStruct() {
		return nil
	}
	paths := make([]schema.Path, 0, len(root.Fields))
	for name := range root.Fields {
		paths = append(paths, schema.Path{{Kind: schema.FieldName, Name: name}})
	}
	return paths
}
