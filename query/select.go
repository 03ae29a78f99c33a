package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lilac-data/lilac/schema"
	sig "github.com/lilac-data/lilac/signal"
	"github.com/lilac-data/lilac/store"
	"github.com/lilac-data/lilac/vectorindex"
)

// Row is one result row: its stable id, merged values, and (for a scored
// search) the score it was ranked by.
type Row struct {
	RowID  store.RowID
	Values map[string]any
	Score  float64
}

// Result is the full output of a select_rows call.
type Result struct {
	Schema *schema.Field
	Rows   []Row
}

// SelectRows executes req against ds (spec.md 4.G). The result schema is
// planned from one ds.Manifest() snapshot; the rows are then streamed by
// ds.SelectRows, which reads the dataset's manifest again when it starts,
// so the row stream is not tied to the planning snapshot (a column added
// in between appears in the rows but not in the schema).
func SelectRows(ctx context.Context, ds *store.Dataset, vectors *vectorindex.Store, reg Registry, req Request) (*Result, error) {
	m := ds.Manifest()
	resultSchema, err := PlanSchema(m.Schema, reg, req)
	if err != nil {
		return nil, err
	}

	filters := append([]store.Filter(nil), req.Filters...)
	var keywordSpans = map[string]map[store.RowID][]sig.Span{}
	for _, s := range req.Searches {
		if s.Kind == SearchKeyword {
			filters = append(filters, store.Filter{Path: s.Path, Op: store.OpLike, Value: "%" + s.Query + "%"})
		}
	}

	var onErr func(error)
	var firstErr error
	onErr = func(e error) {
		if firstErr == nil {
			firstErr = e
		}
	}

	rowsCh, err := ds.SelectRows(filters, onErr)
	if err != nil {
		return nil, err
	}

	var rows []Row
	restrictKeys := map[string]bool{}
	for row := range rowsCh {
		restrictKeys[row.RowID] = true
		rows = append(rows, Row{RowID: row.RowID, Values: row.Values})
	}
	if firstErr != nil {
		return nil, firstErr
	}

	for _, s := range req.Searches {
		if s.Kind != SearchKeyword {
			continue
		}
		name := leafName(s.Path) + "__match_spans"
		for i, row := range rows {
			v, err := schema.ExtractAtPath(row.Values, s.Path)
			if err != nil {
				continue
			}
			text, ok := v.(string)
			if !ok {
				continue
			}
			spans := findSpans(text, s.Query)
			if keywordSpans[name] == nil {
				keywordSpans[name] = map[store.RowID][]sig.Span{}
			}
			keywordSpans[name][row.RowID] = spans
			rows[i].Values[name] = spansToAny(spans)
		}
	}

	for _, udf := range req.UDFColumns {
		if err := runUDF(ctx, reg, udf, rows); err != nil {
			return nil, err
		}
	}

	for _, s := range req.Searches {
		if s.Kind == SearchSemantic || s.Kind == SearchConcept {
			if err := applySemanticSearch(vectors, s, restrictKeys, &rows); err != nil {
				return nil, err
			}
		}
	}

	sortRows(rows, req)

	if req.Offset > 0 {
		if req.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[req.Offset:]
		}
	}
	if req.Limit > 0 && len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}

	if req.CombineColumns {
		for i := range rows {
			rows[i].Values = CombineColumns(rows[i].Values)
		}
	}

	return &Result{Schema: resultSchema, Rows: rows}, nil
}

func findSpans(text, query string) []sig.Span {
	if query == "" {
		return nil
	}
	var spans []sig.Span
	lowerText := strings.ToLower(text)
	lowerQuery := strings.ToLower(query)
	start := 0
	for {
		idx := strings.Index(lowerText[start:], lowerQuery)
		if idx < 0 {
			break
		}
		absStart := start + idx
		absEnd := absStart + len(query)
		spans = append(spans, sig.Span{Start: absStart, End: absEnd})
		start = absEnd
		if start >= len(lowerText) {
			break
		}
	}
	return spans
}

func spansToAny(spans []sig.Span) []any {
	out := make([]any, len(spans))
	for i, s := range spans {
		out[i] = map[string]any{"start": s.Start, "end": s.End}
	}
	return out
}

func runUDF(ctx context.Context, reg Registry, udf UDFColumn, rows []Row) error {
	instance, err := reg.Build(udf.SignalName, udf.Params)
	if err != nil {
		return err
	}
	textSignal, ok := instance.(sig.TextSignal)
	if !ok {
		return fmt.Errorf("query: udf column %q is not a TextSignal; only text udf columns run inline", udf.SignalName)
	}
	if err := instance.Setup(ctx); err != nil {
		return err
	}
	defer func() { _ = instance.Teardown(ctx) }()

	name := udf.Alias
	if name == "" {
		name = leafName(udf.InputPath) + "__" + udf.SignalName
	}

	texts := make([]string, 0, len(rows))
	idxs := make([]int, 0, len(rows))
	for i, row := range rows {
		v, err := schema.ExtractAtPath(row.Values, udf.InputPath)
		if err != nil {
			continue
		}
		if text, ok := v.(string); ok {
			texts = append(texts, text)
			idxs = append(idxs, i)
		}
	}
	values, err := textSignal.Compute(ctx, texts)
	if err != nil {
		return err
	}
	for j, i := range idxs {
		rows[i].Values[name] = values[j]
	}
	return nil
}

func applySemanticSearch(vectors *vectorindex.Store, s Search, restrictKeys map[string]bool, rows *[]Row) error {
	if vectors == nil {
		return fmt.Errorf("query: semantic/concept search requires a vector index")
	}
	k := s.TopK
	if k <= 0 {
		k = len(*rows)
	}
	var restrict map[string]bool
	if len(restrictKeys) > 0 {
		restrict = restrictKeys
	}
	results, err := vectors.TopK(s.Vector, k, restrict)
	if err != nil {
		return err
	}
	scores := make(map[store.RowID]float64, len(results))
	for _, r := range results {
		scores[r.RowID] = -float64(r.Distance) // descending-similarity convention: less distance -> higher score
	}
	filtered := (*rows)[:0]
	for _, row := range *rows {
		if score, ok := scores[row.RowID]; ok {
			row.Score = score
			filtered = append(filtered, row)
		}
	}
	*rows = filtered
	return nil
}

func sortRows(rows []Row, req Request) {
	hasScoredSearch := false
	for _, s := range req.Searches {
		if s.Kind == SearchSemantic || s.Kind == SearchConcept {
			hasScoredSearch = true
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if hasScoredSearch && rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		if req.SortBy != nil {
			vi, _ := schema.ExtractAtPath(rows[i].Values, req.SortBy)
			vj, _ := schema.ExtractAtPath(rows[j].Values, req.SortBy)
			if less, ok := lessAny(vi, vj); ok {
				return less
			}
		}
		return rows[i].RowID < rows[j].RowID
	})
}

func lessAny(a, b any) (bool, bool) {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok && av != bv {
			return av < bv, true
		}
	case float64:
		if bv, ok := b.(float64); ok && av != bv {
			return av < bv, true
		}
	case int:
		if bv, ok := b.(int); ok && av != bv {
			return av < bv, true
		}
	}
	return false, false
}
