package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lilac-data/lilac/schema"
	"github.com/lilac-data/lilac/store"
)

// jsonlSource is a store.Source reading newline-delimited JSON objects
// from a file, the CLI's entry point for building a dataset from a flat
// export. Grounded on the teacher's separation of "walk the raw
// records" (internal/ingest/json_walker.go) from "describe the shape"
// that store.Source's doc comment already generalizes; unlike that
// file, walking here is plain encoding/json over one record at a time,
// not a JSONPath engine, since a jsonlSource only ever needs "decode
// this line", not "find every node matching this selector".
type jsonlSource struct {
	path string
}

func newJSONLSource(path string) *jsonlSource {
	return &jsonlSource{path: path}
}

func (s *jsonlSource) Name() string { return "jsonl:" + s.path }

func (s *jsonlSource) Schema(ctx context.Context) (*schema.Field, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("jsonl: open %s: %w", s.path, err)
	}
	defer f.Close()

	var merged *schema.Field
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("jsonl: decode line: %w", err)
		}
		field := inferStruct(record)
		if merged == nil {
			merged = field
			continue
		}
		merged, err = schema.Merge(merged, field)
		if err != nil {
			return nil, fmt.Errorf("jsonl: merge schema: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if merged == nil {
		return schema.NewStruct(map[string]*schema.Field{}), nil
	}
	return merged, nil
}

func (s *jsonlSource) Rows(ctx context.Context) (<-chan store.SourceRow, <-chan error) {
	rowsCh := make(chan store.SourceRow)
	errCh := make(chan error, 1)
	go func() {
		defer close(rowsCh)
		defer close(errCh)

		f, err := os.Open(s.path)
		if err != nil {
			errCh <- err
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		idx := 0
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var record map[string]any
			if err := json.Unmarshal([]byte(line), &record); err != nil {
				errCh <- err
				return
			}
			rowID := store.RowID(strconv.Itoa(idx))
			if id, ok := record["id"]; ok {
				rowID = store.RowID(fmt.Sprint(id))
			}
			select {
			case rowsCh <- store.SourceRow{RowID: rowID, Values: record}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			idx++
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
		}
	}()
	return rowsCh, errCh
}

// inferStruct infers a schema.Field for one decoded JSON record.
func inferStruct(record map[string]any) *schema.Field {
	fields := make(map[string]*schema.Field, len(record))
	for k, v := range record {
		fields[k] = inferValue(v)
	}
	return schema.NewStruct(fields)
}

func inferValue(v any) *schema.Field {
	switch val := v.(type) {
	case string:
		return schema.NewLeaf(schema.String)
	case bool:
		return schema.NewLeaf(schema.Bool)
	case float64:
		if val == float64(int64(val)) {
			return schema.NewLeaf(schema.Int64)
		}
		return schema.NewLeaf(schema.Float64)
	case map[string]any:
		return inferStruct(val)
	case []any:
		if len(val) == 0 {
			return schema.NewRepeated(schema.NewLeaf(schema.String))
		}
		return schema.NewRepeated(inferValue(val[0]))
	default:
		return schema.NewLeaf(schema.String)
	}
}
