package schema

import (
	"testing"

	"github.com/lilac-data/lilac/internal/flatten"
	"github.com/stretchr/testify/require"
)

func TestExtractAtPathWithWildcard(t *testing.T) {
	row := map[string]any{
		"chunks": []any{
			map[string]any{"text": "hello"},
			map[string]any{"text": "world"},
		},
	}
	path, err := NormalizePath("chunks.*.text")
	require.NoError(t, err)

	v, err := ExtractAtPath(row, path)
	require.NoError(t, err)
	require.Equal(t, []any{"hello", "world"}, v)
}

func TestExtractAtPathMissingIsSparse(t *testing.T) {
	row := map[string]any{}
	path, err := NormalizePath("missing")
	require.NoError(t, err)
	v, err := ExtractAtPath(row, path)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestExtractThenFlattenRoundTrip(t *testing.T) {
	row := map[string]any{
		"tags": []any{"a", "b", "c"},
	}
	path, err := NormalizePath("tags.*")
	require.NoError(t, err)
	v, err := ExtractAtPath(row, path)
	require.NoError(t, err)

	items := flatten.Flatten(v)
	require.Len(t, items, 3)
	require.Equal(t, []any{"a", "b", "c"}, flatten.Values(items))
}
