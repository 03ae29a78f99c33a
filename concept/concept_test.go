package concept

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "concepts.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestDraftExamplesAndMerge reproduces spec.md §8 scenario 6 directly:
// main holds {id:0,label:T,text:'hello'} and {id:1,label:F,text:'world'};
// draft d1 adds {id:2,label:T,text:'hello d1'}; draft_examples(concept,
// 'd1') must return all three; after merge_draft('d1') main must contain
// all three with the draft cleared and the concept version incremented.
func TestDraftExamplesAndMerge(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.CreateConcept("greeting", "hash", ""))

	id0, err := s.AddExample("greeting", "hello", true, "")
	require.NoError(t, err)
	id1, err := s.AddExample("greeting", "world", false, "")
	require.NoError(t, err)
	id2, err := s.AddExample("greeting", "hello d1", true, "d1")
	require.NoError(t, err)

	draftView, err := s.DraftExamples("greeting", "d1")
	require.NoError(t, err)
	require.Len(t, draftView, 3)
	ids := []int64{draftView[0].ID, draftView[1].ID, draftView[2].ID}
	require.Equal(t, []int64{id0, id1, id2}, ids)

	mainOnly, err := s.DraftExamples("greeting", "")
	require.NoError(t, err)
	require.Len(t, mainOnly, 2)

	before, err := s.GetConcept("greeting")
	require.NoError(t, err)

	require.NoError(t, s.MergeDraft("greeting", "d1"))

	after, err := s.GetConcept("greeting")
	require.NoError(t, err)
	require.Equal(t, before.Version+1, after.Version)

	mergedMain, err := s.DraftExamples("greeting", "")
	require.NoError(t, err)
	require.Len(t, mergedMain, 3)
	for _, e := range mergedMain {
		require.Equal(t, "", e.DraftID)
	}
}

// TestMergeDraftDedupsByText checks that a draft example whose text
// already exists in main is dropped rather than duplicated on merge.
func TestMergeDraftDedupsByText(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.CreateConcept("c", "hash", ""))

	_, err := s.AddExample("c", "duplicate", true, "")
	require.NoError(t, err)
	_, err = s.AddExample("c", "duplicate", false, "d1")
	require.NoError(t, err)
	_, err = s.AddExample("c", "unique", true, "d1")
	require.NoError(t, err)

	require.NoError(t, s.MergeDraft("c", "d1"))

	mainExamples, err := s.DraftExamples("c", "")
	require.NoError(t, err)
	require.Len(t, mainExamples, 2)
	texts := map[string]bool{}
	for _, e := range mainExamples {
		texts[e.Text] = true
	}
	require.True(t, texts["duplicate"])
	require.True(t, texts["unique"])
}

func TestListDraftsExcludesMain(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.CreateConcept("c", "hash", ""))
	_, err := s.AddExample("c", "a", true, "")
	require.NoError(t, err)
	_, err = s.AddExample("c", "b", true, "d1")
	require.NoError(t, err)
	_, err = s.AddExample("c", "d", true, "d2")
	require.NoError(t, err)

	drafts, err := s.ListDrafts("c")
	require.NoError(t, err)
	require.Equal(t, []string{"d1", "d2"}, drafts)
}

type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, embeddingName string, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vectors[text]
	}
	return out, nil
}

func TestSyncFitsModelAndCachesEmbeddings(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.CreateConcept("topic", "hash", ""))

	_, err := s.AddExample("topic", "positive one", true, "")
	require.NoError(t, err)
	_, err = s.AddExample("topic", "positive two", true, "")
	require.NoError(t, err)
	_, err = s.AddExample("topic", "negative one", false, "")
	require.NoError(t, err)
	_, err = s.AddExample("topic", "negative two", false, "")
	require.NoError(t, err)

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"positive one": {1, 1},
		"positive two": {1, 0.9},
		"negative one": {-1, -1},
		"negative two": {-1, -0.9},
	}}

	require.NoError(t, Sync(context.Background(), s, embedder, "topic"))
	require.Equal(t, 1, embedder.calls)

	model, err := s.GetModel("topic", "")
	require.NoError(t, err)
	require.Equal(t, 0, model.Version)

	posProb, err := s.Predict("topic", "", []float32{1, 1})
	require.NoError(t, err)
	negProb, err := s.Predict("topic", "", []float32{-1, -1})
	require.NoError(t, err)
	require.Greater(t, posProb, negProb)

	require.NoError(t, Sync(context.Background(), s, embedder, "topic"))
	require.Equal(t, 1, embedder.calls, "cached embeddings must not be recomputed")
}

func TestSyncRefitsEachDraftIndependently(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.CreateConcept("topic", "hash", ""))

	_, err := s.AddExample("topic", "main positive", true, "")
	require.NoError(t, err)
	_, err = s.AddExample("topic", "main negative", false, "")
	require.NoError(t, err)
	_, err = s.AddExample("topic", "draft positive", true, "d1")
	require.NoError(t, err)
	_, err = s.AddExample("topic", "draft negative", false, "d1")
	require.NoError(t, err)

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"main positive":  {1, 1},
		"main negative":  {-1, -1},
		"draft positive": {2, 2},
		"draft negative": {-2, -2},
	}}
	require.NoError(t, Sync(context.Background(), s, embedder, "topic"))

	_, err = s.GetModel("topic", "")
	require.NoError(t, err)
	_, err = s.GetModel("topic", "d1")
	require.NoError(t, err)
}
