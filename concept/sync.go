package concept

import (
	"context"
	"fmt"
)

// Embedder computes embedding vectors for a batch of texts under a
// named embedding space. It is the concept package's narrow view of
// signal.EmbeddingSignal, kept as a local interface so this package
// does not need to depend on how an embedding is actually produced
// (hash embedding, a remote model, or anything else the signal
// package registers).
type Embedder interface {
	Embed(ctx context.Context, embeddingName string, texts []string) ([][]float32, error)
}

// Sync brings every model for conceptID up to date with its examples
// (spec.md 4.H): it embeds any example that has no cached embedding yet
// under the concept's embedding, then refits the model for main and for
// every active draft, and bumps each model's recorded version to the
// concept's current version. Previously cached embeddings are reused
// unchanged, so Sync's cost scales with newly added examples only.
func Sync(ctx context.Context, s *Store, embedder Embedder, conceptID string) error {
	c, err := s.GetConcept(conceptID)
	if err != nil {
		return err
	}

	drafts, err := s.ListDrafts(conceptID)
	if err != nil {
		return err
	}
	views := append([]string{""}, drafts...)

	for _, draftID := range views {
		examples, err := s.DraftExamples(conceptID, draftID)
		if err != nil {
			return err
		}
		if err := ensureEmbeddings(ctx, s, embedder, c.EmbeddingName, examples); err != nil {
			return err
		}
		if err := fitAndStore(s, c, draftID, examples); err != nil {
			return err
		}
	}
	return nil
}

func ensureEmbeddings(ctx context.Context, s *Store, embedder Embedder, embeddingName string, examples []Example) error {
	var missingIdx []int
	var missingTexts []string
	for i, e := range examples {
		if _, ok, err := s.CachedEmbedding(e.ID, embeddingName); err != nil {
			return err
		} else if !ok {
			missingIdx = append(missingIdx, i)
			missingTexts = append(missingTexts, e.Text)
		}
	}
	if len(missingTexts) == 0 {
		return nil
	}
	vecs, err := embedder.Embed(ctx, embeddingName, missingTexts)
	if err != nil {
		return fmt.Errorf("concept: embed examples: %w", err)
	}
	if len(vecs) != len(missingTexts) {
		return fmt.Errorf("concept: embedder returned %d vectors for %d texts", len(vecs), len(missingTexts))
	}
	for j, i := range missingIdx {
		if err := s.PutCachedEmbedding(examples[i].ID, embeddingName, vecs[j]); err != nil {
			return err
		}
	}
	return nil
}

func fitAndStore(s *Store, c Concept, draftID string, examples []Example) error {
	var x [][]float64
	var y []int
	for _, e := range examples {
		vec, ok, err := s.CachedEmbedding(e.ID, c.EmbeddingName)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		x = append(x, toFloat64(vec))
		if e.Label {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}

	negatives, err := s.negativeCalibrationVectors(c.ID)
	if err != nil {
		return err
	}
	for _, v := range negatives {
		x = append(x, toFloat64(v))
		y = append(y, 0)
	}

	if len(x) == 0 {
		return nil
	}

	weights := classBalancedWeights(y)
	model := fitLogistic(x, y, weights)
	model.F1 = crossValidatedF1(x, y, 3)
	model.Version = c.Version

	return s.putModel(c.ID, draftID, model)
}

func (s *Store) putModel(conceptID, draftID string, m Model) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO models (concept_id, draft_id, version, weights, bias, f1) VALUES (?, ?, ?, ?, ?, ?)`,
		conceptID, draftID, m.Version, encodeFloat64s(m.Weights), m.Bias, m.F1)
	return err
}

// GetModel loads the most recently fitted model for (conceptID, draftID).
func (s *Store) GetModel(conceptID, draftID string) (Model, error) {
	var m Model
	var blob []byte
	row := s.db.QueryRow(
		`SELECT version, weights, bias, f1 FROM models WHERE concept_id = ? AND draft_id = ?`,
		conceptID, draftID)
	if err := row.Scan(&m.Version, &blob, &m.Bias, &m.F1); err != nil {
		return Model{}, fmt.Errorf("concept: get model %q/%q: %w", conceptID, draftID, err)
	}
	m.Weights = decodeFloat64s(blob)
	return m, nil
}

// Predict returns the fitted model's probability that vec belongs to
// conceptID under draftID.
func (s *Store) Predict(conceptID, draftID string, vec []float32) (float64, error) {
	m, err := s.GetModel(conceptID, draftID)
	if err != nil {
		return 0, err
	}
	return m.predictProb(toFloat64(vec)), nil
}

func encodeFloat64s(v []float64) []byte {
	f32 := make([]float32, len(v))
	for i, f := range v {
		f32[i] = float32(f)
	}
	return encodeVector(f32)
}

func decodeFloat64s(buf []byte) []float64 {
	f32, err := decodeVector(buf)
	if err != nil {
		return nil
	}
	return toFloat64(f32)
}
