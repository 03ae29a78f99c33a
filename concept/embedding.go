package concept

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeVector serializes a float32 vector to a little-endian byte blob,
// following the teacher's arena header's binary.LittleEndian convention
// (internal/graph/arena.go) rather than a general-purpose encoding
// package, since the payload is a flat, fixed-width numeric array with
// no need for self-describing framing.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("concept: corrupt vector blob: length %d not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

// CachedEmbedding returns a previously cached embedding for exampleID
// under embeddingName, if any.
func (s *Store) CachedEmbedding(exampleID int64, embeddingName string) ([]float32, bool, error) {
	var blob []byte
	row := s.db.QueryRow(
		`SELECT vector FROM embedding_cache WHERE example_id = ? AND embedding_name = ?`,
		exampleID, embeddingName)
	if err := row.Scan(&blob); err != nil {
		return nil, false, nil
	}
	v, err := decodeVector(blob)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// PutCachedEmbedding stores exampleID's computed embedding so that a
// later Sync does not recompute it (spec.md 4.H: "recomputes embeddings
// only for newly added examples, cache by example id").
func (s *Store) PutCachedEmbedding(exampleID int64, embeddingName string, vec []float32) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO embedding_cache (example_id, embedding_name, vector) VALUES (?, ?, ?)`,
		exampleID, embeddingName, encodeVector(vec))
	return err
}

// PutNegativeCalibration stores an unlabeled vector sampled from the
// target dataset, used to widen the negative class during fitting when
// labeled negative examples are scarce or absent.
func (s *Store) PutNegativeCalibration(conceptID string, exampleID int64, vec []float32) error {
	_, err := s.db.Exec(
		`INSERT INTO negative_calibration (concept_id, example_id, vector) VALUES (?, ?, ?)`,
		conceptID, exampleID, encodeVector(vec))
	return err
}

func (s *Store) negativeCalibrationVectors(conceptID string) ([][]float32, error) {
	rows, err := s.db.Query(`SELECT vector FROM negative_calibration WHERE concept_id = ?`, conceptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out [][]float32
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		v, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
