// Package concept implements Lilac's concept model store (spec.md 4.H):
// per-(concept_id, embedding_name, dataset_scope) logistic classifiers
// over labeled example text, with draft/main overlay semantics and
// class-balanced, cross-validated fitting.
//
// Grounded on the teacher's SQLiteGraph (internal/graph/sqlite_graph.go):
// a struct owning a *sql.DB opened against modernc.org/sqlite, with
// CREATE TABLE IF NOT EXISTS schema setup and transaction-batched writes.
// Unlike the columnar store (store package), a concept store is a single
// long-lived database of small labeled-example/weight records with no
// benefit from go-billy's virtual filesystem, so it talks to a real OS
// path directly, exactly as the teacher's graph does. The draft/main
// overlay is a plain SQL filter on the examples table's draft_id column
// (see concept.go); no bitmap set is involved.
package concept

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store persists concepts, their labeled examples, and their fitted
// models in a single sqlite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the concept store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("concept: open %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("concept: set WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS concepts (
			id             TEXT PRIMARY KEY,
			embedding_name TEXT NOT NULL,
			dataset_scope  TEXT NOT NULL DEFAULT '',
			version        INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS examples (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			concept_id TEXT NOT NULL,
			text       TEXT NOT NULL,
			label      INTEGER NOT NULL,
			draft_id   TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS negative_calibration (
			concept_id TEXT NOT NULL,
			example_id INTEGER NOT NULL,
			vector     BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS embedding_cache (
			example_id     INTEGER NOT NULL,
			embedding_name TEXT NOT NULL,
			vector         BLOB NOT NULL,
			PRIMARY KEY (example_id, embedding_name)
		);
		CREATE TABLE IF NOT EXISTS models (
			concept_id TEXT NOT NULL,
			draft_id   TEXT NOT NULL DEFAULT '',
			version    INTEGER NOT NULL,
			weights    BLOB NOT NULL,
			bias       REAL NOT NULL,
			f1         REAL NOT NULL,
			PRIMARY KEY (concept_id, draft_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("concept: migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateConcept registers a new concept, erroring if id already exists.
func (s *Store) CreateConcept(id, embeddingName, datasetScope string) error {
	_, err := s.db.Exec(
		`INSERT INTO concepts (id, embedding_name, dataset_scope, version) VALUES (?, ?, ?, 0)`,
		id, embeddingName, datasetScope)
	if err != nil {
		return fmt.Errorf("concept: create %q: %w", id, err)
	}
	return nil
}

// Concept is a concept's identity and current version.
type Concept struct {
	ID            string
	EmbeddingName string
	DatasetScope  string
	Version       int
}

// GetConcept loads a concept's metadata.
func (s *Store) GetConcept(id string) (Concept, error) {
	var c Concept
	row := s.db.QueryRow(`SELECT id, embedding_name, dataset_scope, version FROM concepts WHERE id = ?`, id)
	if err := row.Scan(&c.ID, &c.EmbeddingName, &c.DatasetScope, &c.Version); err != nil {
		return Concept{}, fmt.Errorf("concept: get %q: %w", id, err)
	}
	return c, nil
}

// Example is one labeled text example, optionally tagged under a draft.
type Example struct {
	ID      int64
	Text    string
	Label   bool
	DraftID string // "" means main
}

// AddExample inserts a labeled example under draftID ("" for main).
func (s *Store) AddExample(conceptID, text string, label bool, draftID string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO examples (concept_id, text, label, draft_id) VALUES (?, ?, ?, ?)`,
		conceptID, text, boolToInt(label), draftID)
	if err != nil {
		return 0, fmt.Errorf("concept: add example: %w", err)
	}
	return res.LastInsertId()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
