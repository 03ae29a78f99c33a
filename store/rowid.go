package store

import (
	"crypto/rand"
	"encoding/hex"
)

// RowID is the stable, globally unique opaque string assigned to every row
// at source ingestion (spec.md §3). It is the join key across shards,
// enrichments, and the vector index.
type RowID = string

// NewRowID mints a fresh row id. Callers normally only need this when a
// Source does not already assign one (spec.md §6: "The core assigns
// row-ids if not already present").
func NewRowID() RowID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
