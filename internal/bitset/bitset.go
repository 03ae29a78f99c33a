// Package bitset provides a string-keyed roaring bitmap set. The cluster
// pipeline (cluster/pipeline.go) uses it to index which row ids a vector
// index actually holds before joining against dataset text, a row-id
// presence index. Grounded on the key<->uint32 interning pattern used by
// internal/graph (fileToNodes/nodeIntID) and internal/lattice
// (FormalContext.attrIndex) in the teacher repo.
package bitset

import "github.com/RoaringBitmap/roaring"

// Interner assigns stable uint32 ids to string keys, the precondition for
// putting arbitrary keys into a roaring.Bitmap.
type Interner struct {
	idOf  map[string]uint32
	keyOf []string
}

func NewInterner() *Interner {
	return &Interner{idOf: make(map[string]uint32)}
}

// Intern returns the id for key, assigning a new one if key is unseen.
func (in *Interner) Intern(key string) uint32 {
	if id, ok := in.idOf[key]; ok {
		return id
	}
	id := uint32(len(in.keyOf))
	in.idOf[key] = id
	in.keyOf = append(in.keyOf, key)
	return id
}

// Lookup returns the id for key without assigning one.
func (in *Interner) Lookup(key string) (uint32, bool) {
	id, ok := in.idOf[key]
	return id, ok
}

// Key returns the string key for a previously interned id.
func (in *Interner) Key(id uint32) string {
	return in.keyOf[id]
}

// Set is a string-keyed roaring bitmap: a sparse, mergeable presence set
// over an arbitrary universe of string keys (row ids, example ids, ...).
type Set struct {
	interner *Interner
	bits     *roaring.Bitmap
}

func NewSet(interner *Interner) *Set {
	return &Set{interner: interner, bits: roaring.New()}
}

func (s *Set) Add(key string) { s.bits.Add(s.interner.Intern(key)) }

func (s *Set) Remove(key string) {
	if id, ok := s.interner.Lookup(key); ok {
		s.bits.Remove(id)
	}
}

func (s *Set) Contains(key string) bool {
	id, ok := s.interner.Lookup(key)
	return ok && s.bits.Contains(id)
}

func (s *Set) Len() int { return int(s.bits.GetCardinality()) }

// Keys returns every member key, in ascending interned-id order.
func (s *Set) Keys() []string {
	out := make([]string, 0, s.Len())
	it := s.bits.Iterator()
	for it.HasNext() {
		out = append(out, s.interner.Key(it.Next()))
	}
	return out
}

// Union returns a new set containing the members of both s and other. Both
// sets must share the same Interner.
func (s *Set) Union(other *Set) *Set {
	return &Set{interner: s.interner, bits: roaring.Or(s.bits, other.bits)}
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	return &Set{interner: s.interner, bits: s.bits.Clone()}
}
