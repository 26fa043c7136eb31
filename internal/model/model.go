// Package model provides a deliberately simple, in-memory oracle of
// avlstore's publicly observable behavior, for differential testing
// against the real file-backed implementation.
//
// The oracle favors clarity over performance: a single insertion-ordered
// slice of live payloads, re-sorted per key on demand, rather than any
// tree or thread-pointer structure of its own.
package model

import "sort"

// CompareFunc matches avlstore.CompareFunc's signature, so a test's
// comparator can be handed to both the real store and the model.
type CompareFunc func(key int, a, b []byte) int

// Store is an open oracle handle. It holds one live payload per record,
// in insertion order; tree order per key is derived, never stored.
type Store struct {
	keyCount int
	compare  CompareFunc
	records  [][]byte // insertion order, oldest first
}

// New returns an empty oracle for a file with the given key count and
// comparator.
func New(keyCount int, cmp CompareFunc) *Store {
	return &Store{keyCount: keyCount, compare: cmp}
}

// Insert appends a copy of buf as a new live record.
func (s *Store) Insert(buf []byte) {
	s.records = append(s.records, append([]byte(nil), buf...))
}

// Update finds the record matching buf under key 0 and overwrites it,
// mirroring [Handle.Update]'s refusal to change any other key's value.
func (s *Store) Update(buf []byte) bool {
	for i, r := range s.records {
		if s.compare(0, buf, r) == 0 {
			for k := 1; k < s.keyCount; k++ {
				if s.compare(k, buf, r) != 0 {
					return false
				}
			}
			s.records[i] = append([]byte(nil), buf...)
			return true
		}
	}
	return false
}

// Delete removes the record whose payload exactly equals buf.
func (s *Store) Delete(buf []byte) bool {
	for i, r := range s.records {
		if bytesEqual(r, buf) {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of live records.
func (s *Store) Len() int {
	return len(s.records)
}

// Sorted returns every live record ordered under key, duplicates broken
// by insertion order (oldest first) to match the real tree's
// always-insert-to-the-right-of-equals rule.
func (s *Store) Sorted(key int) [][]byte {
	out := make([][]byte, len(s.records))
	copy(out, s.records)

	sort.SliceStable(out, func(i, j int) bool {
		return s.compare(key, out[i], out[j]) < 0
	})

	return out
}

// Find reports whether any live record compares equal to buf under key.
// When duplicates exist under key, which one is returned is unspecified,
// matching the real store.
func (s *Store) Find(key int, buf []byte) ([]byte, bool) {
	for _, r := range s.Sorted(key) {
		if s.compare(key, buf, r) == 0 {
			return r, true
		}
	}
	return nil, false
}

// StartGE returns the leftmost record >= buf under key.
func (s *Store) StartGE(key int, buf []byte) ([]byte, bool) {
	for _, r := range s.Sorted(key) {
		if s.compare(key, buf, r) <= 0 {
			return r, true
		}
	}
	return nil, false
}

// StartLT returns the rightmost record < buf under key.
func (s *Store) StartLT(key int, buf []byte) ([]byte, bool) {
	sorted := s.Sorted(key)
	for i := len(sorted) - 1; i >= 0; i-- {
		if s.compare(key, buf, sorted[i]) > 0 {
			return sorted[i], true
		}
	}
	return nil, false
}

// SeqOrder returns every live record in the order [Handle.ReadSeq] would
// walk them: most recently inserted first.
func (s *Store) SeqOrder() [][]byte {
	out := make([][]byte, len(s.records))
	for i, r := range s.records {
		out[len(out)-1-i] = r
	}
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
