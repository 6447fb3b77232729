// Package dedup remembers the last captured image so repeats are skipped.
package dedup

import "bytes"

// Store holds at most one image: the last one written. It is empty at start,
// replaced on every Commit and never cleared. A Store is owned by a single
// goroutine and does no locking.
type Store struct {
	last []byte
	held bool
}

// IsNew reports whether candidate differs from the held image, comparing
// every byte. An empty store reports every candidate as new.
func (s *Store) IsNew(candidate []byte) bool {
	if !s.held {
		return true
	}
	return !bytes.Equal(s.last, candidate)
}

// Commit replaces the held image with a private copy of candidate.
func (s *Store) Commit(candidate []byte) {
	s.last = bytes.Clone(candidate)
	s.held = true
}

// Last returns the held image, or nil when nothing has been committed.
func (s *Store) Last() []byte {
	if !s.held {
		return nil
	}
	return s.last
}
