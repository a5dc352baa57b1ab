package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/staged/internal/entity"
)

// Sequence is a resettable monotonic counter for deterministic test
// identities.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Sequence struct {
	mu  sync.Mutex
	seq int64
}

// NewSequence creates a sequence whose first Next() returns 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next increments and returns the next value.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Current returns the last value handed out without incrementing.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset rewinds the sequence. The next call to Next() returns 1.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}

// IDs generates deterministic entity IDs of the form "<prefix>-0001".
//
// The same scenario run with a fresh IDs produces identical IDs, which keeps
// golden snapshots byte-stable.
type IDs struct {
	prefix string
	seq    *Sequence
}

// NewIDs creates an ID generator. An empty prefix uses "entity".
func NewIDs(prefix string) *IDs {
	if prefix == "" {
		prefix = "entity"
	}
	return &IDs{prefix: prefix, seq: NewSequence()}
}

// Next returns the next ID.
func (g *IDs) Next() entity.ID {
	return entity.ID(fmt.Sprintf("%s-%04d", g.prefix, g.seq.Next()))
}
