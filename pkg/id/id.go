package id

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces unique identifiers.
type Generator interface {
	Next() string
}

// UUIDGenerator produces random version 4 UUIDs.
type UUIDGenerator struct{}

// NewGenerator returns the default random UUID generator.
func NewGenerator() UUIDGenerator { return UUIDGenerator{} }

// Next returns a new random UUID string.
func (UUIDGenerator) Next() string { return uuid.NewString() }

// New is shorthand for NewGenerator().Next().
func New() string { return uuid.NewString() }

// Valid reports whether s is a canonical version 4 UUID.
func Valid(s string) bool {
	if len(s) != 36 {
		return false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return u.Version() == 4 && u.Variant() == uuid.RFC4122
}

// Sequence yields deterministic UUID-shaped identifiers with a fixed prefix
// byte, numbered from 1. It is safe for concurrent use.
type Sequence struct {
	mu     sync.Mutex
	prefix byte
	n      uint64
}

// NewSequence returns a Sequence whose identifiers start with prefix.
func NewSequence(prefix byte) *Sequence { return &Sequence{prefix: prefix} }

// Next returns the next identifier in the sequence.
func (s *Sequence) Next() string {
	s.mu.Lock()
	s.n++
	n := s.n
	s.mu.Unlock()
	return fmt.Sprintf("%02x000000-0000-4000-8000-%012x", s.prefix, n)
}
