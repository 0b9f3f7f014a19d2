package id

import (
	"sync"
	"testing"
)

func TestGeneratorProducesV4(t *testing.T) {
	g := NewGenerator()
	a, b := g.Next(), g.Next()
	if a == b {
		t.Fatalf("expected distinct ids")
	}
	if !Valid(a) || !Valid(b) {
		t.Fatalf("expected v4 uuids, got %q %q", a, b)
	}
}

func TestValidRejects(t *testing.T) {
	for _, s := range []string{"", "not-a-uuid", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"} {
		if Valid(s) {
			t.Fatalf("Valid(%q) = true", s)
		}
	}
}

func TestSequenceIsDeterministicAndValid(t *testing.T) {
	s := NewSequence(0xab)
	first := s.Next()
	if first != "ab000000-0000-4000-8000-000000000001" {
		t.Fatalf("first = %q", first)
	}
	if !Valid(first) {
		t.Fatalf("sequence id should parse as v4: %q", first)
	}
}

func TestSequenceConcurrentUnique(t *testing.T) {
	s := NewSequence(1)
	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v := s.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 800 {
		t.Fatalf("expected 800 unique ids, got %d", len(seen))
	}
}
