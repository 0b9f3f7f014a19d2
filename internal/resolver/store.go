package resolver

import (
	"fmt"
	"sort"
	"sync"

	pebblestore "github.com/globulario/services-sub005/internal/storage/pebble"
)

// Store persists service entries across restarts.
type Store interface {
	Save(ServiceConfig) error
	ReplaceAll([]ServiceConfig) error
	LoadAll() ([]ServiceConfig, error)
}

// MemoryStore is an in-process Store, mostly for tests.
type MemoryStore struct {
	mu       sync.Mutex
	services map[string]ServiceConfig
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{services: map[string]ServiceConfig{}}
}

func (m *MemoryStore) Save(s ServiceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.Id] = s
	return nil
}

func (m *MemoryStore) ReplaceAll(all []ServiceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = make(map[string]ServiceConfig, len(all))
	for _, s := range all {
		m.services[s.Id] = s
	}
	return nil
}

func (m *MemoryStore) LoadAll() ([]ServiceConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ServiceConfig, 0, len(m.services))
	for _, s := range m.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

const svcPrefix = "svc/"

// PebbleStore keeps service entries as JSON under svc/<id>.
type PebbleStore struct {
	db *pebblestore.DB
}

// NewPebbleStore wraps an open database. The caller owns db.
func NewPebbleStore(db *pebblestore.DB) *PebbleStore {
	return &PebbleStore{db: db}
}

func (p *PebbleStore) Save(s ServiceConfig) error {
	b, err := MarshalServiceConfig(s)
	if err != nil {
		return err
	}
	return p.db.Set([]byte(svcPrefix+s.Id), b)
}

func (p *PebbleStore) ReplaceAll(all []ServiceConfig) error {
	entries := make(map[string][]byte, len(all))
	for _, s := range all {
		b, err := MarshalServiceConfig(s)
		if err != nil {
			return err
		}
		entries[svcPrefix+s.Id] = b
	}
	return p.db.ReplacePrefix([]byte(svcPrefix), entries)
}

func (p *PebbleStore) LoadAll() ([]ServiceConfig, error) {
	var (
		out     []ServiceConfig
		scanErr error
	)
	err := p.db.Scan([]byte(svcPrefix), func(k, v []byte) bool {
		s, err := ParseServiceConfig(v)
		if err != nil {
			scanErr = fmt.Errorf("decode %s: %w", k, err)
			return false
		}
		out = append(out, s)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, scanErr
}
