package policy

import (
	"context"
	"sync"
)

// MemoryStore keeps policy versions in memory for demo mode and tests.
// It starts with the default policy as version 1.
type MemoryStore struct {
	mu       sync.RWMutex
	active   *Policy
	versions map[int]*Policy
}

// NewMemoryStore creates an in-memory policy store seeded with Default().
func NewMemoryStore() *MemoryStore {
	def := Default()
	return &MemoryStore{
		active:   def,
		versions: map[int]*Policy{def.Version: def},
	}
}

func (s *MemoryStore) Active(_ context.Context) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.clone(), nil
}

func (s *MemoryStore) Install(_ context.Context, p *Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p.clone()
	s.active = cp
	s.versions[cp.Version] = cp
	return nil
}

func (s *MemoryStore) Version(_ context.Context, version int) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.versions[version]
	if !ok {
		return nil, ErrVersionNotFound
	}
	return p.clone(), nil
}

var _ Store = (*MemoryStore)(nil)
