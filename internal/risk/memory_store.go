package risk

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps customers in memory for demo mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Customer
	byEmail map[string]string // email -> id
	order   []string
}

// NewMemoryStore creates an in-memory customer store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Customer),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, c *Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Email != "" {
		if _, exists := s.byEmail[c.Email]; exists {
			return ErrEmailTaken
		}
	}

	cp := cloneCustomer(c)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.byID[cp.ID] = cp
	if cp.Email != "" {
		s.byEmail[cp.Email] = cp.ID
	}
	s.order = append(s.order, cp.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	return cloneCustomer(c), nil
}

func (s *MemoryStore) Update(_ context.Context, c *Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[c.ID]; !ok {
		return ErrCustomerNotFound
	}
	s.byID[c.ID] = cloneCustomer(c)
	return nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	result := make([]*Customer, 0, limit)
	for _, id := range s.order[:limit] {
		result = append(result, cloneCustomer(s.byID[id]))
	}
	return result, nil
}

func cloneCustomer(c *Customer) *Customer {
	cp := *c
	cp.Flags = append([]string(nil), c.Flags...)
	cp.Returns = append([]ReturnRecord(nil), c.Returns...)
	return &cp
}

var _ Store = (*MemoryStore)(nil)
