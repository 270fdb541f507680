package returns

import (
	"context"
	"sync"
)

// MemoryStore keeps return requests in memory for demo mode and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*ReturnRequest
	order []string
}

// NewMemoryStore creates an in-memory return store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*ReturnRequest)}
}

func (s *MemoryStore) Create(_ context.Context, r *ReturnRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[r.ID] = cloneReturn(r)
	s.order = append(s.order, r.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*ReturnRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, ErrReturnNotFound
	}
	return cloneReturn(r), nil
}

func (s *MemoryStore) Update(_ context.Context, r *ReturnRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; !ok {
		return ErrReturnNotFound
	}
	s.byID[r.ID] = cloneReturn(r)
	return nil
}

func (s *MemoryStore) ListByCustomer(_ context.Context, customerID string, limit int) ([]*ReturnRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(limit, func(r *ReturnRequest) bool { return r.CustomerID == customerID }), nil
}

func (s *MemoryStore) ListByState(_ context.Context, state State, limit int) ([]*ReturnRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(limit, func(r *ReturnRequest) bool { return r.State == state }), nil
}

// filter returns matching requests in filing order. Caller holds a lock.
func (s *MemoryStore) filter(limit int, match func(*ReturnRequest) bool) []*ReturnRequest {
	if limit <= 0 {
		limit = 100
	}
	var result []*ReturnRequest
	for _, id := range s.order {
		r := s.byID[id]
		if !match(r) {
			continue
		}
		result = append(result, cloneReturn(r))
		if len(result) >= limit {
			break
		}
	}
	return result
}

func cloneReturn(r *ReturnRequest) *ReturnRequest {
	cp := *r
	cp.Images = append([]string(nil), r.Images...)
	if r.Verdict != nil {
		v := *r.Verdict
		v.Reasons = append([]string(nil), r.Verdict.Reasons...)
		cp.Verdict = &v
	}
	return &cp
}

var _ Store = (*MemoryStore)(nil)
