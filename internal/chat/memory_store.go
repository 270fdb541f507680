package chat

import (
	"context"
	"sync"
)

// MemoryStore keeps chat sessions in memory for demo mode and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*Session
	order []string
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Session)}
}

func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sess.ID] = cloneSession(sess)
	s.order = append(s.order, sess.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

func (s *MemoryStore) Update(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[sess.ID]; !ok {
		return ErrSessionNotFound
	}
	s.byID[sess.ID] = cloneSession(sess)
	return nil
}

func (s *MemoryStore) ListByCustomer(_ context.Context, customerID string, limit int) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	var result []*Session
	for _, id := range s.order {
		sess := s.byID[id]
		if sess.CustomerID != customerID {
			continue
		}
		result = append(result, cloneSession(sess))
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func cloneSession(s *Session) *Session {
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	return &cp
}

var _ Store = (*MemoryStore)(nil)
