package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryLog stores audit entries in memory for demo mode and tests.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []*Entry
	nextID  int64

	// failNext forces the next Append to fail (tests exercise the
	// decisions-abort-on-audit-failure contract with this).
	failNext error
}

// NewMemoryLog creates an in-memory audit log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// FailNextAppend makes the next Append return err. Test hook.
func (l *MemoryLog) FailNextAppend(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = err
}

func (l *MemoryLog) Append(_ context.Context, entry *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failNext != nil {
		err := l.failNext
		l.failNext = nil
		return err
	}

	l.nextID++
	cp := *entry
	cp.ID = l.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	l.entries = append(l.entries, &cp)
	return nil
}

func (l *MemoryLog) ByTarget(_ context.Context, targetRef string, limit int) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	var result []*Entry
	for _, e := range l.entries {
		if e.TargetRef != targetRef {
			continue
		}
		cp := *e
		result = append(result, &cp)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Entries returns all stored entries in append order (for testing).
func (l *MemoryLog) Entries() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*Entry, len(l.entries))
	copy(result, l.entries)
	return result
}

var _ Log = (*MemoryLog)(nil)
