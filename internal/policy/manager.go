package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mbd888/fraudguard/internal/audit"
	"github.com/mbd888/fraudguard/internal/metrics"
	"github.com/mbd888/fraudguard/internal/traces"
)

// Manager owns policy updates: validation, version numbering, and the
// audit trail. All updates are serialized so version numbers never race.
type Manager struct {
	mu    sync.Mutex
	store Store
	log   audit.Log
}

// NewManager creates a policy manager on top of a store.
func NewManager(store Store, log audit.Log) *Manager {
	return &Manager{store: store, log: log}
}

// Active returns the currently active policy.
func (m *Manager) Active(ctx context.Context) (*Policy, error) {
	return m.store.Active(ctx)
}

// Version returns a historical policy version.
func (m *Manager) Version(ctx context.Context, version int) (*Policy, error) {
	return m.store.Version(ctx, version)
}

// Update validates candidate and installs it as the next version. On any
// failure, validation or audit, the active policy is left untouched.
func (m *Manager) Update(ctx context.Context, candidate *Policy, updatedBy string) (*Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	active, err := m.store.Active(ctx)
	if err != nil {
		return nil, err
	}

	next := candidate.clone()
	next.Version = active.Version + 1
	next.UpdatedBy = updatedBy
	next.UpdatedAt = time.Now()

	ctx, span := traces.StartSpan(ctx, "policy.Update", traces.PolicyVersion(next.Version))
	defer span.End()

	// Audit first. A decision that cannot be recorded does not happen.
	if err := audit.Record(ctx, m.log, &audit.Entry{
		Action:        "policy_updated",
		TargetRef:     audit.PolicyRef(),
		Reason:        fmt.Sprintf("thresholds %d/%d/%d/%d", next.AutoApproveBelow, next.ReviewQueueThreshold, next.HighRiskThreshold, next.AutoBlockThreshold),
		PolicyVersion: next.Version,
	}); err != nil {
		return nil, fmt.Errorf("policy update not recorded: %w", err)
	}

	if err := m.store.Install(ctx, next); err != nil {
		return nil, err
	}
	metrics.PolicyUpdatesTotal.Inc()
	return next.clone(), nil
}

var _ Provider = (*Manager)(nil)
