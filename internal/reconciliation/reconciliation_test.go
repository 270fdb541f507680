package reconciliation

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudguard/internal/audit"
	"github.com/mbd888/fraudguard/internal/returns"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestUnauditedDecisions(t *testing.T) {
	ctx := context.Background()
	store := returns.NewMemoryStore()
	log := audit.NewMemoryLog()

	// Properly audited approval.
	good := &returns.ReturnRequest{ID: "ret_good", CustomerID: "cust_1", Amount: 40, State: returns.StateApproved}
	require.NoError(t, store.Create(ctx, good))
	require.NoError(t, audit.Record(ctx, log, &audit.Entry{
		Action:    "return_approved",
		TargetRef: audit.ReturnRef(good.ID),
		Reason:    "below auto-approve threshold",
	}))

	// Rejected return with no trail entry at all.
	bad := &returns.ReturnRequest{ID: "ret_bad", CustomerID: "cust_2", Amount: 90, State: returns.StateRejected}
	require.NoError(t, store.Create(ctx, bad))

	check := UnauditedDecisions(store, log)
	count, err := check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStuckPending(t *testing.T) {
	ctx := context.Background()
	store := returns.NewMemoryStore()

	stale := &returns.ReturnRequest{
		ID: "ret_stale", CustomerID: "cust_1", Amount: 60,
		State: returns.StatePending, UpdatedAt: time.Now().Add(-2 * time.Hour),
	}
	fresh := &returns.ReturnRequest{
		ID: "ret_fresh", CustomerID: "cust_1", Amount: 60,
		State: returns.StatePending, UpdatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, stale))
	require.NoError(t, store.Create(ctx, fresh))

	count, err := StuckPending(store, time.Hour)(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunnerContinuesPastFailingCheck(t *testing.T) {
	r := NewRunner(testLogger())

	var gaugeValue float64
	r.Register("broken", nil, func(context.Context) (int, error) {
		return 0, errors.New("store unavailable")
	})
	r.Register("healthy", func(v float64) { gaugeValue = v }, func(context.Context) (int, error) {
		return 3, nil
	})

	results, err := r.RunAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, results["healthy"])
	assert.Equal(t, float64(3), gaugeValue)
	assert.NotContains(t, results, "broken")
}

func TestTimerStartStop(t *testing.T) {
	timer := NewTimer(NewRunner(testLogger()), testLogger())
	timer.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		timer.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	assert.True(t, timer.Running())

	timer.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not stop")
	}
	assert.False(t, timer.Running())
}
