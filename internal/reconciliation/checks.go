package reconciliation

import (
	"context"
	"time"

	"github.com/mbd888/fraudguard/internal/audit"
	"github.com/mbd888/fraudguard/internal/returns"
)

const checkLimit = 500

// UnauditedDecisions counts settled returns with no matching trail
// entry. The audit log is written before the state change, so a settled
// return without a "return_approved" or "return_rejected" entry means
// the trail and the store have diverged.
func UnauditedDecisions(store returns.Store, log audit.Log) Check {
	return func(ctx context.Context) (int, error) {
		mismatches := 0
		for _, state := range []returns.State{returns.StateApproved, returns.StateRejected} {
			settled, err := store.ListByState(ctx, state, checkLimit)
			if err != nil {
				return 0, err
			}
			want := "return_" + string(state)
			for _, r := range settled {
				entries, err := log.ByTarget(ctx, audit.ReturnRef(r.ID), checkLimit)
				if err != nil {
					return 0, err
				}
				found := false
				for _, e := range entries {
					if e.Action == want {
						found = true
						break
					}
				}
				if !found {
					mismatches++
				}
			}
		}
		return mismatches, nil
	}
}

// StuckPending counts returns that have sat in pending longer than
// maxAge. These are requests whose image evidence never arrived and
// that nobody has decided manually.
func StuckPending(store returns.Store, maxAge time.Duration) Check {
	return func(ctx context.Context) (int, error) {
		pending, err := store.ListByState(ctx, returns.StatePending, checkLimit)
		if err != nil {
			return 0, err
		}
		cutoff := time.Now().Add(-maxAge)
		stuck := 0
		for _, r := range pending {
			if r.UpdatedAt.Before(cutoff) {
				stuck++
			}
		}
		return stuck, nil
	}
}
