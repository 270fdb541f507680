package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mbd888/fraudguard/internal/audit"
	"github.com/mbd888/fraudguard/internal/policy"
	"github.com/mbd888/fraudguard/internal/syncutil"
	"github.com/mbd888/fraudguard/internal/traces"
)

const (
	returnWindow = 30 * 24 * time.Hour

	// Scoring weights. Each term contributes a bounded slice of the
	// 0-100 range so no single signal can block a customer on its own.
	pointsPerReturn    = 6
	returnPointsCap    = 30
	overCapStepPoints  = 15
	pointsPerHighValue = 4
	highValuePointsMax = 20
	pointsPerFlag      = 8
	flagPointsCap      = 24
	mlPointsMax        = 15

	// Returns at or above this amount count as high value.
	highValueAmount = 200.0
)

// Aggregator recomputes customer risk scores under per-customer locks.
type Aggregator struct {
	store    Store
	policies policy.Provider
	log      audit.Log
	locks    *syncutil.ShardedMutex
}

// NewAggregator creates a risk score aggregator.
func NewAggregator(store Store, policies policy.Provider, log audit.Log, locks *syncutil.ShardedMutex) *Aggregator {
	return &Aggregator{store: store, policies: policies, log: log, locks: locks}
}

// ComputeScore derives a customer's risk score under the given policy.
// Pure function of its inputs apart from the trailing 30-day window.
func (a *Aggregator) ComputeScore(c *Customer, p *policy.Policy) int {
	return scoreAt(c, p, time.Now())
}

func scoreAt(c *Customer, p *policy.Policy, now time.Time) int {
	score := returnPoints(c, p, now)
	score += highValuePoints(c)
	score += flagPoints(c)
	if p.EnableMLScoring {
		score += mlPoints(c)
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// returnPoints grows with the number of returns filed in the trailing
// window, with a step increase once the customer exceeds the policy's
// monthly cap.
func returnPoints(c *Customer, p *policy.Policy, now time.Time) int {
	cutoff := now.Add(-returnWindow)
	count := 0
	for _, r := range c.Returns {
		if r.FiledAt.After(cutoff) {
			count++
		}
	}

	points := count * pointsPerReturn
	if points > returnPointsCap {
		points = returnPointsCap
	}
	if count > p.MaxReturnsPerMonth {
		points += overCapStepPoints
	}
	return points
}

// highValuePoints grows with the count of high-value returns, capped.
// All-time, not windowed, and count-based rather than a proportion so
// cheap returns can never dilute an established pattern: adding history
// only ever holds the term steady or raises it.
func highValuePoints(c *Customer) int {
	high := 0
	for _, r := range c.Returns {
		if r.Amount >= highValueAmount {
			high++
		}
	}
	points := high * pointsPerHighValue
	if points > highValuePointsMax {
		points = highValuePointsMax
	}
	return points
}

func flagPoints(c *Customer) int {
	points := len(c.Flags) * pointsPerFlag
	if points > flagPointsCap {
		points = flagPointsCap
	}
	return points
}

func mlPoints(c *Customer) int {
	if c.MLConfidence <= 0 {
		return 0
	}
	conf := c.MLConfidence
	if conf > 1 {
		conf = 1
	}
	return int(math.Round(conf * mlPointsMax))
}

// Evaluate recomputes the customer's score under their entity lock and
// persists it. The audit trail only records evaluations that changed
// the score, so re-evaluating an unchanged customer is a no-op.
func (a *Aggregator) Evaluate(ctx context.Context, customerID string) (*Customer, error) {
	ctx, span := traces.StartSpan(ctx, "risk.Evaluate", traces.CustomerID(customerID))
	defer span.End()

	p, err := a.policies.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active policy: %w", err)
	}

	unlock := a.locks.Lock(customerID)
	defer unlock()

	c, err := a.store.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}

	newScore := a.ComputeScore(c, p)
	if newScore == c.RiskScore {
		// Status still tracks the band in case thresholds moved.
		newStatus := StatusForBand(p.Band(newScore))
		if newStatus != c.Status {
			c.Status = newStatus
			c.UpdatedAt = time.Now()
			if err := a.store.Update(ctx, c); err != nil {
				return nil, err
			}
		}
		return c, nil
	}

	oldScore := c.RiskScore
	c.RiskScore = newScore
	c.Status = StatusForBand(p.Band(newScore))
	c.UpdatedAt = time.Now()
	span.SetAttributes(traces.RiskScore(newScore))

	if err := audit.Record(ctx, a.log, &audit.Entry{
		Action:        "score_updated",
		TargetRef:     audit.CustomerRef(c.ID),
		Reason:        fmt.Sprintf("score %d -> %d (%s)", oldScore, newScore, c.Status),
		PolicyVersion: p.Version,
	}); err != nil {
		return nil, fmt.Errorf("score update not recorded: %w", err)
	}

	if err := a.store.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddFlag records a behavioral flag on the customer and recomputes the
// score under their lock. Re-adding a flag the customer already carries
// is a no-op.
func (a *Aggregator) AddFlag(ctx context.Context, customerID, flag, reason string) (*Customer, error) {
	p, err := a.policies.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active policy: %w", err)
	}

	unlock := a.locks.Lock(customerID)
	defer unlock()

	c, err := a.store.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for _, f := range c.Flags {
		if f == flag {
			return c, nil
		}
	}

	c.Flags = append(c.Flags, flag)
	c.RiskScore = a.ComputeScore(c, p)
	c.Status = StatusForBand(p.Band(c.RiskScore))
	c.UpdatedAt = time.Now()

	if err := audit.Record(ctx, a.log, &audit.Entry{
		Action:        "customer_flagged",
		TargetRef:     audit.CustomerRef(c.ID),
		Reason:        fmt.Sprintf("%s: %s", flag, reason),
		PolicyVersion: p.Version,
	}); err != nil {
		return nil, fmt.Errorf("flag not recorded: %w", err)
	}

	if err := a.store.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SetMLConfidence stores the model's fraud confidence for the customer
// and recomputes the score. Called by the ML pipeline after a
// behavioral scoring run; an unchanged confidence is a no-op.
func (a *Aggregator) SetMLConfidence(ctx context.Context, customerID string, confidence float64) (*Customer, error) {
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidConfidence, confidence)
	}
	p, err := a.policies.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active policy: %w", err)
	}

	unlock := a.locks.Lock(customerID)
	defer unlock()

	c, err := a.store.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if c.MLConfidence == confidence {
		return c, nil
	}

	c.MLConfidence = confidence
	c.RiskScore = a.ComputeScore(c, p)
	c.Status = StatusForBand(p.Band(c.RiskScore))
	c.UpdatedAt = time.Now()

	if err := audit.Record(ctx, a.log, &audit.Entry{
		Action:        "ml_confidence_updated",
		TargetRef:     audit.CustomerRef(c.ID),
		Reason:        fmt.Sprintf("confidence %.2f, score %d", confidence, c.RiskScore),
		PolicyVersion: p.Version,
	}); err != nil {
		return nil, fmt.Errorf("confidence update not recorded: %w", err)
	}

	if err := a.store.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// recordReturnLocked appends a return to the customer's history and
// recomputes their score. Caller holds the customer lock.
func (a *Aggregator) recordReturnLocked(ctx context.Context, c *Customer, rec ReturnRecord, p *policy.Policy) error {
	c.Returns = append(c.Returns, rec)
	c.RiskScore = a.ComputeScore(c, p)
	c.Status = StatusForBand(p.Band(c.RiskScore))
	c.UpdatedAt = time.Now()
	return a.store.Update(ctx, c)
}

// AttachReturn adds a return record to the customer under their lock and
// recomputes the score. The returned customer reflects the new state.
func (a *Aggregator) AttachReturn(ctx context.Context, customerID string, rec ReturnRecord) (*Customer, error) {
	p, err := a.policies.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active policy: %w", err)
	}

	unlock := a.locks.Lock(customerID)
	defer unlock()

	c, err := a.store.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := a.recordReturnLocked(ctx, c, rec, p); err != nil {
		return nil, err
	}
	return c, nil
}
