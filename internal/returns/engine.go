package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbd888/fraudguard/internal/audit"
	"github.com/mbd888/fraudguard/internal/idgen"
	"github.com/mbd888/fraudguard/internal/imaging"
	"github.com/mbd888/fraudguard/internal/metrics"
	"github.com/mbd888/fraudguard/internal/policy"
	"github.com/mbd888/fraudguard/internal/risk"
	"github.com/mbd888/fraudguard/internal/syncutil"
	"github.com/mbd888/fraudguard/internal/traces"
)

// Engine drives return requests through the decision state machine.
//
// Lock order: the engine locks only the return ID; customer mutations
// go through the risk aggregator, which locks the customer ID. The two
// key spaces are disjoint so the engine never holds both.
type Engine struct {
	store      Store
	customers  risk.Store
	scores     *risk.Aggregator
	policies   policy.Provider
	classifier imaging.Classifier
	log        audit.Log
	locks      *syncutil.ShardedMutex
	notifier   Notifier
}

// NewEngine creates a return decision engine.
func NewEngine(store Store, customers risk.Store, scores *risk.Aggregator,
	policies policy.Provider, classifier imaging.Classifier,
	log audit.Log, locks *syncutil.ShardedMutex) *Engine {
	return &Engine{
		store:      store,
		customers:  customers,
		scores:     scores,
		policies:   policies,
		classifier: classifier,
		log:        log,
		locks:      locks,
	}
}

// WithNotifier attaches a decision event notifier.
func (e *Engine) WithNotifier(n Notifier) *Engine {
	e.notifier = n
	return e
}

// Submit files a new return request and runs the score-only evaluation.
// Image evidence arrives later through Analyze.
func (e *Engine) Submit(ctx context.Context, customerID, reason string, amount float64, images []string) (*ReturnRequest, error) {
	ctx, span := traces.StartSpan(ctx, "returns.Submit",
		traces.CustomerID(customerID), traces.Amount(amount))
	defer span.End()

	if _, err := e.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	p, err := e.policies.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active policy: %w", err)
	}

	now := time.Now()
	r := &ReturnRequest{
		ID:            idgen.WithPrefix("ret_"),
		CustomerID:    customerID,
		Reason:        reason,
		Amount:        amount,
		Images:        images,
		State:         StatePending,
		PolicyVersion: p.Version,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// The record is created first so the audit trail and the customer's
	// history never reference a return that was not persisted. A failure
	// past this point leaves an unsettled pending record, which the
	// reconciliation sweeps surface.
	if err := e.store.Create(ctx, r); err != nil {
		return nil, err
	}

	if err := audit.Record(ctx, e.log, &audit.Entry{
		Action:        "return_filed",
		TargetRef:     audit.ReturnRef(r.ID),
		Reason:        fmt.Sprintf("customer %s, amount %.2f", customerID, amount),
		PolicyVersion: p.Version,
	}); err != nil {
		return nil, fmt.Errorf("filing not recorded: %w", err)
	}

	customer, err := e.scores.AttachReturn(ctx, customerID, risk.ReturnRecord{
		ReturnID: r.ID,
		Amount:   amount,
		FiledAt:  now,
	})
	if err != nil {
		return nil, err
	}
	r.RiskScore = customer.RiskScore

	next, why := outcome(p, r.RiskScore, nil)
	if next != StatePending {
		if err := e.applyTransition(ctx, r, next, why, p); err != nil {
			return nil, err
		}
		return r, nil
	}
	return r, e.store.Update(ctx, r)
}

// Analyze runs image classification for a return and folds the fused
// verdict into the decision. The classifier call happens before the
// return lock is taken; only fusion and the transition run locked.
//
// When the classifier is unavailable the return is re-evaluated on the
// score alone, marked degraded, and ErrAnalysisUnavailable is returned
// alongside the updated record.
func (e *Engine) Analyze(ctx context.Context, returnID, imageRef string) (*ReturnRequest, error) {
	ctx, span := traces.StartSpan(ctx, "returns.Analyze", traces.ReturnID(returnID))
	defer span.End()

	r, err := e.store.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if r.State.Terminal() {
		return nil, fmt.Errorf("%w: return already %s", ErrInvalidTransition, r.State)
	}

	p, err := e.policies.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active policy: %w", err)
	}

	if !p.EnableImageAnalysis {
		r, err := e.evaluateDegraded(ctx, returnID, p, "image analysis disabled by policy")
		return r, err
	}

	cls, err := e.classifier.Classify(ctx, imageRef)
	if err != nil {
		if errors.Is(err, imaging.ErrAnalysisUnavailable) {
			r, derr := e.evaluateDegraded(ctx, returnID, p, "image analysis unavailable; score-only evaluation")
			if derr != nil {
				return nil, derr
			}
			return r, err
		}
		return nil, err
	}
	verdict := imaging.Fuse(*cls)

	unlock := e.locks.Lock(returnID)
	defer unlock()

	r, err = e.store.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if r.State.Terminal() {
		return nil, fmt.Errorf("%w: return already %s", ErrInvalidTransition, r.State)
	}

	customer, err := e.customers.Get(ctx, r.CustomerID)
	if err != nil {
		return nil, err
	}

	r.Verdict = &verdict
	r.RiskScore = customer.RiskScore
	r.PolicyVersion = p.Version
	r.Degraded = false
	r.UpdatedAt = time.Now()
	metrics.RecordVerdict(string(verdict.Recommendation))

	next, why := outcome(p, r.RiskScore, &verdict)
	if next != StatePending && next != r.State {
		return r, e.applyTransition(ctx, r, next, why, p)
	}
	return r, e.store.Update(ctx, r)
}

// evaluateDegraded re-runs the score-only evaluation under the return
// lock and marks the record degraded.
func (e *Engine) evaluateDegraded(ctx context.Context, returnID string, p *policy.Policy, why string) (*ReturnRequest, error) {
	unlock := e.locks.Lock(returnID)
	defer unlock()

	r, err := e.store.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if r.State.Terminal() {
		return nil, fmt.Errorf("%w: return already %s", ErrInvalidTransition, r.State)
	}

	customer, err := e.customers.Get(ctx, r.CustomerID)
	if err != nil {
		return nil, err
	}

	r.RiskScore = customer.RiskScore
	r.PolicyVersion = p.Version
	r.Degraded = true
	r.UpdatedAt = time.Now()
	metrics.RecordDegradedDecision()

	if err := audit.Record(ctx, e.log, &audit.Entry{
		Action:        "return_degraded_evaluation",
		TargetRef:     audit.ReturnRef(r.ID),
		Reason:        why,
		PolicyVersion: p.Version,
	}); err != nil {
		return nil, fmt.Errorf("degraded evaluation not recorded: %w", err)
	}

	next, nextWhy := outcome(p, r.RiskScore, r.Verdict)
	if next != StatePending && next != r.State {
		return r, e.applyTransition(ctx, r, next, nextWhy, p)
	}
	return r, e.store.Update(ctx, r)
}

// Decide applies a human decision. Repeating an identical decision is a
// no-op; conflicting decisions on a settled return are rejected.
func (e *Engine) Decide(ctx context.Context, returnID string, decision State, reason string) (*ReturnRequest, error) {
	if decision != StateApproved && decision != StateRejected {
		return nil, fmt.Errorf("%w: decision must be approved or rejected", ErrInvalidTransition)
	}

	ctx, span := traces.StartSpan(ctx, "returns.Decide", traces.ReturnID(returnID))
	defer span.End()

	unlock := e.locks.Lock(returnID)
	defer unlock()

	r, err := e.store.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}

	if r.State == decision && r.DecisionReason == reason {
		return r, nil
	}
	if r.State.Terminal() {
		return nil, fmt.Errorf("%w: return already %s", ErrInvalidTransition, r.State)
	}

	p, err := e.policies.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active policy: %w", err)
	}

	_, actorID, _ := audit.ActorFromContext(ctx)
	r.DecidedBy = actorID
	r.PolicyVersion = p.Version
	return r, e.applyTransition(ctx, r, decision, reason, p)
}

// applyTransition audits and persists a state change. The audit entry
// is written first: a transition that cannot be recorded is not applied.
func (e *Engine) applyTransition(ctx context.Context, r *ReturnRequest, next State, why string, p *policy.Policy) error {
	verdictRec := "none"
	if r.Verdict != nil {
		verdictRec = string(r.Verdict.Recommendation)
	}

	if err := audit.Record(ctx, e.log, &audit.Entry{
		Action:        "return_" + string(next),
		TargetRef:     audit.ReturnRef(r.ID),
		Reason:        fmt.Sprintf("%s (score %d, verdict %s)", why, r.RiskScore, verdictRec),
		PolicyVersion: p.Version,
	}); err != nil {
		return fmt.Errorf("decision not recorded: %w", err)
	}

	r.State = next
	r.DecisionReason = why
	r.UpdatedAt = time.Now()

	if err := e.store.Update(ctx, r); err != nil {
		return err
	}

	metrics.RecordReturnDecision(string(next))
	if e.notifier != nil {
		e.notifier.ReturnDecided(r)
	}
	return nil
}

// outcome combines the risk band and the image verdict into the next
// state. The auto-block band settles the return on its own; otherwise
// the stricter of the band default and the verdict recommendation wins.
// With neither in play the return stays pending.
func outcome(p *policy.Policy, score int, verdict *imaging.Verdict) (State, string) {
	band := p.Band(score)
	if band == policy.BandAutoBlock {
		return StateRejected, fmt.Sprintf("risk score %d at or above auto-block threshold %d", score, p.AutoBlockThreshold)
	}

	rec := imaging.Recommendation("")
	switch band {
	case policy.BandLow:
		rec = imaging.RecommendApprove
	case policy.BandHigh:
		rec = imaging.RecommendReview
	}
	if verdict != nil {
		if rec == "" {
			rec = verdict.Recommendation
		} else {
			rec = imaging.Stricter(rec, verdict.Recommendation)
		}
	}

	switch rec {
	case imaging.RecommendReject:
		return StateRejected, fmt.Sprintf("image verdict reject in %s risk band", band)
	case imaging.RecommendReview:
		return StateUnderReview, fmt.Sprintf("queued for review in %s risk band", band)
	case imaging.RecommendApprove:
		return StateApproved, fmt.Sprintf("auto-approved in %s risk band", band)
	default:
		return StatePending, "awaiting image analysis"
	}
}
