package returns

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mbd888/fraudguard/internal/audit"
	"github.com/mbd888/fraudguard/internal/imaging"
	"github.com/mbd888/fraudguard/internal/policy"
	"github.com/mbd888/fraudguard/internal/risk"
	"github.com/mbd888/fraudguard/internal/syncutil"
)

type fixture struct {
	engine    *Engine
	store     *MemoryStore
	customers *risk.MemoryStore
	log       *audit.MemoryLog
}

func newFixture(t *testing.T, classifier imaging.Classifier) *fixture {
	t.Helper()
	if classifier == nil {
		classifier = imaging.StubClassifier{}
	}
	log := audit.NewMemoryLog()
	policies := policy.NewManager(policy.NewMemoryStore(), log)
	customers := risk.NewMemoryStore()
	locks := &syncutil.ShardedMutex{}
	agg := risk.NewAggregator(customers, policies, log, locks)
	store := NewMemoryStore()
	engine := NewEngine(store, customers, agg, policies, classifier, log, locks)
	return &fixture{engine: engine, store: store, customers: customers, log: log}
}

// seedCustomer creates a customer with enough history to land in a
// given score range under the default policy.
func (f *fixture) seedCustomer(t *testing.T, id string, priorReturns int, amount float64, flags []string, mlConfidence float64) {
	t.Helper()
	c := &risk.Customer{
		ID:           id,
		Name:         "Seed",
		Email:        id + "@example.com",
		Status:       risk.StatusNormal,
		Flags:        flags,
		MLConfidence: mlConfidence,
	}
	for i := 0; i < priorReturns; i++ {
		c.Returns = append(c.Returns, risk.ReturnRecord{
			ReturnID: fmt.Sprintf("%s_ret_%d", id, i),
			Amount:   amount,
			FiledAt:  time.Now().Add(-time.Duration(i+1) * 24 * time.Hour),
		})
	}
	if err := f.customers.Create(context.Background(), c); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
}

func TestSubmitLowRiskAutoApproves(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCustomer(t, "cust_low", 0, 0, nil, 0)

	r, err := f.engine.Submit(context.Background(), "cust_low", "wrong size", 45.00, nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if r.State != StateApproved {
		t.Errorf("state = %s, want approved (score %d)", r.State, r.RiskScore)
	}
	if r.PolicyVersion != 1 {
		t.Errorf("policyVersion = %d, want 1", r.PolicyVersion)
	}
}

func TestSubmitMediumRiskStaysPending(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCustomer(t, "cust_med", 7, 50, nil, 0)

	r, err := f.engine.Submit(context.Background(), "cust_med", "changed mind", 50.00, nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if r.State != StatePending {
		t.Errorf("state = %s, want pending (score %d)", r.State, r.RiskScore)
	}
}

func TestSubmitHighRiskQueuesForReview(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCustomer(t, "cust_high", 7, 50, []string{"chargeback_history", "address_mismatch"}, 0)

	r, err := f.engine.Submit(context.Background(), "cust_high", "defective", 50.00, nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if r.State != StateUnderReview {
		t.Errorf("state = %s, want under_review (score %d)", r.State, r.RiskScore)
	}
}

func TestSubmitAutoBlockRejectsRegardlessOfEvidence(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCustomer(t, "cust_block", 7, 300,
		[]string{"chargeback_history", "address_mismatch", "serial_returner"}, 1.0)

	r, err := f.engine.Submit(context.Background(), "cust_block", "defective", 300.00, nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if r.State != StateRejected {
		t.Errorf("state = %s, want rejected (score %d)", r.State, r.RiskScore)
	}
}

func TestSubmitUnknownCustomer(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.engine.Submit(context.Background(), "cust_missing", "x", 10, nil); !errors.Is(err, risk.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

type failingCreateStore struct {
	Store
}

func (failingCreateStore) Create(context.Context, *ReturnRequest) error {
	return errors.New("store down")
}

func TestSubmitCreateFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	log := audit.NewMemoryLog()
	policies := policy.NewManager(policy.NewMemoryStore(), log)
	customers := risk.NewMemoryStore()
	locks := &syncutil.ShardedMutex{}
	agg := risk.NewAggregator(customers, policies, log, locks)
	engine := NewEngine(failingCreateStore{NewMemoryStore()}, customers, agg,
		policies, imaging.StubClassifier{}, log, locks)

	if err := customers.Create(ctx, &risk.Customer{
		ID: "cust_a", Name: "A", Email: "a@example.com", Status: risk.StatusNormal,
	}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	if _, err := engine.Submit(ctx, "cust_a", "wrong size", 45.00, nil); err == nil {
		t.Fatal("expected Submit to fail when the store rejects the create")
	}
	if entries := log.Entries(); len(entries) != 0 {
		t.Errorf("no audit entries may exist for an unpersisted return, got %d", len(entries))
	}
	c, err := customers.Get(ctx, "cust_a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(c.Returns) != 0 {
		t.Errorf("customer history must not record an unpersisted return, got %d entries", len(c.Returns))
	}
}

func TestOutcomeBandBoundaries(t *testing.T) {
	p := policy.Default() // auto-block at 90

	if state, _ := outcome(p, 84, nil); state != StateUnderReview {
		t.Errorf("score 84 no verdict: state = %s, want under_review", state)
	}

	approve := &imaging.Verdict{Recommendation: imaging.RecommendApprove}
	if state, _ := outcome(p, 92, approve); state != StateRejected {
		t.Errorf("score 92 with approving verdict: state = %s, want rejected", state)
	}
}

func TestAnalyzeCleanImageApprovesMediumRisk(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCustomer(t, "cust_med", 7, 50, nil, 0)

	ctx := context.Background()
	r, err := f.engine.Submit(ctx, "cust_med", "changed mind", 50.00, []string{"photos/blue-dress.jpg"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	analyzed, err := f.engine.Analyze(ctx, r.ID, "photos/blue-dress.jpg")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if analyzed.State != StateApproved {
		t.Errorf("state = %s, want approved", analyzed.State)
	}
	if analyzed.Verdict == nil || analyzed.Verdict.Recommendation != imaging.RecommendApprove {
		t.Errorf("verdict = %+v, want approve", analyzed.Verdict)
	}
}

func TestAnalyzeDamagedItemRejects(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCustomer(t, "cust_med", 7, 50, nil, 0)

	ctx := context.Background()
	r, _ := f.engine.Submit(ctx, "cust_med", "item arrived damaged", 50.00, nil)

	analyzed, err := f.engine.Analyze(ctx, r.ID, "photos/torn-shirt.jpg")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if analyzed.State != StateRejected {
		t.Errorf("state = %s, want rejected", analyzed.State)
	}
}

func TestAnalyzeOnSettledReturn(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCustomer(t, "cust_low", 0, 0, nil, 0)

	ctx := context.Background()
	r, _ := f.engine.Submit(ctx, "cust_low", "wrong size", 45.00, nil) // auto-approves

	if _, err := f.engine.Analyze(ctx, r.ID, "photos/shirt.jpg"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string) (*imaging.Classification, error) {
	return nil, imaging.ErrAnalysisUnavailable
}

func TestAnalyzeUnavailableFallsBackToScoreOnly(t *testing.T) {
	f := newFixture(t, failingClassifier{})
	f.seedCustomer(t, "cust_med", 7, 50, nil, 0)

	ctx := context.Background()
	r, _ := f.engine.Submit(ctx, "cust_med", "changed mind", 50.00, nil)

	degraded, err := f.engine.Analyze(ctx, r.ID, "photos/shirt.jpg")
	if !errors.Is(err, imaging.ErrAnalysisUnavailable) {
		t.Fatalf("expected ErrAnalysisUnavailable, got %v", err)
	}
	if degraded == nil || !degraded.Degraded {
		t.Fatal("return must be marked degraded")
	}
	if degraded.Verdict != nil {
		t.Error("no verdict may be recorded when the classifier is down")
	}

	found := false
	for _, e := range f.log.Entries() {
		if e.Action == "return_degraded_evaluation" {
			found = true
		}
	}
	if !found {
		t.Error("degraded evaluation must be audited")
	}
}

func TestDecideIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCustomer(t, "cust_high", 7, 50, []string{"a", "b"}, 0)

	ctx := audit.WithActor(context.Background(), audit.ActorHuman, "reviewer_1")
	r, _ := f.engine.Submit(ctx, "cust_high", "defective", 50.00, nil) // under_review

	first, err := f.engine.Decide(ctx, r.ID, StateApproved, "receipt verified")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if first.State != StateApproved || first.DecidedBy != "reviewer_1" {
		t.Errorf("got state=%s decidedBy=%s", first.State, first.DecidedBy)
	}
	entriesAfterFirst := len(f.log.Entries())

	second, err := f.engine.Decide(ctx, r.ID, StateApproved, "receipt verified")
	if err != nil {
		t.Fatalf("repeat Decide failed: %v", err)
	}
	if second.State != StateApproved {
		t.Errorf("state = %s, want approved", second.State)
	}
	if len(f.log.Entries()) != entriesAfterFirst {
		t.Errorf("idempotent decision must not add audit entries: %d -> %d",
			entriesAfterFirst, len(f.log.Entries()))
	}

	// A conflicting decision on a settled return is rejected.
	if _, err := f.engine.Decide(ctx, r.ID, StateRejected, "changed my mind"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestDecideRejectsNonTerminalDecision(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.engine.Decide(context.Background(), "ret_x", StatePending, "nope"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAuditFailureAbortsDecision(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCustomer(t, "cust_high", 7, 50, []string{"a", "b"}, 0)

	ctx := context.Background()
	r, _ := f.engine.Submit(ctx, "cust_high", "defective", 50.00, nil) // under_review

	f.log.FailNextAppend(errors.New("audit store down"))
	if _, err := f.engine.Decide(ctx, r.ID, StateApproved, "receipt verified"); err == nil {
		t.Fatal("expected decision to fail when audit append fails")
	}

	stored, err := f.store.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.State != StateUnderReview {
		t.Errorf("state = %s, decision must not apply without its audit entry", stored.State)
	}
}
