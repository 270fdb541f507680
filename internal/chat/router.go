package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mbd888/fraudguard/internal/audit"
	"github.com/mbd888/fraudguard/internal/idgen"
	"github.com/mbd888/fraudguard/internal/metrics"
	"github.com/mbd888/fraudguard/internal/policy"
	"github.com/mbd888/fraudguard/internal/risk"
	"github.com/mbd888/fraudguard/internal/syncutil"
	"github.com/mbd888/fraudguard/internal/traces"
)

// Bot responses by intent.
var responses = map[Intent]string{
	IntentReturn:   "I can help you with your return. Please provide your order number and the reason for return.",
	IntentExchange: "I'd be happy to help with your exchange. What would you like to exchange and what's your order number?",
	IntentSize:     "Size exchanges are easy! Please share your order number and the size you'd prefer.",
	IntentRefund:   "I can assist with your refund request. Please provide your order details.",
	IntentDamage:   "I'm sorry to hear about the damage. Please share photos if possible and your order number for a quick resolution.",
	IntentGeneral:  "How can I help you today? I can assist with returns, exchanges, and order inquiries.",
}

// deferralResponse is sent instead of an intent response when the
// customer is above the high-risk threshold.
const deferralResponse = "I understand your request. Due to our quality assurance process, this request will be reviewed by our team within 24 hours. You'll receive an email update soon."

// flaggedMessagesBeforeSessionFlag is how many deferred messages it
// takes to flag the whole session.
const flaggedMessagesBeforeSessionFlag = 3

// Router drives chat sessions through the risk-aware state machine.
type Router struct {
	store     Store
	customers risk.Store
	policies  policy.Provider
	log       audit.Log
	locks     *syncutil.ShardedMutex
	notifier  Notifier
}

// NewRouter creates a chat risk router.
func NewRouter(store Store, customers risk.Store, policies policy.Provider,
	log audit.Log, locks *syncutil.ShardedMutex) *Router {
	return &Router{store: store, customers: customers, policies: policies, log: log, locks: locks}
}

// WithNotifier attaches an escalation event notifier.
func (r *Router) WithNotifier(n Notifier) *Router {
	r.notifier = n
	return r
}

// Open starts a session for a customer.
func (r *Router) Open(ctx context.Context, customerID string) (*Session, error) {
	customer, err := r.customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{
		ID:         idgen.WithPrefix("chat_"),
		CustomerID: customerID,
		Status:     StatusActive,
		RiskScore:  customer.RiskScore,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.store.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// HandleMessage records a customer message and produces the bot reply.
// High-risk customers get a deferral; enough deferrals flag the session,
// and pushing a flagged session about refunds or with urgency escalates
// it to a human agent.
func (r *Router) HandleMessage(ctx context.Context, sessionID, text string) (*Session, error) {
	ctx, span := traces.StartSpan(ctx, "chat.HandleMessage", traces.SessionID(sessionID))
	defer span.End()

	p, err := r.policies.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active policy: %w", err)
	}

	unlock := r.locks.Lock(sessionID)
	defer unlock()

	s, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status == StatusResolved || s.Status == StatusEscalated {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidTransition, s.Status)
	}

	// Routing uses the customer's live score; s.RiskScore stays the
	// snapshot taken when the session opened.
	customer, err := r.customers.Get(ctx, s.CustomerID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	intent := DetectIntent(text)
	highRisk := p.HighRisk(customer.RiskScore)

	userMsg := Message{
		ID:        idgen.WithPrefix("msg_"),
		Role:      RoleCustomer,
		Text:      text,
		Intent:    intent,
		Flagged:   highRisk,
		CreatedAt: now,
	}
	s.Messages = append(s.Messages, userMsg)

	reply := Message{
		ID:        idgen.WithPrefix("msg_"),
		Role:      RoleBot,
		CreatedAt: now,
	}
	if highRisk {
		reply.Text = deferralResponse
		reply.Flagged = true
		s.FlaggedCount++
		metrics.ChatDeferralsTotal.Inc()
	} else {
		reply.Text = responses[intent]
	}
	s.Messages = append(s.Messages, reply)
	s.UpdatedAt = now

	if s.Status == StatusActive && s.FlaggedCount >= flaggedMessagesBeforeSessionFlag {
		if err := r.transition(ctx, s, StatusFlagged,
			fmt.Sprintf("%d deferred messages at score %d", s.FlaggedCount, customer.RiskScore), p); err != nil {
			return nil, err
		}
	}

	if s.Status == StatusFlagged && (intent == IntentRefund || isUrgent(text)) {
		if err := r.transition(ctx, s, StatusEscalated,
			fmt.Sprintf("%s intent on flagged session", intent), p); err != nil {
			return nil, err
		}
		metrics.ChatEscalationsTotal.Inc()
		if r.notifier != nil {
			r.notifier.SessionEscalated(s)
		}
	}

	return s, r.store.Update(ctx, s)
}

// Resolve closes a session. Resolving an already resolved session is a
// no-op.
func (r *Router) Resolve(ctx context.Context, sessionID, reason string) (*Session, error) {
	p, err := r.policies.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active policy: %w", err)
	}

	unlock := r.locks.Lock(sessionID)
	defer unlock()

	s, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status == StatusResolved {
		return s, nil
	}

	if err := r.transition(ctx, s, StatusResolved, reason, p); err != nil {
		return nil, err
	}
	s.UpdatedAt = time.Now()
	return s, r.store.Update(ctx, s)
}

// transition audits and applies a session status change. The audit entry
// goes first so an unrecordable transition never happens.
func (r *Router) transition(ctx context.Context, s *Session, next SessionStatus, why string, p *policy.Policy) error {
	if err := audit.Record(ctx, r.log, &audit.Entry{
		Action:        "chat_session_" + string(next),
		TargetRef:     audit.SessionRef(s.ID),
		Reason:        why,
		PolicyVersion: p.Version,
	}); err != nil {
		return fmt.Errorf("session transition not recorded: %w", err)
	}
	s.Status = next
	return nil
}

func isUrgent(text string) bool {
	return strings.Contains(strings.ToLower(text), "urgent")
}
