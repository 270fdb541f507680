// Package chat routes customer support conversations by fraud risk.
//
// A session moves active -> flagged -> escalated, with resolved
// reachable from anywhere by a human agent. The bot answers normal-risk
// messages with intent-keyed responses; high-risk customers get a
// deferral and repeated deferrals flag the session for review.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Errors
var (
	ErrSessionNotFound   = errors.New("chat: session not found")
	ErrInvalidTransition = errors.New("chat: invalid state transition")
)

// SessionStatus of a chat session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusFlagged   SessionStatus = "flagged"
	StatusEscalated SessionStatus = "escalated"
	StatusResolved  SessionStatus = "resolved"
)

// Intent categories detected from customer messages.
type Intent string

const (
	IntentReturn   Intent = "return_request"
	IntentExchange Intent = "exchange_request"
	IntentSize     Intent = "size_issue"
	IntentRefund   Intent = "refund_request"
	IntentDamage   Intent = "damage_report"
	IntentGeneral  Intent = "general_inquiry"
)

// DetectIntent classifies a message by keyword, first match wins.
func DetectIntent(text string) Intent {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "return"):
		return IntentReturn
	case strings.Contains(lower, "exchange"):
		return IntentExchange
	case strings.Contains(lower, "size"):
		return IntentSize
	case strings.Contains(lower, "refund"):
		return IntentRefund
	case strings.Contains(lower, "damaged"):
		return IntentDamage
	default:
		return IntentGeneral
	}
}

// Message roles.
const (
	RoleCustomer = "customer"
	RoleBot      = "bot"
)

// Message is one chat turn.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Intent    Intent    `json:"intent,omitempty"`
	Flagged   bool      `json:"flagged,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is a support conversation with one customer.
type Session struct {
	ID           string        `json:"id"`
	CustomerID   string        `json:"customerId"`
	Status       SessionStatus `json:"status"`
	RiskScore    int           `json:"riskScore"` // customer score when the session opened
	FlaggedCount int           `json:"flaggedCount"`
	Messages     []Message     `json:"messages"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Store persists chat sessions.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]*Session, error)
}

// Notifier receives escalation events for live streaming. Implementations
// must not block.
type Notifier interface {
	SessionEscalated(s *Session)
}
