// Package audit provides the append-only decision audit trail.
//
// Every state-changing decision in the engine (score updates, return
// dispositions, chat escalations, policy edits) appends exactly one
// entry. Entries are never mutated or deleted. A failed append aborts
// the decision that triggered it: decisions and their audit records
// commit together or not at all.
package audit

import (
	"context"
	"time"
)

type contextKey string

const (
	ctxActorType contextKey = "audit_actor_type"
	ctxActorID   contextKey = "audit_actor_id"
	ctxRequestID contextKey = "audit_request_id"
)

// Actor types recorded on entries.
const (
	ActorSystem   = "system"
	ActorHuman    = "human"
	ActorML       = "ml_model"
	ActorOperator = "operator"
)

// WithActor attaches actor info to the context for audit logging.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	ctx = context.WithValue(ctx, ctxActorType, actorType)
	ctx = context.WithValue(ctx, ctxActorID, actorID)
	return ctx
}

// WithRequestID attaches a request ID for audit correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestID, requestID)
}

// ActorFromContext returns the actor recorded on the context, defaulting
// to the system actor when none is set.
func ActorFromContext(ctx context.Context) (actorType, actorID, requestID string) {
	if v, ok := ctx.Value(ctxActorType).(string); ok {
		actorType = v
	} else {
		actorType = ActorSystem
	}
	if v, ok := ctx.Value(ctxActorID).(string); ok {
		actorID = v
	}
	if v, ok := ctx.Value(ctxRequestID).(string); ok {
		requestID = v
	}
	return
}

// Entry is a single immutable audit record.
type Entry struct {
	ID            int64     `json:"id"`
	ActorType     string    `json:"actorType"`
	ActorID       string    `json:"actorId,omitempty"`
	Action        string    `json:"action"`
	TargetRef     string    `json:"targetRef"`
	Reason        string    `json:"reason"`
	PolicyVersion int       `json:"policyVersion,omitempty"`
	RequestID     string    `json:"requestId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Target reference builders. Refs are "<kind>:<id>" strings so a single
// query surface covers every entity kind.

func CustomerRef(id string) string { return "customer:" + id }
func ReturnRef(id string) string   { return "return:" + id }
func SessionRef(id string) string  { return "chat:" + id }
func PolicyRef() string            { return "policy:active" }

// Log persists audit entries.
type Log interface {
	// Append writes a single entry. An error here is fatal to the
	// enclosing decision.
	Append(ctx context.Context, entry *Entry) error
	// ByTarget returns entries for a target ref, oldest first.
	ByTarget(ctx context.Context, targetRef string, limit int) ([]*Entry, error)
}

// Record fills actor fields from the context and appends the entry.
func Record(ctx context.Context, log Log, entry *Entry) error {
	entry.ActorType, entry.ActorID, entry.RequestID = ActorFromContext(ctx)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return log.Append(ctx, entry)
}
