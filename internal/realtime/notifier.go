package realtime

import (
	"github.com/mbd888/fraudguard/internal/chat"
	"github.com/mbd888/fraudguard/internal/returns"
)

// Notifier adapts the hub to the decision engines' event interfaces.
// Broadcasts are non-blocking; a full channel drops the event rather
// than stalling a decision.
type Notifier struct {
	hub *Hub
}

// NewNotifier creates a notifier backed by the hub.
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// ReturnDecided broadcasts a settled return transition.
func (n *Notifier) ReturnDecided(r *returns.ReturnRequest) {
	n.hub.BroadcastDecision(map[string]interface{}{
		"returnId":      r.ID,
		"customerId":    r.CustomerID,
		"state":         string(r.State),
		"amount":        r.Amount,
		"riskScore":     r.RiskScore,
		"policyVersion": r.PolicyVersion,
		"degraded":      r.Degraded,
		"reason":        r.DecisionReason,
	})
}

// SessionEscalated broadcasts a chat escalation.
func (n *Notifier) SessionEscalated(s *chat.Session) {
	n.hub.BroadcastEscalation(map[string]interface{}{
		"sessionId":  s.ID,
		"customerId": s.CustomerID,
		"riskScore":  s.RiskScore,
	})
}

var (
	_ returns.Notifier = (*Notifier)(nil)
	_ chat.Notifier    = (*Notifier)(nil)
)
