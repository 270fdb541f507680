// Package returns implements the return request decision engine.
//
// A return request moves pending -> under_review -> approved/rejected,
// or straight from pending to a terminal state when the signals are
// unambiguous. Automated decisions combine the customer's risk band
// with the image verdict and always take the stricter of the two; a
// human decision can settle anything that is not already terminal.
package returns

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/fraudguard/internal/imaging"
)

// Errors
var (
	ErrReturnNotFound    = errors.New("returns: return not found")
	ErrInvalidTransition = errors.New("returns: invalid state transition")
)

// State of a return request.
type State string

const (
	StatePending     State = "pending"
	StateUnderReview State = "under_review"
	StateApproved    State = "approved"
	StateRejected    State = "rejected"
)

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected
}

// ReturnRequest is a customer's request to return an item.
type ReturnRequest struct {
	ID             string           `json:"id"`
	CustomerID     string           `json:"customerId"`
	Reason         string           `json:"reason"`
	Amount         float64          `json:"amount"`
	Images         []string         `json:"images,omitempty"`
	State          State            `json:"state"`
	Verdict        *imaging.Verdict `json:"verdict,omitempty"`
	RiskScore      int              `json:"riskScore"`     // customer score at last evaluation
	PolicyVersion  int              `json:"policyVersion"` // policy the last decision used
	Degraded       bool             `json:"degraded"`      // decided without image analysis
	DecisionReason string           `json:"decisionReason,omitempty"`
	DecidedBy      string           `json:"decidedBy,omitempty"` // empty for automated decisions
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// Store persists return requests.
type Store interface {
	Create(ctx context.Context, r *ReturnRequest) error
	Get(ctx context.Context, id string) (*ReturnRequest, error)
	Update(ctx context.Context, r *ReturnRequest) error
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]*ReturnRequest, error)
	ListByState(ctx context.Context, state State, limit int) ([]*ReturnRequest, error)
}

// Notifier receives decision events for live streaming. Implementations
// must not block.
type Notifier interface {
	ReturnDecided(r *ReturnRequest)
}
