// Package risk maintains per-customer fraud risk scores.
//
// A customer's score is recomputed from their return history, account
// flags, and the ML model's fraud confidence. Scoring is deterministic:
// the same customer state under the same policy always produces the
// same score, and adding returns or flags never lowers it.
package risk

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/fraudguard/internal/policy"
)

// Errors
var (
	ErrCustomerNotFound  = errors.New("risk: customer not found")
	ErrEmailTaken        = errors.New("risk: email already registered")
	ErrInvalidConfidence = errors.New("risk: ml confidence must be between 0 and 1")
)

// Status is the account standing derived from the risk band.
type Status string

const (
	StatusNormal      Status = "normal"
	StatusWarned      Status = "warned"
	StatusUnderReview Status = "under_review"
	StatusBlocked     Status = "blocked"
)

// StatusForBand maps a policy risk band to an account status.
func StatusForBand(b policy.Band) Status {
	switch b {
	case policy.BandAutoBlock:
		return StatusBlocked
	case policy.BandHigh:
		return StatusUnderReview
	case policy.BandMedium:
		return StatusWarned
	default:
		return StatusNormal
	}
}

// ReturnRecord is one historical return, kept on the customer for
// window-based scoring.
type ReturnRecord struct {
	ReturnID string    `json:"returnId"`
	Amount   float64   `json:"amount"`
	FiledAt  time.Time `json:"filedAt"`
}

// Customer is the scored entity.
type Customer struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	RiskScore    int            `json:"riskScore"`
	Status       Status         `json:"status"`
	Flags        []string       `json:"flags,omitempty"`
	MLConfidence float64        `json:"mlConfidence,omitempty"` // model fraud confidence, 0-1
	Returns      []ReturnRecord `json:"returns,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Store persists customers.
type Store interface {
	Create(ctx context.Context, c *Customer) error
	Get(ctx context.Context, id string) (*Customer, error)
	Update(ctx context.Context, c *Customer) error
	List(ctx context.Context, limit int) ([]*Customer, error)
}
