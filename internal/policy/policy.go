// Package policy manages the versioned fraud policy that drives every
// automated decision in the engine.
//
// Exactly one policy version is active at a time. Updates install a new
// version atomically; a rejected update leaves the active version
// untouched. Decisions snapshot the version they evaluated against so
// audit entries stay explainable after later policy changes.
package policy

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrInvalidPolicy = errors.New("policy: invalid policy")
)

// Risk bands derived from a customer score under the active policy.
type Band string

const (
	BandLow       Band = "low"       // below AutoApproveBelow
	BandMedium    Band = "medium"    // below ReviewQueueThreshold
	BandHigh      Band = "high"      // below AutoBlockThreshold
	BandAutoBlock Band = "autoblock" // at or above AutoBlockThreshold
)

// Policy is one immutable version of the fraud thresholds and toggles.
type Policy struct {
	Version              int       `json:"version"`
	AutoApproveBelow     int       `json:"autoApproveBelow"`
	ReviewQueueThreshold int       `json:"reviewQueueThreshold"`
	HighRiskThreshold    int       `json:"highRiskThreshold"`
	AutoBlockThreshold   int       `json:"autoBlockThreshold"`
	MaxReturnsPerMonth   int       `json:"maxReturnsPerMonth"`
	BlacklistDays        int       `json:"blacklistDays"`
	EnableMLScoring      bool      `json:"enableMlScoring"`
	EnableImageAnalysis  bool      `json:"enableImageAnalysis"`
	UpdatedBy            string    `json:"updatedBy,omitempty"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Default creates the version-1 policy installed on a fresh deployment.
func Default() *Policy {
	return &Policy{
		Version:              1,
		AutoApproveBelow:     40,
		ReviewQueueThreshold: 60,
		HighRiskThreshold:    70,
		AutoBlockThreshold:   90,
		MaxReturnsPerMonth:   5,
		BlacklistDays:        30,
		EnableMLScoring:      true,
		EnableImageAnalysis:  true,
		UpdatedAt:            time.Now(),
	}
}

// Validate checks threshold ranges and the strict ordering
// AutoApproveBelow < ReviewQueueThreshold < HighRiskThreshold <
// AutoBlockThreshold. The returned error wraps ErrInvalidPolicy and
// names the violated constraint.
func (p *Policy) Validate() error {
	for _, t := range []struct {
		name  string
		value int
	}{
		{"autoApproveBelow", p.AutoApproveBelow},
		{"reviewQueueThreshold", p.ReviewQueueThreshold},
		{"highRiskThreshold", p.HighRiskThreshold},
		{"autoBlockThreshold", p.AutoBlockThreshold},
	} {
		if t.value < 0 || t.value > 100 {
			return fmt.Errorf("%w: %s must be 0-100 (got %d)", ErrInvalidPolicy, t.name, t.value)
		}
	}
	if p.AutoApproveBelow >= p.ReviewQueueThreshold {
		return fmt.Errorf("%w: autoApproveBelow must be below reviewQueueThreshold", ErrInvalidPolicy)
	}
	if p.ReviewQueueThreshold >= p.HighRiskThreshold {
		return fmt.Errorf("%w: reviewQueueThreshold must be below highRiskThreshold", ErrInvalidPolicy)
	}
	if p.HighRiskThreshold >= p.AutoBlockThreshold {
		return fmt.Errorf("%w: highRiskThreshold must be below autoBlockThreshold", ErrInvalidPolicy)
	}
	if p.MaxReturnsPerMonth < 0 {
		return fmt.Errorf("%w: maxReturnsPerMonth must not be negative", ErrInvalidPolicy)
	}
	if p.BlacklistDays < 0 {
		return fmt.Errorf("%w: blacklistDays must not be negative", ErrInvalidPolicy)
	}
	return nil
}

// Band classifies a risk score under this policy. Every component that
// needs a band goes through here so there is a single cut-off point per
// threshold.
func (p *Policy) Band(score int) Band {
	switch {
	case score >= p.AutoBlockThreshold:
		return BandAutoBlock
	case score >= p.ReviewQueueThreshold:
		return BandHigh
	case score >= p.AutoApproveBelow:
		return BandMedium
	default:
		return BandLow
	}
}

// HighRisk reports whether a score is at or above the high-risk
// threshold. Chat routing defers risk answers above this line.
func (p *Policy) HighRisk(score int) bool {
	return score > p.HighRiskThreshold
}

func (p *Policy) clone() *Policy {
	cp := *p
	return &cp
}
