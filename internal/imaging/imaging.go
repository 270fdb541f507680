// Package imaging turns raw image classifications into return verdicts.
//
// A classifier (external sidecar or local stub) labels the photographed
// item; the fuser applies the fraud rules to that classification and
// produces a single recommendation with human-readable reasons. The
// fuser is pure: classifier I/O happens before any entity lock.
package imaging

import (
	"context"
	"errors"
	"time"
)

// ErrAnalysisUnavailable is returned when the classifier cannot produce
// a usable classification. Callers fall back to score-only evaluation
// rather than inventing a verdict.
var ErrAnalysisUnavailable = errors.New("imaging: analysis unavailable")

// Recommendation is the fused verdict on a return image.
type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendReview  Recommendation = "review"
	RecommendReject  Recommendation = "reject"
)

// severity orders recommendations so rules can only escalate.
func severity(r Recommendation) int {
	switch r {
	case RecommendReject:
		return 2
	case RecommendReview:
		return 1
	default:
		return 0
	}
}

// Stricter returns the more severe of two recommendations.
func Stricter(a, b Recommendation) Recommendation {
	if severity(b) > severity(a) {
		return b
	}
	return a
}

// Classification is the raw classifier output for one image.
type Classification struct {
	Label        string  `json:"label"`
	Confidence   float64 `json:"confidence"`   // 0-1, how sure the model is of the label
	Authenticity float64 `json:"authenticity"` // 0-1, likelihood the item is genuine
}

// Verdict is the fused result recorded on the return.
type Verdict struct {
	Recommendation Recommendation `json:"recommendation"`
	Reasons        []string       `json:"reasons"`
	DamageDetected bool           `json:"damageDetected"`
	Classification Classification `json:"classification"`
	AnalyzedAt     time.Time      `json:"analyzedAt"`
}

// Classifier labels a return image identified by an image reference
// (URL or storage key).
type Classifier interface {
	Classify(ctx context.Context, imageRef string) (*Classification, error)
}
