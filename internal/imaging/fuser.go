package imaging

import (
	"strings"
	"time"
)

// Thresholds and vocabularies for the fusion rules.
const (
	minConfidence   = 0.6
	minAuthenticity = 0.8
)

var damageKeywords = []string{"damaged", "torn", "stained", "broken", "worn"}

var fashionVocabulary = []string{"shirt", "dress", "pants", "shoe", "bag", "jacket"}

// Reason strings surfaced to reviewers. These match the copy the review
// dashboard displays, so they change together.
const (
	ReasonLowConfidence    = "Low classification confidence"
	ReasonVisibleDamage    = "Visible damage detected"
	ReasonAuthenticity     = "Authenticity concerns"
	ReasonCategoryMismatch = "Item category mismatch"
	ReasonNoIssues         = "No issues detected"
)

// Fuse applies the fraud rules to a classification, in order. Each rule
// may add a reason and escalate the recommendation; severity never goes
// back down, so a damage reject survives later softer rules.
func Fuse(c Classification) Verdict {
	v := Verdict{
		Recommendation: RecommendApprove,
		Classification: c,
		AnalyzedAt:     time.Now(),
	}
	label := strings.ToLower(c.Label)

	if c.Confidence < minConfidence {
		v.Recommendation = Stricter(v.Recommendation, RecommendReview)
		v.Reasons = append(v.Reasons, ReasonLowConfidence)
	}

	for _, kw := range damageKeywords {
		if strings.Contains(label, kw) {
			v.Recommendation = Stricter(v.Recommendation, RecommendReject)
			v.DamageDetected = true
			v.Reasons = append(v.Reasons, ReasonVisibleDamage)
			break
		}
	}

	if c.Authenticity < minAuthenticity {
		v.Recommendation = Stricter(v.Recommendation, RecommendReview)
		v.Reasons = append(v.Reasons, ReasonAuthenticity)
	}

	if !matchesVocabulary(label) {
		v.Recommendation = Stricter(v.Recommendation, RecommendReview)
		v.Reasons = append(v.Reasons, ReasonCategoryMismatch)
	}

	if len(v.Reasons) == 0 {
		v.Reasons = append(v.Reasons, ReasonNoIssues)
	}
	return v
}

func matchesVocabulary(label string) bool {
	for _, word := range fashionVocabulary {
		if strings.Contains(label, word) {
			return true
		}
	}
	return false
}
