package imaging

import (
	"reflect"
	"testing"
)

func TestFuseCleanItemApproves(t *testing.T) {
	v := Fuse(Classification{Label: "blue dress", Confidence: 0.95, Authenticity: 0.97})
	if v.Recommendation != RecommendApprove {
		t.Errorf("recommendation = %s, want approve", v.Recommendation)
	}
	if !reflect.DeepEqual(v.Reasons, []string{ReasonNoIssues}) {
		t.Errorf("reasons = %v, want [%q]", v.Reasons, ReasonNoIssues)
	}
	if v.DamageDetected {
		t.Error("clean item must not mark damage")
	}
}

func TestFuseLowConfidenceAndDamageRejectsWithBothReasons(t *testing.T) {
	v := Fuse(Classification{Label: "torn shirt", Confidence: 0.5, Authenticity: 0.95})
	if v.Recommendation != RecommendReject {
		t.Errorf("recommendation = %s, want reject", v.Recommendation)
	}
	want := []string{ReasonLowConfidence, ReasonVisibleDamage}
	if !reflect.DeepEqual(v.Reasons, want) {
		t.Errorf("reasons = %v, want %v", v.Reasons, want)
	}
}

func TestFuseDamageRejectSurvivesLaterRules(t *testing.T) {
	// Damage fires before authenticity and category; neither may soften
	// the reject.
	v := Fuse(Classification{Label: "stained widget", Confidence: 0.9, Authenticity: 0.5})
	if v.Recommendation != RecommendReject {
		t.Errorf("recommendation = %s, want reject", v.Recommendation)
	}
	want := []string{ReasonVisibleDamage, ReasonAuthenticity, ReasonCategoryMismatch}
	if !reflect.DeepEqual(v.Reasons, want) {
		t.Errorf("reasons = %v, want %v", v.Reasons, want)
	}
}

func TestFuseAuthenticityNeedsReview(t *testing.T) {
	v := Fuse(Classification{Label: "designer bag", Confidence: 0.9, Authenticity: 0.6})
	if v.Recommendation != RecommendReview {
		t.Errorf("recommendation = %s, want review", v.Recommendation)
	}
	if !reflect.DeepEqual(v.Reasons, []string{ReasonAuthenticity}) {
		t.Errorf("reasons = %v", v.Reasons)
	}
}

func TestFuseCategoryMismatch(t *testing.T) {
	v := Fuse(Classification{Label: "kitchen blender", Confidence: 0.9, Authenticity: 0.9})
	if v.Recommendation != RecommendReview {
		t.Errorf("recommendation = %s, want review", v.Recommendation)
	}
	if !reflect.DeepEqual(v.Reasons, []string{ReasonCategoryMismatch}) {
		t.Errorf("reasons = %v", v.Reasons)
	}
}

func TestFuseDamageKeywords(t *testing.T) {
	for _, kw := range []string{"damaged", "torn", "stained", "broken", "worn"} {
		v := Fuse(Classification{Label: kw + " jacket", Confidence: 0.9, Authenticity: 0.9})
		if v.Recommendation != RecommendReject {
			t.Errorf("label %q: recommendation = %s, want reject", kw, v.Recommendation)
		}
		if !v.DamageDetected {
			t.Errorf("label %q: damage must be marked on the verdict", kw)
		}
	}
}

func TestStricter(t *testing.T) {
	if got := Stricter(RecommendApprove, RecommendReview); got != RecommendReview {
		t.Errorf("Stricter(approve, review) = %s", got)
	}
	if got := Stricter(RecommendReject, RecommendReview); got != RecommendReject {
		t.Errorf("Stricter(reject, review) = %s", got)
	}
	if got := Stricter(RecommendReview, RecommendReview); got != RecommendReview {
		t.Errorf("Stricter(review, review) = %s", got)
	}
}
