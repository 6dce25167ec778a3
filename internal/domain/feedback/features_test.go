package feedback_test

import (
	"math"
	"testing"
	"time"

	"github.com/greenlight-hq/greenlight/internal/domain/action"
	"github.com/greenlight-hq/greenlight/internal/domain/approval"
	"github.com/greenlight-hq/greenlight/internal/domain/feedback"
)

// Monday 2025-06-02 10:00, morning bucket, weekday 0.
var monMorning = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func TestIdenticalActionsFullSimilarity(t *testing.T) {
	a := action.Action{Kind: action.KindEmailSend, Target: "team@co.com", Content: "weekly report"}
	f1 := feedback.Extract(a, monMorning)
	f2 := feedback.Extract(a, monMorning)
	if got := f1.Similarity(f2); got != 1.0 {
		t.Fatalf("similarity = %v, want 1.0", got)
	}
}

func TestSimilarityWeights(t *testing.T) {
	a := action.Action{Kind: action.KindEmailSend, Target: "team@co.com", Content: "status"}
	b := action.Action{Kind: action.KindCalendarCreate, Target: "team@co.com", Content: "status"}
	fa := feedback.Extract(a, monMorning)
	fb := feedback.Extract(b, monMorning)
	// Only the kind feature (weight 0.4) differs.
	if got := fa.Similarity(fb); math.Abs(got-0.6) > 1e-9 {
		t.Fatalf("similarity = %v, want 0.6", got)
	}
}

func TestNumericFeatureDistance(t *testing.T) {
	a := action.Action{Kind: action.KindEmailSend, Target: "team@co.com"}
	f1 := feedback.Extract(a, monMorning)                    // bucket 1
	f2 := feedback.Extract(a, monMorning.Add(12*time.Hour)) // 22:00, bucket 3
	// Time-of-day delta 2/3 costs 0.1*(2/3); same day of week.
	want := 1.0 - 0.1*(2.0/3.0)
	if got := f1.Similarity(f2); math.Abs(got-want) > 1e-9 {
		t.Fatalf("similarity = %v, want %v", got, want)
	}
}

func TestTargetDomainBuckets(t *testing.T) {
	cases := []struct {
		target string
		want   string
	}{
		{"alice@example.com", "example.com"},
		{"CEO of Acme", "vip"},
		{"Client - Acme Corp", "client"},
		{"self", "other"},
	}
	for _, tc := range cases {
		f := feedback.Extract(action.Action{Kind: action.KindLog, Target: tc.target}, monMorning)
		if f.TargetDomain != tc.want {
			t.Errorf("targetDomain(%q) = %q, want %q", tc.target, f.TargetDomain, tc.want)
		}
	}
}

func TestKeywordSetSortedAndCaseInsensitive(t *testing.T) {
	a := action.Action{Kind: action.KindEmailSend, Target: "x", Content: "REVIEW the urgent report"}
	f := feedback.Extract(a, monMorning)
	if f.Keywords != "report,review,urgent" {
		t.Fatalf("keywords = %q", f.Keywords)
	}
}

func TestFromRequestPreservesContent(t *testing.T) {
	a := action.Action{
		Kind:    action.KindEmailSend,
		Target:  "team@co.com",
		Content: "weekly report",
		Context: map[string]any{"thread": "t-1"},
	}
	r := approval.NewRequest(a, approval.LevelMedium, monMorning)
	if err := r.Approve("ok", monMorning.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	e := feedback.FromRequest(r, feedback.DecisionApproved, monMorning)
	if e.Content() != "weekly report" {
		t.Errorf("content = %q", e.Content())
	}
	if e.Context["thread"] != "t-1" {
		t.Errorf("context not carried over")
	}
	if !e.Timestamp.Equal(*r.ResolvedAt) {
		t.Errorf("timestamp = %v, want resolution time %v", e.Timestamp, r.ResolvedAt)
	}
	if e.ResponseTimeSeconds == nil || *e.ResponseTimeSeconds != 60 {
		t.Errorf("response time = %v, want 60", e.ResponseTimeSeconds)
	}
	// Round-trip features from the stored entry match the live action.
	if e.Features().Fingerprint() != feedback.Extract(a, e.Timestamp).Fingerprint() {
		t.Errorf("entry features diverge from action features")
	}
}
