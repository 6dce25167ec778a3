package classify_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/greenlight-hq/greenlight/internal/classify"
	"github.com/greenlight-hq/greenlight/internal/domain/action"
	"github.com/greenlight-hq/greenlight/internal/domain/approval"
)

// businessHours pins the clock to a Tuesday at 11:00 so context rules are inert.
func businessHours() time.Time {
	return time.Date(2025, 6, 3, 11, 0, 0, 0, time.UTC)
}

func newClassifier(t *testing.T) *classify.Classifier {
	t.Helper()
	return classify.New(classify.DefaultRules(), classify.WithClock(businessHours))
}

func TestVIPTargetAlwaysHigh(t *testing.T) {
	c := newClassifier(t)
	cases := []action.Action{
		{Kind: action.KindEmailSend, Target: "CEO@co.com", Content: "report"},
		{Kind: action.KindLog, Target: "board member list", Content: "fyi"},
		{Kind: action.KindReminderSet, Target: "call the cto", Content: ""},
	}
	for _, a := range cases {
		if got := c.Classify(a); got != approval.LevelHigh {
			t.Errorf("Classify(%q target) = %s, want high", a.Target, got)
		}
	}
}

func TestBaseLevelByKind(t *testing.T) {
	c := newClassifier(t)
	cases := []struct {
		kind action.Kind
		want approval.Level
	}{
		{action.KindReminderSet, approval.LevelLow},
		{action.KindEmailSend, approval.LevelMedium},
		{action.KindCallMake, approval.LevelHigh},
		{action.Kind("unknown_kind"), approval.LevelMedium},
	}
	for _, tc := range cases {
		a := action.Action{Kind: tc.kind, Target: "self", Content: "x"}
		if got := c.Classify(a); got != tc.want {
			t.Errorf("Classify(kind=%s) = %s, want %s", tc.kind, got, tc.want)
		}
	}
}

func TestKeywordEscalation(t *testing.T) {
	c := newClassifier(t)

	a := action.Action{Kind: action.KindReminderSet, Target: "self", Content: "ASAP: file taxes"}
	if got := c.Classify(a); got != approval.LevelHigh {
		t.Errorf("high keyword: got %s", got)
	}

	b := action.Action{Kind: action.KindReminderSet, Target: "self", Content: "review the draft"}
	if got := c.Classify(b); got != approval.LevelMedium {
		t.Errorf("medium keyword: got %s", got)
	}

	// High set wins even when a low keyword also matches.
	d := action.Action{Kind: action.KindReminderSet, Target: "self", Content: "fyi: urgent issue"}
	if got := c.Classify(d); got != approval.LevelHigh {
		t.Errorf("high beats low keyword: got %s", got)
	}
}

func TestKeywordNeverLowersBase(t *testing.T) {
	c := newClassifier(t)
	// email_send has base MEDIUM; a low keyword must not reduce it.
	a := action.Action{Kind: action.KindEmailSend, Target: "someone@x.com", Content: "fyi"}
	if got := c.Classify(a); got != approval.LevelMedium {
		t.Errorf("got %s, want medium", got)
	}
}

func TestUrgentContextIsHigh(t *testing.T) {
	c := newClassifier(t)
	a := action.Action{
		Kind: action.KindReminderSet, Target: "self", Content: "x",
		Context: map[string]any{"urgent": true},
	}
	if got := c.Classify(a); got != approval.LevelHigh {
		t.Errorf("got %s, want high", got)
	}
}

func TestOutsideBusinessHoursAtLeastMedium(t *testing.T) {
	night := func() time.Time { return time.Date(2025, 6, 3, 23, 0, 0, 0, time.UTC) }
	c := classify.New(classify.DefaultRules(), classify.WithClock(night))

	a := action.Action{Kind: action.KindReminderSet, Target: "self", Content: "x"}
	if got := c.Classify(a); got != approval.LevelMedium {
		t.Errorf("got %s, want medium", got)
	}
}

func TestExplainReasons(t *testing.T) {
	c := newClassifier(t)

	vip := c.Explain(action.Action{Kind: action.KindEmailSend, Target: "CEO@co.com", Content: "report"})
	if vip.Level != approval.LevelHigh || len(vip.Reasons) != 1 {
		t.Fatalf("vip explain = %+v", vip)
	}
	if !strings.Contains(vip.Reasons[0], "VIP") {
		t.Errorf("reason missing VIP mention: %q", vip.Reasons[0])
	}

	kw := c.Explain(action.Action{Kind: action.KindReminderSet, Target: "self", Content: "deadline friday"})
	if kw.Level != approval.LevelHigh {
		t.Fatalf("keyword explain level = %s", kw.Level)
	}
	var found bool
	for _, r := range kw.Reasons {
		if strings.Contains(r, "deadline") {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons missing keyword hit: %v", kw.Reasons)
	}
}

func TestLoadRulesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
vip_contacts: ["founder"]
action_defaults:
  email_send: low
business_hours:
  start: 8
  end: 20
  escalate_outside: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := classify.LoadRules(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := classify.New(rules, classify.WithClock(businessHours))

	if got := c.Classify(action.Action{Kind: action.KindEmailSend, Target: "founder@x.com"}); got != approval.LevelHigh {
		t.Errorf("custom vip: got %s", got)
	}
	if got := c.Classify(action.Action{Kind: action.KindEmailSend, Target: "a@x.com"}); got != approval.LevelLow {
		t.Errorf("overridden base level: got %s", got)
	}
}

func TestLoadRulesMissingFileUsesDefaults(t *testing.T) {
	rules, err := classify.LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(rules.VIPContacts) == 0 {
		t.Error("defaults not applied")
	}
}

func TestLoadRulesInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("action_defaults:\n  email_send: extreme\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := classify.LoadRules(path); err == nil {
		t.Fatal("expected validation error for unknown level")
	}
}

func TestRulesKinds(t *testing.T) {
	rules := classify.DefaultRules()
	kinds := rules.Kinds()

	if len(kinds) != len(rules.ActionDefaults) {
		t.Fatalf("got %d kinds, want %d", len(kinds), len(rules.ActionDefaults))
	}
	if !slices.IsSorted(kinds) {
		t.Fatalf("kinds not sorted: %v", kinds)
	}
	if !slices.Contains(kinds, action.KindEmailSend) {
		t.Fatal("email_send missing from rule kinds")
	}
}
