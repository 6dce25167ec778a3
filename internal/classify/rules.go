package classify

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/greenlight-hq/greenlight/internal/domain/action"
	"github.com/greenlight-hq/greenlight/internal/domain/approval"
)

// Rules configures the classifier. All sections have compiled-in defaults;
// a YAML rules file overrides them wholesale per section.
type Rules struct {
	// VIPContacts are identifiers whose presence in a target (case-insensitive
	// substring) forces HIGH criticality.
	VIPContacts []string `yaml:"vip_contacts"`

	// ActionDefaults maps an action kind to its base criticality.
	// Unknown kinds default to MEDIUM.
	ActionDefaults map[string]approval.Level `yaml:"action_defaults"`

	// Keywords are scanned over action content, high set first.
	Keywords KeywordSets `yaml:"keywords"`

	// BusinessHours raises criticality outside the configured window.
	BusinessHours BusinessHours `yaml:"business_hours"`
}

// KeywordSets holds the three content keyword lists, checked high -> medium -> low.
type KeywordSets struct {
	High   []string `yaml:"high"`
	Medium []string `yaml:"medium"`
	Low    []string `yaml:"low"`
}

// BusinessHours is the local-time window considered normal working hours.
type BusinessHours struct {
	Start           int  `yaml:"start"`
	End             int  `yaml:"end"`
	EscalateOutside bool `yaml:"escalate_outside"`
}

// DefaultRules returns the compiled-in classification rules.
func DefaultRules() Rules {
	return Rules{
		VIPContacts: []string{"CEO", "CTO", "Investor", "Board Member", "Client"},
		ActionDefaults: map[string]approval.Level{
			string(action.KindEmailSend):      approval.LevelMedium,
			string(action.KindEmailReply):     approval.LevelMedium,
			string(action.KindCalendarCreate): approval.LevelMedium,
			string(action.KindCalendarModify): approval.LevelHigh,
			string(action.KindCallMake):       approval.LevelHigh,
			string(action.KindSMSSend):        approval.LevelMedium,
			string(action.KindFileCreate):     approval.LevelLow,
			string(action.KindFileModify):     approval.LevelMedium,
			string(action.KindTaskCreate):     approval.LevelLow,
			string(action.KindReminderSet):    approval.LevelLow,
			string(action.KindFocusSession):   approval.LevelLow,
			string(action.KindArchive):        approval.LevelLow,
			string(action.KindLog):            approval.LevelLow,
			string(action.KindSearch):         approval.LevelLow,
			string(action.KindAnalyze):        approval.LevelLow,
		},
		Keywords: KeywordSets{
			High:   []string{"urgent", "emergency", "critical", "asap", "deadline"},
			Medium: []string{"important", "priority", "review", "approve"},
			Low:    []string{"fyi", "archive", "log", "reminder"},
		},
		BusinessHours: BusinessHours{Start: 9, End: 18, EscalateOutside: true},
	}
}

// LoadRules reads a Rules file from YAML. A missing file returns the
// defaults, matching the config loader pattern.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rules, nil
		}
		return rules, fmt.Errorf("read rules file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return rules, fmt.Errorf("validate rules file %s: %w", path, err)
	}
	return rules, nil
}

// Kinds returns the action kinds named in the defaults table, sorted. The
// executor registry validates against this list in strict mode.
func (r *Rules) Kinds() []action.Kind {
	out := make([]action.Kind, 0, len(r.ActionDefaults))
	for k := range r.ActionDefaults {
		out = append(out, action.Kind(k))
	}
	slices.Sort(out)
	return out
}

// Validate checks level names and the business-hours window.
func (r *Rules) Validate() error {
	for kind, level := range r.ActionDefaults {
		if !level.Valid() {
			return fmt.Errorf("action_defaults[%s]: unknown level %q", kind, level)
		}
	}
	if r.BusinessHours.Start < 0 || r.BusinessHours.Start > 23 {
		return fmt.Errorf("business_hours.start %d out of range", r.BusinessHours.Start)
	}
	if r.BusinessHours.End < 1 || r.BusinessHours.End > 24 {
		return fmt.Errorf("business_hours.end %d out of range", r.BusinessHours.End)
	}
	if r.BusinessHours.End <= r.BusinessHours.Start {
		return fmt.Errorf("business_hours end %d must be after start %d", r.BusinessHours.End, r.BusinessHours.Start)
	}
	return nil
}
