// Package classify implements the criticality classifier: a deterministic,
// side-effect-free mapping from a proposed action to LOW, MEDIUM or HIGH.
package classify

import (
	"fmt"
	"strings"
	"time"

	"github.com/greenlight-hq/greenlight/internal/domain/action"
	"github.com/greenlight-hq/greenlight/internal/domain/approval"
)

// Classifier classifies actions by criticality level using static rules.
type Classifier struct {
	rules Rules
	now   func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock overrides the time source. Used by tests and by callers that need
// reproducible context-level decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// New creates a Classifier from the given rules.
func New(rules Rules, opts ...Option) *Classifier {
	c := &Classifier{rules: rules, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is a classification verdict with its human-readable reasons.
// Reasons are for audit only, never for control flow.
type Result struct {
	Level   approval.Level `json:"level"`
	Reasons []string       `json:"reasons"`
}

// Classify returns the criticality level for an action.
//
// Precedence: a VIP target match wins immediately with HIGH; otherwise the
// result is the maximum of the kind's base level, the content keyword level
// and the context level (outside business hours, urgent flag).
func (c *Classifier) Classify(a action.Action) approval.Level {
	return c.Explain(a).Level
}

// Explain returns the same verdict as Classify plus the reasons behind it.
func (c *Classifier) Explain(a action.Action) Result {
	if vip := c.vipMatch(a.Target); vip != "" {
		return Result{
			Level:   approval.LevelHigh,
			Reasons: []string{fmt.Sprintf("target %q matches VIP contact %q", a.Target, vip)},
		}
	}

	base := c.baseLevel(a.Kind)
	level := base
	reasons := []string{fmt.Sprintf("action kind %q has base level %s", a.Kind, base)}

	if kwLevel, kw := c.keywordLevel(a.Content); kw != "" {
		level = approval.MaxLevel(level, kwLevel)
		reasons = append(reasons, fmt.Sprintf("content contains %s keyword %q", kwLevel, kw))
	}

	if ctxLevel, why := c.contextLevel(a); why != "" {
		level = approval.MaxLevel(level, ctxLevel)
		reasons = append(reasons, why)
	}

	return Result{Level: level, Reasons: reasons}
}

// vipMatch returns the matching VIP identifier, or "" when none matches.
// Matching is case-insensitive substring.
func (c *Classifier) vipMatch(target string) string {
	lower := strings.ToLower(target)
	for _, vip := range c.rules.VIPContacts {
		if vip != "" && strings.Contains(lower, strings.ToLower(vip)) {
			return vip
		}
	}
	return ""
}

func (c *Classifier) baseLevel(kind action.Kind) approval.Level {
	if level, ok := c.rules.ActionDefaults[string(kind)]; ok {
		return level
	}
	return approval.LevelMedium
}

// keywordLevel scans content against the keyword sets, high set first;
// the first matching set wins.
func (c *Classifier) keywordLevel(content string) (approval.Level, string) {
	lower := strings.ToLower(content)
	sets := []struct {
		level    approval.Level
		keywords []string
	}{
		{approval.LevelHigh, c.rules.Keywords.High},
		{approval.LevelMedium, c.rules.Keywords.Medium},
		{approval.LevelLow, c.rules.Keywords.Low},
	}
	for _, set := range sets {
		for _, kw := range set.keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return set.level, kw
			}
		}
	}
	return approval.LevelLow, ""
}

// contextLevel derives a level from the submission context: outside business
// hours raises to at least MEDIUM, an explicit urgent flag to HIGH.
func (c *Classifier) contextLevel(a action.Action) (approval.Level, string) {
	level := approval.LevelLow
	why := ""

	if c.rules.BusinessHours.EscalateOutside {
		hour := c.now().Hour()
		if hour < c.rules.BusinessHours.Start || hour >= c.rules.BusinessHours.End {
			level = approval.LevelMedium
			why = fmt.Sprintf("submitted outside business hours (%02d:00-%02d:00)",
				c.rules.BusinessHours.Start, c.rules.BusinessHours.End)
		}
	}

	if a.Urgent() {
		level = approval.LevelHigh
		why = "context marked urgent"
	}

	return level, why
}
