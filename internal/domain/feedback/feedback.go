// Package feedback provides the ledger entry model for resolved decisions and
// the similarity features used to find precedent decisions.
package feedback

import (
	"time"

	"github.com/greenlight-hq/greenlight/internal/domain/approval"
)

// Decision is the outcome recorded for a request. Execution failures are kept
// distinct from human denials and timeouts so learning never conflates
// "human said no" with "system failed to act".
type Decision string

const (
	DecisionApproved        Decision = "approved"
	DecisionDenied          Decision = "denied"
	DecisionTimeout         Decision = "timeout"
	DecisionDeferred        Decision = "deferred"
	DecisionAutoApproved    Decision = "auto_approved"
	DecisionExecutionFailed Decision = "execution_failed"
)

// Entry is an immutable record of one decision, written once a request
// resolves (deferrals are recorded too, but do not close the request).
type Entry struct {
	ActionKind          string         `json:"action_kind"`
	Target              string         `json:"target"`
	Criticality         approval.Level `json:"criticality"`
	Decision            Decision       `json:"decision"`
	ResponseTimeSeconds *float64       `json:"response_time_seconds,omitempty"`
	Timestamp           time.Time      `json:"timestamp"`
	Context             map[string]any `json:"context,omitempty"`
}

// FromRequest builds the ledger entry for a request outcome. The action's
// content is folded into the entry context so keyword similarity survives
// persistence. The timestamp is the request's resolution time when set,
// otherwise at.
func FromRequest(r *approval.Request, d Decision, at time.Time) Entry {
	ctx := make(map[string]any, len(r.Action.Context)+1)
	for k, v := range r.Action.Context {
		ctx[k] = v
	}
	if r.Action.Content != "" {
		ctx["content"] = r.Action.Content
	}
	ts := at
	if r.ResolvedAt != nil {
		ts = *r.ResolvedAt
	}
	return Entry{
		ActionKind:          string(r.Action.Kind),
		Target:              r.Action.Target,
		Criticality:         r.Criticality,
		Decision:            d,
		ResponseTimeSeconds: r.ResponseTimeSeconds,
		Timestamp:           ts,
		Context:             ctx,
	}
}

// Content returns the action content preserved in the entry context.
func (e *Entry) Content() string {
	s, _ := e.Context["content"].(string)
	return s
}
