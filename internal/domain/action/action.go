// Package action defines the Action domain entity: a proposed automated
// action awaiting a go/execute/refuse decision.
package action

import (
	"errors"
	"fmt"
)

// ErrMalformed reports an action rejected before any approval request was
// created. It is surfaced synchronously to the submitter.
var ErrMalformed = errors.New("action: malformed")

// Kind identifies the type of real-world effect an action performs.
type Kind string

const (
	KindEmailSend      Kind = "email_send"
	KindEmailReply     Kind = "email_reply"
	KindCalendarCreate Kind = "calendar_create"
	KindCalendarModify Kind = "calendar_modify"
	KindCallMake       Kind = "call_make"
	KindSMSSend        Kind = "sms_send"
	KindFileCreate     Kind = "file_create"
	KindFileModify     Kind = "file_modify"
	KindTaskCreate     Kind = "task_create"
	KindReminderSet    Kind = "reminder_set"
	KindFocusSession   Kind = "focus_session"
	KindArchive        Kind = "archive"
	KindLog            Kind = "log"
	KindSearch         Kind = "search"
	KindAnalyze        Kind = "analyze"
)

// Routine reports whether this kind is low-risk enough to execute without
// precedent history when classified LOW.
func (k Kind) Routine() bool {
	switch k {
	case KindLog, KindArchive, KindReminderSet, KindFocusSession:
		return true
	}
	return false
}

// Action is a proposed action submitted for a decision.
// Immutable once submitted.
type Action struct {
	Kind    Kind           `json:"kind"`
	Target  string         `json:"target"`
	Content string         `json:"content,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// Validate checks the required fields.
func (a *Action) Validate() error {
	if a.Kind == "" {
		return fmt.Errorf("%w: kind is required", ErrMalformed)
	}
	if a.Target == "" {
		return fmt.Errorf("%w: target is required", ErrMalformed)
	}
	return nil
}

// Urgent reports whether the submitter flagged the action as urgent.
func (a *Action) Urgent() bool {
	v, _ := a.Context["urgent"].(bool)
	return v
}
