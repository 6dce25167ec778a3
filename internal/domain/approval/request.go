// Package approval defines the approval request entity and its state machine:
// PENDING -> {APPROVED, DENIED, TIMEOUT, AUTO_APPROVED} (terminal) or a
// non-terminal defer that pushes the clock forward and stays PENDING.
package approval

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/greenlight-hq/greenlight/internal/domain/action"
)

// ErrAlreadyResolved is returned when a terminal transition is attempted on a
// request that has already left PENDING. Exactly one terminal transition
// occurs per request; later attempts are rejected, never overwritten.
var ErrAlreadyResolved = errors.New("approval: request already resolved")

// Request is a single unit of work awaiting a decision.
//
// Request methods do not lock; the owning engine serializes all transitions
// (decide, defer and the timeout sweep) under a single mutex so a request can
// never be both expired and approved.
type Request struct {
	ID                  string        `json:"id"`
	Action              action.Action `json:"action"`
	Criticality         Level         `json:"criticality"`
	Status              Status        `json:"status"`
	CreatedAt           time.Time     `json:"created_at"`
	ResolvedAt          *time.Time    `json:"resolved_at,omitempty"`
	ResponseTimeSeconds *float64      `json:"response_time_seconds,omitempty"`
	HumanFeedback       string        `json:"human_feedback,omitempty"`
	TimeoutMinutes      int           `json:"timeout_minutes"`
}

// NewRequest creates a PENDING request for the given action. The timeout is
// derived from criticality: HIGH=5m, MEDIUM=15m, LOW=60m.
func NewRequest(a action.Action, level Level, now time.Time) *Request {
	return &Request{
		ID:             uuid.NewString(),
		Action:         a,
		Criticality:    level,
		Status:         StatusPending,
		CreatedAt:      now,
		TimeoutMinutes: int(level.Timeout().Minutes()),
	}
}

// Expired reports whether a PENDING request has outlived its timeout.
// Resolved requests never expire.
func (r *Request) Expired(now time.Time) bool {
	if r.Status != StatusPending {
		return false
	}
	return now.After(r.CreatedAt.Add(time.Duration(r.TimeoutMinutes) * time.Minute))
}

// resolve applies the single terminal transition. The resolution time is
// clamped to CreatedAt so resolved_at >= created_at holds even when a defer
// pushed CreatedAt past now.
func (r *Request) resolve(st Status, now time.Time, withResponseTime bool) error {
	if r.Status != StatusPending {
		return ErrAlreadyResolved
	}
	if now.Before(r.CreatedAt) {
		now = r.CreatedAt
	}
	r.Status = st
	t := now
	r.ResolvedAt = &t
	if withResponseTime {
		secs := now.Sub(r.CreatedAt).Seconds()
		r.ResponseTimeSeconds = &secs
	}
	return nil
}

// Approve resolves the request as APPROVED with optional free-text feedback.
func (r *Request) Approve(feedback string, now time.Time) error {
	if err := r.resolve(StatusApproved, now, true); err != nil {
		return err
	}
	r.HumanFeedback = feedback
	return nil
}

// Deny resolves the request as DENIED with optional free-text feedback.
func (r *Request) Deny(feedback string, now time.Time) error {
	if err := r.resolve(StatusDenied, now, true); err != nil {
		return err
	}
	r.HumanFeedback = feedback
	return nil
}

// Defer pushes CreatedAt forward by d. The request keeps its id, stays
// PENDING and the timeout counts from the new CreatedAt. A later approval
// reports response time measured from the most recent defer.
func (r *Request) Defer(d time.Duration, now time.Time) error {
	if r.Status != StatusPending {
		return ErrAlreadyResolved
	}
	r.CreatedAt = now.Add(d)
	return nil
}

// Expire resolves a PENDING request as TIMEOUT. Only the engine's timeout
// sweep calls this; it is never exposed to callers.
func (r *Request) Expire(now time.Time) error {
	return r.resolve(StatusTimeout, now, false)
}

// AutoApprove resolves the request as AUTO_APPROVED. It happens at submission
// time, before the request is ever exposed as pending.
func (r *Request) AutoApprove(now time.Time) error {
	return r.resolve(StatusAutoApproved, now, false)
}
