// Package alert defines the outbound alert-channel port used to reach a
// human reviewer, and the factory registry for channel implementations.
package alert

import (
	"context"
	"errors"

	"github.com/greenlight-hq/greenlight/internal/domain/approval"
)

// ErrNotConfigured is returned when a channel is not properly configured.
var ErrNotConfigured = errors.New("alert: not configured")

// Alert is the payload delivered to a human for a pending approval request.
type Alert struct {
	RequestID   string         `json:"request_id"`
	Kind        string         `json:"kind"`
	Target      string         `json:"target"`
	Content     string         `json:"content"`
	Criticality approval.Level `json:"criticality"`
	Message     string         `json:"message"`
}

// Channel is the port interface for one alert medium (sms, email, slack,
// desktop push). A Send failure is isolated per channel and never propagates
// to the submission that triggered it.
type Channel interface {
	// Name returns the unique identifier for this channel (e.g. "sms", "slack").
	Name() string

	// Send delivers the alert. The caller bounds ctx with a per-channel timeout.
	Send(ctx context.Context, a Alert) error
}
