package ws

import (
	"context"
	"fmt"

	"github.com/greenlight-hq/greenlight/internal/port/alert"
)

const channelName = "desktop"

// AlertChannel adapts the hub to the alert port. Delivery fails when no
// client is connected so the dispatcher can count it against the channel's
// breaker instead of silently dropping the alert.
type AlertChannel struct {
	hub *Hub
}

// NewAlertChannel wraps a hub as the "desktop" alert channel.
func NewAlertChannel(hub *Hub) *AlertChannel {
	return &AlertChannel{hub: hub}
}

func (c *AlertChannel) Name() string { return channelName }

func (c *AlertChannel) Send(ctx context.Context, a alert.Alert) error {
	if c.hub.ConnectionCount() == 0 {
		return fmt.Errorf("desktop: no connected clients")
	}
	c.hub.BroadcastEvent(ctx, EventApprovalRequested, ApprovalRequestedEvent{
		RequestID:   a.RequestID,
		Kind:        a.Kind,
		Target:      a.Target,
		Criticality: string(a.Criticality),
	})
	return nil
}
