package ws

import (
	"context"
	"testing"

	"github.com/greenlight-hq/greenlight/internal/port/alert"
)

var _ alert.Channel = (*AlertChannel)(nil)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestBroadcastNoConnections(t *testing.T) {
	hub := NewHub()

	// Broadcast with no connections should not panic.
	hub.Broadcast(context.Background(), Message{
		Type:    "test",
		Payload: []byte(`{"key":"value"}`),
	})
}

func TestBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub()

	// A channel cannot be marshaled to JSON; should log, not panic.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
}

func TestRemoveNonexistent(t *testing.T) {
	hub := NewHub()

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{ws: nil, cancel: cancel}
	hub.remove(c)
}

func TestAlertChannelNoClients(t *testing.T) {
	c := NewAlertChannel(NewHub())
	if c.Name() != "desktop" {
		t.Fatalf("name = %q", c.Name())
	}
	if err := c.Send(context.Background(), alert.Alert{RequestID: "abc"}); err == nil {
		t.Fatal("expected error with no connected clients")
	}
}
