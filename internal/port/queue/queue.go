// Package queue defines the message queue port (interface) for the action
// intake stream and decision event publishing.
package queue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection.
	Close() error
}

// Subject constants for the NATS subjects used by greenlight.
const (
	// SubjectActionProposed carries inbound actions for the decision pipeline.
	SubjectActionProposed = "actions.proposed"

	// SubjectActionDecided is the prefix for decision events; the terminal
	// status is appended (actions.decided.approved, actions.decided.timeout, ...).
	SubjectActionDecided = "actions.decided"
)
