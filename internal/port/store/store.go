// Package store defines the persistence port for the approval engine and the
// feedback ledger. Persistence failures are logged and non-fatal: the engine
// keeps operating in memory when a store call fails.
package store

import (
	"context"

	"github.com/greenlight-hq/greenlight/internal/domain/approval"
	"github.com/greenlight-hq/greenlight/internal/domain/feedback"
)

// Store is the port interface for durable state.
type Store interface {
	// AppendFeedback persists one ledger entry.
	AppendFeedback(ctx context.Context, e feedback.Entry) error

	// LoadFeedback returns all persisted ledger entries, oldest first.
	LoadFeedback(ctx context.Context) ([]feedback.Entry, error)

	// SaveRequests snapshots the pending set and resolved history.
	// Called on resolution and on engine shutdown.
	SaveRequests(ctx context.Context, pending, history []*approval.Request) error

	// LoadRequests restores the last snapshot. Requests come back with their
	// original created_at so timeouts resume counting down.
	LoadRequests(ctx context.Context) (pending, history []*approval.Request, err error)

	// Close releases any underlying resources.
	Close() error
}
