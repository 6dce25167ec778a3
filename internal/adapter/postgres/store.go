package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenlight-hq/greenlight/internal/domain/action"
	"github.com/greenlight-hq/greenlight/internal/domain/approval"
	"github.com/greenlight-hq/greenlight/internal/domain/feedback"
)

// Store implements the persistence port on PostgreSQL. Feedback entries are
// append-only; the request tables hold a snapshot replaced on every save.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// AppendFeedback inserts one decision record.
func (s *Store) AppendFeedback(ctx context.Context, e feedback.Entry) error {
	entryCtx, err := json.Marshal(e.Context)
	if err != nil {
		return fmt.Errorf("encode entry context: %w", err)
	}

	const q = `
		INSERT INTO feedback_entries (action_kind, target, criticality, decision, response_time_seconds, recorded_at, context)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.pool.Exec(ctx, q,
		e.ActionKind, e.Target, string(e.Criticality), string(e.Decision),
		e.ResponseTimeSeconds, e.Timestamp, entryCtx,
	)
	if err != nil {
		return fmt.Errorf("insert feedback entry: %w", err)
	}
	return nil
}

// LoadFeedback returns all decision records, oldest first.
func (s *Store) LoadFeedback(ctx context.Context) ([]feedback.Entry, error) {
	const q = `
		SELECT action_kind, target, criticality, decision, response_time_seconds, recorded_at, context
		FROM feedback_entries
		ORDER BY recorded_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load feedback: %w", err)
	}
	defer rows.Close()

	var entries []feedback.Entry
	for rows.Next() {
		var e feedback.Entry
		var level, decision string
		var entryCtx []byte
		if err := rows.Scan(
			&e.ActionKind, &e.Target, &level, &decision,
			&e.ResponseTimeSeconds, &e.Timestamp, &entryCtx,
		); err != nil {
			return nil, fmt.Errorf("scan feedback entry: %w", err)
		}
		e.Criticality = approval.Level(level)
		e.Decision = feedback.Decision(decision)
		if len(entryCtx) > 0 {
			if err := json.Unmarshal(entryCtx, &e.Context); err != nil {
				return nil, fmt.Errorf("decode entry context: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveRequests replaces the persisted request snapshot in one transaction.
func (s *Store) SaveRequests(ctx context.Context, pending, history []*approval.Request) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save requests: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM approval_requests`); err != nil {
		return fmt.Errorf("clear requests: %w", err)
	}
	if err := insertRequests(ctx, tx, pending, true); err != nil {
		return err
	}
	if err := insertRequests(ctx, tx, history, false); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save requests: %w", err)
	}
	return nil
}

func insertRequests(ctx context.Context, tx pgx.Tx, reqs []*approval.Request, pending bool) error {
	const q = `
		INSERT INTO approval_requests (id, action, criticality, status, created_at, resolved_at, response_time_seconds, human_feedback, timeout_minutes, pending)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, r := range reqs {
		act, err := json.Marshal(r.Action)
		if err != nil {
			return fmt.Errorf("encode action: %w", err)
		}
		if _, err := tx.Exec(ctx, q,
			r.ID, act, string(r.Criticality), string(r.Status),
			r.CreatedAt, r.ResolvedAt, r.ResponseTimeSeconds,
			r.HumanFeedback, r.TimeoutMinutes, pending,
		); err != nil {
			return fmt.Errorf("insert request %s: %w", r.ID, err)
		}
	}
	return nil
}

// LoadRequests returns the persisted pending and resolved request sets.
func (s *Store) LoadRequests(ctx context.Context) ([]*approval.Request, []*approval.Request, error) {
	const q = `
		SELECT id, action, criticality, status, created_at, resolved_at, response_time_seconds, human_feedback, timeout_minutes, pending
		FROM approval_requests
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("load requests: %w", err)
	}
	defer rows.Close()

	var pendingReqs, history []*approval.Request
	for rows.Next() {
		var r approval.Request
		var act []byte
		var level, status string
		var pending bool
		if err := rows.Scan(
			&r.ID, &act, &level, &status, &r.CreatedAt, &r.ResolvedAt,
			&r.ResponseTimeSeconds, &r.HumanFeedback, &r.TimeoutMinutes, &pending,
		); err != nil {
			return nil, nil, fmt.Errorf("scan request: %w", err)
		}
		var a action.Action
		if err := json.Unmarshal(act, &a); err != nil {
			return nil, nil, fmt.Errorf("decode action: %w", err)
		}
		r.Action = a
		r.Criticality = approval.Level(level)
		r.Status = approval.Status(status)
		if pending {
			pendingReqs = append(pendingReqs, &r)
		} else {
			history = append(history, &r)
		}
	}
	return pendingReqs, history, rows.Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
