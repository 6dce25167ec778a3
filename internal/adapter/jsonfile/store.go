// Package jsonfile implements the persistence store on plain JSON files.
// It is the default backend for single-node deployments without Postgres.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/greenlight-hq/greenlight/internal/domain/approval"
	"github.com/greenlight-hq/greenlight/internal/domain/feedback"
)

const (
	feedbackFile = "feedback.json"
	requestsFile = "requests.json"
)

// Store persists feedback history and request state under a single directory.
// Writes go through a temp file and rename so a crash mid-write never leaves
// a truncated JSON document behind.
type Store struct {
	mu  sync.Mutex
	dir string
}

// requestsDoc is the on-disk shape of requests.json.
type requestsDoc struct {
	Pending []*approval.Request `json:"pending"`
	History []*approval.Request `json:"history"`
}

// NewStore creates the data directory if needed and returns a store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// AppendFeedback reads the feedback file, appends the entry and writes the
// whole file back. The history is bounded upstream so the rewrite stays cheap.
func (s *Store) AppendFeedback(ctx context.Context, e feedback.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readFeedback()
	if err != nil {
		return err
	}
	entries = append(entries, e)
	return s.writeJSON(feedbackFile, entries)
}

// LoadFeedback returns all persisted feedback entries. A missing file is an
// empty history, not an error.
func (s *Store) LoadFeedback(ctx context.Context) ([]feedback.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readFeedback()
}

// SaveRequests replaces the persisted request state with the given snapshot.
func (s *Store) SaveRequests(ctx context.Context, pending, history []*approval.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(requestsFile, requestsDoc{Pending: pending, History: history})
}

// LoadRequests returns the persisted pending and history request sets.
func (s *Store) LoadRequests(ctx context.Context) ([]*approval.Request, []*approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, requestsFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read requests: %w", err)
	}

	var doc requestsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse requests: %w", err)
	}
	return doc.Pending, doc.History, nil
}

// Close is a no-op; files are flushed on every write.
func (s *Store) Close() error { return nil }

func (s *Store) readFeedback() ([]feedback.Entry, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, feedbackFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read feedback: %w", err)
	}

	var entries []feedback.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse feedback: %w", err)
	}
	return entries, nil
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
