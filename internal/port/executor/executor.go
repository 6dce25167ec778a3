// Package executor defines the action execution port: per-kind handlers that
// perform the real-world effect once a request is approved, registered into a
// typed lookup table at startup.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/greenlight-hq/greenlight/internal/domain/action"
)

// Executor performs the real-world effect for one action kind.
type Executor interface {
	// Kind returns the action kind this executor handles.
	Kind() action.Kind

	// Execute performs the action. A returned error is recorded as an
	// execution failure, distinct from a denial or timeout.
	Execute(ctx context.Context, a action.Action) error
}

// Registry maps action kinds to executors. It is built once at startup; a
// duplicate registration is a configuration error, not a runtime surprise.
//
// In strict mode (production) an unknown kind at execution time is an error
// surfaced to the operator. In permissive mode (dev/test) it is logged and
// treated as a successful no-op.
type Registry struct {
	executors map[action.Kind]Executor
	strict    bool
}

// NewRegistry builds a Registry from the given executors.
func NewRegistry(strict bool, execs ...Executor) (*Registry, error) {
	r := &Registry{
		executors: make(map[action.Kind]Executor, len(execs)),
		strict:    strict,
	}
	for _, e := range execs {
		kind := e.Kind()
		if kind == "" {
			return nil, fmt.Errorf("executor: empty kind")
		}
		if _, exists := r.executors[kind]; exists {
			return nil, fmt.Errorf("executor: duplicate registration for kind %q", kind)
		}
		r.executors[kind] = e
	}
	return r, nil
}

// Validate checks that every listed kind has a registered executor.
// Call it at startup in strict mode with the kinds the classifier rules name.
func (r *Registry) Validate(kinds ...action.Kind) error {
	if !r.strict {
		return nil
	}
	for _, k := range kinds {
		if _, ok := r.executors[k]; !ok {
			return fmt.Errorf("executor: no handler registered for kind %q", k)
		}
	}
	return nil
}

// Has reports whether a kind has a registered executor.
func (r *Registry) Has(kind action.Kind) bool {
	_, ok := r.executors[kind]
	return ok
}

// Execute dispatches to the executor registered for the action's kind.
func (r *Registry) Execute(ctx context.Context, a action.Action) error {
	e, ok := r.executors[a.Kind]
	if !ok {
		if r.strict {
			return fmt.Errorf("executor: unknown kind %q", a.Kind)
		}
		slog.Warn("no executor registered, treating as no-op", "kind", a.Kind)
		return nil
	}
	return e.Execute(ctx, a)
}
