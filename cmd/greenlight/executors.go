package main

import (
	"context"
	"log/slog"

	"github.com/greenlight-hq/greenlight/internal/domain/action"
	"github.com/greenlight-hq/greenlight/internal/port/executor"
)

// logExecutor performs an action by recording it. It stands in for real
// integrations (mail, calendar, telephony) until those are wired; the
// permissive registry treats unregistered kinds as no-ops.
type logExecutor struct {
	kind action.Kind
}

func (e *logExecutor) Kind() action.Kind { return e.kind }

func (e *logExecutor) Execute(_ context.Context, a action.Action) error {
	slog.Info("action executed",
		"kind", a.Kind,
		"target", a.Target,
	)
	return nil
}

// devExecutors covers the routine kinds that have no external side effect.
func devExecutors() []executor.Executor {
	kinds := []action.Kind{
		action.KindLog,
		action.KindArchive,
		action.KindReminderSet,
		action.KindFocusSession,
		action.KindSearch,
		action.KindAnalyze,
	}
	execs := make([]executor.Executor, 0, len(kinds))
	for _, k := range kinds {
		execs = append(execs, &logExecutor{kind: k})
	}
	return execs
}
