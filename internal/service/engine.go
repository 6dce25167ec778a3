// Package service wires the classifier, ledger, alert channels and executors
// into the approval engine and the decision pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/greenlight-hq/greenlight/internal/adapter/otel"
	"github.com/greenlight-hq/greenlight/internal/adapter/ws"
	"github.com/greenlight-hq/greenlight/internal/classify"
	"github.com/greenlight-hq/greenlight/internal/domain/action"
	"github.com/greenlight-hq/greenlight/internal/domain/approval"
	"github.com/greenlight-hq/greenlight/internal/domain/feedback"
	"github.com/greenlight-hq/greenlight/internal/ledger"
	"github.com/greenlight-hq/greenlight/internal/port/alert"
	"github.com/greenlight-hq/greenlight/internal/port/store"
	"github.com/greenlight-hq/greenlight/internal/resilience"
)

// ErrNotFound is returned for unknown request ids. Ids that already
// resolved into history surface approval.ErrAlreadyResolved instead.
var ErrNotFound = errors.New("approval: request not found")

// ErrUnknownVerdict is returned for a decision that is neither approve nor deny.
var ErrUnknownVerdict = errors.New("approval: unknown verdict")

const (
	defaultSweepInterval = 30 * time.Second
	defaultAlertTimeout  = 30 * time.Second
	defaultHistoryCap    = 1000

	defaultAutoApproveRate  = 0.95
	defaultAutoApproveCount = 10

	breakerMaxFailures = 3
	breakerCooldown    = 2 * time.Minute
)

// Engine owns the pending approval set. Every transition on a request
// (submission, decision, defer, timeout sweep) happens under one mutex, so a
// request can never be both expired and approved.
type Engine struct {
	classifier *classify.Classifier
	ledger     *ledger.Ledger

	mu      sync.Mutex
	pending map[string]*approval.Request
	history []*approval.Request

	channels   []alert.Channel
	breakers   *resilience.Group
	hub        *ws.Hub
	st         store.Store
	metrics    *otel.Metrics
	now        func() time.Time
	sweepEvery time.Duration
	alertWait  time.Duration
	historyCap int
	autoRate   float64
	autoCount  int

	stop chan struct{}
	done chan struct{}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithChannels sets the alert channels notified on pending requests.
func WithChannels(chs ...alert.Channel) EngineOption {
	return func(e *Engine) { e.channels = chs }
}

// WithHub sets the WebSocket hub for approval lifecycle events.
func WithHub(h *ws.Hub) EngineOption {
	return func(e *Engine) { e.hub = h }
}

// WithStore sets the persistence backend for request state.
func WithStore(st store.Store) EngineOption {
	return func(e *Engine) { e.st = st }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *otel.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithSweepInterval overrides how often the timeout sweep runs.
func WithSweepInterval(d time.Duration) EngineOption {
	return func(e *Engine) { e.sweepEvery = d }
}

// WithAutoApprove sets the learning thresholds: the minimum similarity-
// weighted approval rate and the minimum number of similar precedents.
func WithAutoApprove(rate float64, minPrecedents int) EngineOption {
	return func(e *Engine) {
		e.autoRate = rate
		e.autoCount = minPrecedents
	}
}

// NewEngine creates an engine over the given classifier and ledger.
func NewEngine(classifier *classify.Classifier, lg *ledger.Ledger, opts ...EngineOption) *Engine {
	e := &Engine{
		classifier: classifier,
		ledger:     lg,
		pending:    make(map[string]*approval.Request),
		breakers:   resilience.NewGroup(breakerMaxFailures, breakerCooldown),
		now:        time.Now,
		sweepEvery: defaultSweepInterval,
		alertWait:  defaultAlertTimeout,
		historyCap: defaultHistoryCap,
		autoRate:   defaultAutoApproveRate,
		autoCount:  defaultAutoApproveCount,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit classifies the action and either auto-approves it or parks it as a
// pending request and alerts the configured channels. Malformed actions are
// rejected synchronously and never create a request.
func (e *Engine) Submit(ctx context.Context, a action.Action) (*approval.Request, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	level := e.classifier.Classify(a)
	now := e.now().UTC()
	req := approval.NewRequest(a, level, now)

	if e.metrics != nil {
		e.metrics.ActionsSubmitted.Add(ctx, 1)
	}

	if e.canAutoApprove(ctx, a, level) {
		if err := req.AutoApprove(now); err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.appendHistory(req)
		e.persistLocked(ctx)
		e.mu.Unlock()

		e.ledger.Record(ctx, feedback.FromRequest(req, feedback.DecisionAutoApproved, now))
		if e.metrics != nil {
			e.metrics.AutoApproved.Add(ctx, 1)
		}
		e.broadcastResolved(ctx, req)
		slog.Info("action auto-approved",
			"request_id", req.ID, "kind", a.Kind, "criticality", level)
		return req, nil
	}

	e.mu.Lock()
	e.pending[req.ID] = req
	e.persistLocked(ctx)
	e.mu.Unlock()

	slog.Info("approval requested",
		"request_id", req.ID, "kind", a.Kind, "target", a.Target,
		"criticality", level, "timeout_minutes", req.TimeoutMinutes)

	if e.hub != nil {
		e.hub.BroadcastEvent(ctx, ws.EventApprovalRequested, ws.ApprovalRequestedEvent{
			RequestID:      req.ID,
			Kind:           string(a.Kind),
			Target:         a.Target,
			Criticality:    string(level),
			TimeoutMinutes: req.TimeoutMinutes,
		})
	}
	go e.dispatchAlerts(context.WithoutCancel(ctx), req)

	return req, nil
}

// canAutoApprove applies the learning rule: HIGH never auto-approves; LOW
// routine kinds execute without precedent; everything else needs a strong
// approval history among similar past decisions.
func (e *Engine) canAutoApprove(ctx context.Context, a action.Action, level approval.Level) bool {
	if level == approval.LevelHigh {
		return false
	}
	if level == approval.LevelLow && a.Kind.Routine() {
		return true
	}
	rate := e.ledger.ApprovalRate(ctx, a)
	if rate == nil {
		return false
	}
	return *rate >= e.autoRate && e.ledger.SimilarCount(a) >= e.autoCount
}

// Decide applies a human verdict to a pending request. The first terminal
// transition wins; a later attempt gets ErrAlreadyResolved if the request
// reached history, ErrNotFound if the id was never seen.
func (e *Engine) Decide(ctx context.Context, id string, verdict approval.Verdict, humanFeedback string) (*approval.Request, error) {
	now := e.now().UTC()

	e.mu.Lock()
	req, ok := e.pending[id]
	if !ok {
		err := e.missingLocked(id)
		e.mu.Unlock()
		return nil, err
	}

	var err error
	var decision feedback.Decision
	switch verdict {
	case approval.VerdictApprove:
		err = req.Approve(humanFeedback, now)
		decision = feedback.DecisionApproved
	case approval.VerdictDeny:
		err = req.Deny(humanFeedback, now)
		decision = feedback.DecisionDenied
	default:
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownVerdict, verdict)
	}
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	delete(e.pending, id)
	e.appendHistory(req)
	e.persistLocked(ctx)
	e.mu.Unlock()

	e.ledger.Record(ctx, feedback.FromRequest(req, decision, now))
	e.observeDecision(ctx, req, decision)
	e.broadcastResolved(ctx, req)

	slog.Info("approval decided",
		"request_id", req.ID, "status", req.Status,
		"response_time_seconds", req.ResponseTimeSeconds)
	return req, nil
}

// Defer pushes a pending request's clock forward by d. The request keeps its
// id and stays pending; its timeout counts from the deferred time.
func (e *Engine) Defer(ctx context.Context, id string, d time.Duration) (*approval.Request, error) {
	now := e.now().UTC()

	e.mu.Lock()
	req, ok := e.pending[id]
	if !ok {
		err := e.missingLocked(id)
		e.mu.Unlock()
		return nil, err
	}
	if err := req.Defer(d, now); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.persistLocked(ctx)
	e.mu.Unlock()

	e.ledger.Record(ctx, feedback.FromRequest(req, feedback.DecisionDeferred, now))
	if e.metrics != nil {
		e.metrics.Deferred.Add(ctx, 1)
	}

	slog.Info("approval deferred", "request_id", req.ID, "until", req.CreatedAt)
	return req, nil
}

// missingLocked classifies an id absent from the pending set: an id found
// in history already resolved, anything else was never submitted. Must be
// called with e.mu held.
func (e *Engine) missingLocked(id string) error {
	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].ID == id {
			return fmt.Errorf("%w: %s", approval.ErrAlreadyResolved, id)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Status returns the current status of a request, pending or resolved.
func (e *Engine) Status(id string) (approval.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req, ok := e.pending[id]; ok {
		return req.Status, nil
	}
	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].ID == id {
			return e.history[i].Status, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Get returns a request by id, pending or resolved.
func (e *Engine) Get(id string) (*approval.Request, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req, ok := e.pending[id]; ok {
		return req, nil
	}
	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].ID == id {
			return e.history[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// ListPending returns all pending requests, oldest first.
func (e *Engine) ListPending() []*approval.Request {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*approval.Request, 0, len(e.pending))
	for _, req := range e.pending {
		out = append(out, req)
	}
	sortByCreatedAt(out)
	return out
}

// ListHistory returns the most recent limit resolved requests, newest first.
// limit <= 0 returns the full bounded history.
func (e *Engine) ListHistory(limit int) []*approval.Request {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*approval.Request, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, e.history[i])
	}
	return out
}

// SuggestAdjustment returns the ledger's criticality-adjustment hint for an
// action: "lower", "higher" or "" when history is thin or inconclusive.
func (e *Engine) SuggestAdjustment(a action.Action) string {
	return e.ledger.SuggestAdjustment(a)
}

// Restore loads persisted request state. Requests that outlived their
// timeout while the process was down are expired immediately, so a restart
// never resurrects an overdue request as approvable.
func (e *Engine) Restore(ctx context.Context) error {
	if e.st == nil {
		return nil
	}
	pending, history, err := e.st.LoadRequests(ctx)
	if err != nil {
		return fmt.Errorf("restore requests: %w", err)
	}

	now := e.now().UTC()
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = history
	for _, req := range pending {
		if req.Expired(now) {
			if err := req.Expire(now); err == nil {
				e.appendHistory(req)
				e.ledger.Record(ctx, feedback.FromRequest(req, feedback.DecisionTimeout, now))
				slog.Warn("request expired during downtime", "request_id", req.ID)
			}
			continue
		}
		e.pending[req.ID] = req
	}
	slog.Info("request state restored",
		"pending", len(e.pending), "history", len(e.history))
	return nil
}

// Start runs the timeout sweep until Stop is called.
func (e *Engine) Start() {
	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.sweep(context.Background())
			case <-e.stop:
				return
			}
		}
	}()
}

// Stop halts the timeout sweep and waits for it to exit.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
}

// sweep expires every pending request past its timeout. Expiry is a terminal
// transition under the same mutex as decisions, so a request resolved between
// ticks is never expired twice.
func (e *Engine) sweep(ctx context.Context) {
	now := e.now().UTC()

	e.mu.Lock()
	var expired []*approval.Request
	for id, req := range e.pending {
		if !req.Expired(now) {
			continue
		}
		if err := req.Expire(now); err != nil {
			continue
		}
		delete(e.pending, id)
		e.appendHistory(req)
		expired = append(expired, req)
	}
	if len(expired) > 0 {
		e.persistLocked(ctx)
	}
	e.mu.Unlock()

	for _, req := range expired {
		e.ledger.Record(ctx, feedback.FromRequest(req, feedback.DecisionTimeout, now))
		e.observeDecision(ctx, req, feedback.DecisionTimeout)
		e.broadcastResolved(ctx, req)
		slog.Warn("approval timed out",
			"request_id", req.ID, "kind", req.Action.Kind,
			"criticality", req.Criticality)
	}
}

// intrusiveChannel is reserved for HIGH criticality; a MEDIUM request does
// not page anyone's phone.
const intrusiveChannel = "sms"

// channelsFor sizes the alert fan-out to the request's criticality. HIGH
// reaches every channel, MEDIUM skips intrusive ones, LOW alerts nobody;
// LOW pending requests still surface through the dashboard event.
func (e *Engine) channelsFor(level approval.Level) []alert.Channel {
	switch level {
	case approval.LevelHigh:
		return e.channels
	case approval.LevelMedium:
		out := make([]alert.Channel, 0, len(e.channels))
		for _, ch := range e.channels {
			if ch.Name() == intrusiveChannel {
				continue
			}
			out = append(out, ch)
		}
		return out
	default:
		return nil
	}
}

// dispatchAlerts fans the alert out to every channel selected for the
// request's criticality, concurrently. Each delivery is bounded by its own
// timeout and counted against the channel's breaker; a HIGH request with
// zero successful deliveries is logged as a degraded alert so operators
// notice before the request times out.
func (e *Engine) dispatchAlerts(ctx context.Context, req *approval.Request) {
	channels := e.channelsFor(req.Criticality)
	if len(channels) == 0 {
		return
	}

	a := alert.Alert{
		RequestID:   req.ID,
		Kind:        string(req.Action.Kind),
		Target:      req.Action.Target,
		Content:     req.Action.Content,
		Criticality: req.Criticality,
		Message: fmt.Sprintf("Approval needed within %d minutes: %s -> %s",
			req.TimeoutMinutes, req.Action.Kind, req.Action.Target),
	}

	var wg sync.WaitGroup
	results := make(chan error, len(channels))
	for _, ch := range channels {
		wg.Add(1)
		go func(ch alert.Channel) {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, e.alertWait)
			defer cancel()

			spanCtx, span := otel.StartAlertSpan(sendCtx, req.ID, ch.Name())
			err := e.breakers.For(ch.Name()).Execute(func() (err error) {
				// A panicking channel implementation is a failed
				// delivery, counted against its breaker like any
				// other error. It never takes down the dispatch.
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("channel %s panicked: %v", ch.Name(), r)
					}
				}()
				return ch.Send(spanCtx, a)
			})
			span.End()

			if err != nil {
				slog.Warn("alert delivery failed",
					"channel", ch.Name(), "request_id", req.ID, "error", err)
				if e.metrics != nil {
					e.metrics.AlertFailures.Add(ctx, 1)
				}
			}
			results <- err
		}(ch)
	}
	wg.Wait()
	close(results)

	failures := 0
	for err := range results {
		if err != nil {
			failures++
		}
	}
	if failures == len(channels) && req.Criticality == approval.LevelHigh {
		slog.Error("all alert channels failed for high-criticality request",
			"request_id", req.ID, "channels", len(channels))
	}
}

func (e *Engine) observeDecision(ctx context.Context, req *approval.Request, d feedback.Decision) {
	if e.metrics == nil {
		return
	}
	switch d {
	case feedback.DecisionApproved:
		e.metrics.Approved.Add(ctx, 1)
	case feedback.DecisionDenied:
		e.metrics.Denied.Add(ctx, 1)
	case feedback.DecisionTimeout:
		e.metrics.Timeouts.Add(ctx, 1)
	}
	if req.ResolvedAt != nil {
		e.metrics.DecisionDuration.Record(ctx, req.ResolvedAt.Sub(req.CreatedAt).Seconds())
	}
}

func (e *Engine) broadcastResolved(ctx context.Context, req *approval.Request) {
	if e.hub == nil {
		return
	}
	e.hub.BroadcastEvent(ctx, ws.EventApprovalResolved, ws.ApprovalResolvedEvent{
		RequestID: req.ID,
		Status:    string(req.Status),
		Feedback:  req.HumanFeedback,
	})
}

// appendHistory must be called with e.mu held.
func (e *Engine) appendHistory(req *approval.Request) {
	e.history = append(e.history, req)
	if len(e.history) > e.historyCap {
		e.history = e.history[len(e.history)-e.historyCap:]
	}
}

// persistLocked snapshots request state to the store. Must be called with
// e.mu held. Persistence failures degrade durability, not availability.
func (e *Engine) persistLocked(ctx context.Context) {
	if e.st == nil {
		return
	}
	pending := make([]*approval.Request, 0, len(e.pending))
	for _, req := range e.pending {
		pending = append(pending, req)
	}
	history := make([]*approval.Request, len(e.history))
	copy(history, e.history)

	if err := e.st.SaveRequests(ctx, pending, history); err != nil {
		slog.Error("request state not persisted", "error", err)
	}
}

func sortByCreatedAt(reqs []*approval.Request) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}
