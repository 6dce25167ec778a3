package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/greenlight-hq/greenlight/internal/adapter/otel"
	"github.com/greenlight-hq/greenlight/internal/adapter/ws"
	"github.com/greenlight-hq/greenlight/internal/domain/action"
	"github.com/greenlight-hq/greenlight/internal/domain/approval"
	"github.com/greenlight-hq/greenlight/internal/domain/feedback"
	"github.com/greenlight-hq/greenlight/internal/port/executor"
	"github.com/greenlight-hq/greenlight/internal/port/queue"
)

const (
	defaultConcurrency  = 5
	defaultPollInterval = 5 * time.Second
	defaultBacklog      = 100
)

// Pipeline drives an action from submission to execution: classify and
// submit via the engine, wait for the terminal decision, execute approved
// actions and publish the outcome. At most Concurrency actions are in flight
// at once; a slot is held for the whole approval wait.
type Pipeline struct {
	engine  *Engine
	exec    *executor.Registry
	ledger  ledgerRecorder
	pub     publisher
	hub     *ws.Hub
	metrics *otel.Metrics

	sem     *semaphore.Weighted
	backlog chan action.Action
	poll    time.Duration
	now     func() time.Time

	submitted  atomic.Int64
	completed  atomic.Int64
	executed   atomic.Int64
	execFailed atomic.Int64
	rejected   atomic.Int64
}

// ledgerRecorder is the slice of the ledger the pipeline needs: recording
// execution failures.
type ledgerRecorder interface {
	Record(ctx context.Context, e feedback.Entry)
}

// publisher is the slice of the queue port the pipeline publishes decision
// events on.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithConcurrency bounds the number of in-flight actions.
func WithConcurrency(n int64) PipelineOption {
	return func(p *Pipeline) { p.sem = semaphore.NewWeighted(n) }
}

// WithPollInterval overrides how often the pipeline polls for a decision.
func WithPollInterval(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.poll = d }
}

// WithPublisher sets the queue decision events are published on.
func WithPublisher(pub publisher) PipelineOption {
	return func(p *Pipeline) { p.pub = pub }
}

// WithPipelineHub sets the WebSocket hub for execution events.
func WithPipelineHub(h *ws.Hub) PipelineOption {
	return func(p *Pipeline) { p.hub = h }
}

// WithPipelineMetrics sets the metric instruments.
func WithPipelineMetrics(m *otel.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a pipeline over the engine and executor registry.
func NewPipeline(engine *Engine, exec *executor.Registry, lg ledgerRecorder, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		engine:  engine,
		exec:    exec,
		ledger:  lg,
		sem:     semaphore.NewWeighted(defaultConcurrency),
		backlog: make(chan action.Action, defaultBacklog),
		poll:    defaultPollInterval,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue adds an action to the backlog. It fails when the backlog is full
// rather than blocking the submitter.
func (p *Pipeline) Enqueue(a action.Action) error {
	select {
	case p.backlog <- a:
		return nil
	default:
		return fmt.Errorf("pipeline: backlog full")
	}
}

// HandleMessage decodes an action from a queue message and enqueues it.
// Wired as the handler for the action intake subject.
func (p *Pipeline) HandleMessage(_ context.Context, subject string, data []byte) error {
	var a action.Action
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("decode action from %s: %w", subject, err)
	}
	return p.Enqueue(a)
}

// Run consumes the backlog until ctx is cancelled. Each action gets its own
// goroutine; the semaphore bounds how many run concurrently.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-p.backlog:
			if err := p.sem.Acquire(ctx, 1); err != nil {
				return
			}
			go func(a action.Action) {
				defer p.sem.Release(1)
				if _, err := p.Process(ctx, a); err != nil {
					slog.Error("pipeline processing failed",
						"kind", a.Kind, "target", a.Target, "error", err)
				}
			}(a)
		}
	}
}

// Process runs one action through the full decision loop and returns the
// resolved request. Malformed actions are rejected without a request. The
// caller holds a concurrency slot for the whole call.
func (p *Pipeline) Process(ctx context.Context, a action.Action) (*approval.Request, error) {
	p.submitted.Add(1)

	req, err := p.engine.Submit(ctx, a)
	if err != nil {
		p.rejected.Add(1)
		return nil, err
	}

	ctx, span := otel.StartDecisionSpan(ctx, req.ID, string(a.Kind), string(req.Criticality))
	defer span.End()

	status, err := p.await(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	p.completed.Add(1)

	resolved, err := p.engine.Get(req.ID)
	if err != nil {
		return nil, err
	}

	if status.Executable() {
		p.execute(ctx, resolved)
	}
	p.publishDecision(ctx, resolved)

	return resolved, nil
}

// await polls until the request reaches a terminal status. Polling goes
// through the engine so the read is serialized with decisions and the sweep.
func (p *Pipeline) await(ctx context.Context, id string) (approval.Status, error) {
	for {
		status, err := p.engine.Status(id)
		if err != nil {
			return "", err
		}
		if status.Terminal() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.poll):
		}
	}
}

// execute runs the approved action. An execution failure is recorded in the
// ledger as its own decision kind so the learner never reads it as a denial.
func (p *Pipeline) execute(ctx context.Context, req *approval.Request) {
	execCtx, span := otel.StartExecuteSpan(ctx, req.ID, string(req.Action.Kind))
	err := p.exec.Execute(execCtx, req.Action)
	span.End()

	if err != nil {
		p.execFailed.Add(1)
		if p.metrics != nil {
			p.metrics.ExecutionFailures.Add(ctx, 1)
		}
		p.ledger.Record(ctx, feedback.FromRequest(req, feedback.DecisionExecutionFailed, p.now().UTC()))
		slog.Error("action execution failed",
			"request_id", req.ID, "kind", req.Action.Kind, "error", err)
	} else {
		p.executed.Add(1)
	}

	if p.hub != nil {
		ev := ws.ActionExecutedEvent{
			RequestID: req.ID,
			Kind:      string(req.Action.Kind),
			Success:   err == nil,
		}
		if err != nil {
			ev.Error = err.Error()
		}
		p.hub.BroadcastEvent(ctx, ws.EventActionExecuted, ev)
	}
}

// publishDecision emits the terminal outcome on the decision subject.
func (p *Pipeline) publishDecision(ctx context.Context, req *approval.Request) {
	if p.pub == nil {
		return
	}
	data, err := json.Marshal(req)
	if err != nil {
		slog.Error("encode decision event", "request_id", req.ID, "error", err)
		return
	}
	subject := queue.SubjectActionDecided + "." + string(req.Status)
	if err := p.pub.Publish(ctx, subject, data); err != nil {
		slog.Warn("decision event not published",
			"request_id", req.ID, "subject", subject, "error", err)
	}
}

// PipelineStats counts pipeline outcomes since startup.
type PipelineStats struct {
	Submitted         int64 `json:"submitted"`
	Completed         int64 `json:"completed"`
	Executed          int64 `json:"executed"`
	ExecutionFailures int64 `json:"execution_failures"`
	Rejected          int64 `json:"rejected"`
}

// Stats snapshots the pipeline counters.
func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		Submitted:         p.submitted.Load(),
		Completed:         p.completed.Load(),
		Executed:          p.executed.Load(),
		ExecutionFailures: p.execFailed.Load(),
		Rejected:          p.rejected.Load(),
	}
}
