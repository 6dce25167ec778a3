package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/greenlight-hq/greenlight/internal/adapter/jsonfile"
	"github.com/greenlight-hq/greenlight/internal/classify"
	"github.com/greenlight-hq/greenlight/internal/domain/action"
	"github.com/greenlight-hq/greenlight/internal/domain/approval"
	"github.com/greenlight-hq/greenlight/internal/domain/feedback"
	"github.com/greenlight-hq/greenlight/internal/ledger"
	"github.com/greenlight-hq/greenlight/internal/port/alert"
)

// fakeClock is a mutable time source shared between engine, ledger and
// classifier so similarity features and timeouts stay deterministic.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	// Tuesday mid-morning, inside business hours.
	return &fakeClock{t: time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// recordingChannel captures alerts for assertions.
type recordingChannel struct {
	name string
	fail bool

	mu    sync.Mutex
	sent  []alert.Alert
	first chan struct{}
	once  sync.Once
}

func newRecordingChannel(name string, fail bool) *recordingChannel {
	return &recordingChannel{name: name, fail: fail, first: make(chan struct{})}
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, a alert.Alert) error {
	defer c.once.Do(func() { close(c.first) })
	if c.fail {
		return errors.New("channel down")
	}
	c.mu.Lock()
	c.sent = append(c.sent, a)
	c.mu.Unlock()
	return nil
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func newTestEngine(clk *fakeClock, opts ...EngineOption) (*Engine, *ledger.Ledger) {
	lg := ledger.New(ledger.WithClock(clk.Now))
	cl := classify.New(classify.DefaultRules(), classify.WithClock(clk.Now))
	opts = append([]EngineOption{WithClock(clk.Now)}, opts...)
	return NewEngine(cl, lg, opts...), lg
}

func seedApprovals(lg *ledger.Ledger, a action.Action, n int, at time.Time) {
	rt := 30.0
	for range n {
		lg.Record(context.Background(), feedback.Entry{
			ActionKind:          string(a.Kind),
			Target:              a.Target,
			Criticality:         approval.LevelMedium,
			Decision:            feedback.DecisionApproved,
			ResponseTimeSeconds: &rt,
			Timestamp:           at,
		})
	}
}

func TestSubmitMalformedAction(t *testing.T) {
	e, _ := newTestEngine(newFakeClock())

	_, err := e.Submit(context.Background(), action.Action{Kind: action.KindEmailSend})
	if !errors.Is(err, action.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if len(e.ListPending()) != 0 {
		t.Fatal("malformed action created a pending request")
	}
}

func TestSubmitPendingAndDecide(t *testing.T) {
	clk := newFakeClock()
	e, _ := newTestEngine(clk)

	a := action.Action{Kind: action.KindEmailSend, Target: "team@co.com", Content: "weekly sync"}
	req, err := e.Submit(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != approval.StatusPending {
		t.Fatalf("status = %s, want pending", req.Status)
	}

	clk.Advance(2 * time.Minute)
	resolved, err := e.Decide(context.Background(), req.ID, approval.VerdictApprove, "looks good")
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Status != approval.StatusApproved {
		t.Fatalf("status = %s, want approved", resolved.Status)
	}
	if resolved.ResponseTimeSeconds == nil || *resolved.ResponseTimeSeconds != 120 {
		t.Errorf("response time = %v, want 120", resolved.ResponseTimeSeconds)
	}

	// The request resolved into history; a second decision conflicts.
	if _, err := e.Decide(context.Background(), req.ID, approval.VerdictDeny, ""); !errors.Is(err, approval.ErrAlreadyResolved) {
		t.Fatalf("second decision: expected ErrAlreadyResolved, got %v", err)
	}
}

func TestDecideDistinguishesResolvedFromUnknown(t *testing.T) {
	clk := newFakeClock()
	e, _ := newTestEngine(clk)

	req, err := e.Submit(context.Background(), action.Action{Kind: action.KindEmailSend, Target: "x@co.com"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Decide(context.Background(), req.ID, approval.VerdictApprove, ""); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Decide(context.Background(), req.ID, approval.VerdictDeny, ""); !errors.Is(err, approval.ErrAlreadyResolved) {
		t.Fatalf("decide on resolved id: expected ErrAlreadyResolved, got %v", err)
	}
	if _, err := e.Defer(context.Background(), req.ID, time.Minute); !errors.Is(err, approval.ErrAlreadyResolved) {
		t.Fatalf("defer on resolved id: expected ErrAlreadyResolved, got %v", err)
	}
	if _, err := e.Decide(context.Background(), "never-submitted", approval.VerdictApprove, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("decide on unknown id: expected ErrNotFound, got %v", err)
	}
}

func TestDecideUnknownVerdict(t *testing.T) {
	e, _ := newTestEngine(newFakeClock())

	req, err := e.Submit(context.Background(), action.Action{Kind: action.KindEmailSend, Target: "x@co.com"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Decide(context.Background(), req.ID, approval.Verdict("maybe"), ""); !errors.Is(err, ErrUnknownVerdict) {
		t.Fatalf("expected ErrUnknownVerdict, got %v", err)
	}
}

func TestAutoApproveRoutineLowWithoutHistory(t *testing.T) {
	e, _ := newTestEngine(newFakeClock())

	req, err := e.Submit(context.Background(), action.Action{Kind: action.KindLog, Target: "daily journal"})
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != approval.StatusAutoApproved {
		t.Fatalf("status = %s, want auto_approved", req.Status)
	}
	if len(e.ListPending()) != 0 {
		t.Fatal("auto-approved request left in pending set")
	}
}

func TestAutoApproveRequiresRateAndCount(t *testing.T) {
	clk := newFakeClock()
	a := action.Action{Kind: action.KindEmailSend, Target: "team@co.com"}

	// 12 similar approvals: rate 1.0, count 12, both thresholds met.
	e, lg := newTestEngine(clk)
	seedApprovals(lg, a, 12, clk.Now())
	req, err := e.Submit(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != approval.StatusAutoApproved {
		t.Fatalf("status = %s, want auto_approved with 12 approvals", req.Status)
	}

	// 9 similar approvals: perfect rate but below the count threshold.
	e2, lg2 := newTestEngine(clk)
	seedApprovals(lg2, a, 9, clk.Now())
	req2, err := e2.Submit(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if req2.Status != approval.StatusPending {
		t.Fatalf("status = %s, want pending with insufficient count", req2.Status)
	}
}

func TestAutoApproveThresholdsFromOptions(t *testing.T) {
	clk := newFakeClock()
	a := action.Action{Kind: action.KindEmailSend, Target: "team@co.com"}

	// Relaxed thresholds: 6 perfect approvals clear rate 0.5 / count 5.
	e, lg := newTestEngine(clk, WithAutoApprove(0.5, 5))
	seedApprovals(lg, a, 6, clk.Now())
	req, err := e.Submit(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != approval.StatusAutoApproved {
		t.Fatalf("status = %s, want auto_approved under relaxed thresholds", req.Status)
	}

	// The same history stays pending under the default thresholds.
	e2, lg2 := newTestEngine(clk)
	seedApprovals(lg2, a, 6, clk.Now())
	req2, err := e2.Submit(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if req2.Status != approval.StatusPending {
		t.Fatalf("status = %s, want pending under default thresholds", req2.Status)
	}
}

func TestHighNeverAutoApproves(t *testing.T) {
	clk := newFakeClock()
	// call_make classifies HIGH by default.
	a := action.Action{Kind: action.KindCallMake, Target: "somebody"}

	e, lg := newTestEngine(clk)
	seedApprovals(lg, a, 20, clk.Now())
	req, err := e.Submit(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != approval.StatusPending {
		t.Fatalf("status = %s, want pending for high criticality", req.Status)
	}
	if req.Criticality != approval.LevelHigh {
		t.Fatalf("criticality = %s, want high", req.Criticality)
	}
}

func TestDeferKeepsRequestPending(t *testing.T) {
	clk := newFakeClock()
	e, _ := newTestEngine(clk)

	req, err := e.Submit(context.Background(), action.Action{Kind: action.KindEmailSend, Target: "x@co.com"})
	if err != nil {
		t.Fatal(err)
	}

	deferred, err := e.Defer(context.Background(), req.ID, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if deferred.Status != approval.StatusPending {
		t.Fatalf("status = %s, want pending after defer", deferred.Status)
	}
	if deferred.ID != req.ID {
		t.Fatal("defer changed the request id")
	}

	// The timeout now counts from the deferred clock: advancing past the
	// original deadline does not expire it.
	clk.Advance(20 * time.Minute)
	e.sweep(context.Background())
	if st, _ := e.Status(req.ID); st != approval.StatusPending {
		t.Fatalf("status = %s, want still pending after original deadline", st)
	}
}

func TestSweepExpiresOverdueExactlyOnce(t *testing.T) {
	clk := newFakeClock()
	e, lg := newTestEngine(clk)

	req, err := e.Submit(context.Background(), action.Action{Kind: action.KindEmailSend, Target: "x@co.com"})
	if err != nil {
		t.Fatal(err)
	}

	// email_send is MEDIUM: 15 minute timeout.
	clk.Advance(16 * time.Minute)
	e.sweep(context.Background())

	st, err := e.Status(req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if st != approval.StatusTimeout {
		t.Fatalf("status = %s, want timeout", st)
	}

	// A decision after expiry is rejected, and a second sweep is a no-op.
	if _, err := e.Decide(context.Background(), req.ID, approval.VerdictApprove, ""); !errors.Is(err, approval.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved after expiry, got %v", err)
	}
	before := lg.Len()
	e.sweep(context.Background())
	if lg.Len() != before {
		t.Fatal("second sweep recorded another timeout entry")
	}
}

func TestAlertFanOutIsolatesFailures(t *testing.T) {
	clk := newFakeClock()
	good := newRecordingChannel("slack", false)
	bad := newRecordingChannel("email", true)
	e, _ := newTestEngine(clk, WithChannels(good, bad))

	_, err := e.Submit(context.Background(), action.Action{Kind: action.KindEmailSend, Target: "x@co.com"})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-good.first:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for alert dispatch")
	}
	if good.count() != 1 {
		t.Fatalf("good channel got %d alerts, want 1", good.count())
	}
	// The failing channel never blocks the submission or the good channel.
}

func TestAlertFanOutSizedToCriticality(t *testing.T) {
	clk := newFakeClock()
	slack := newRecordingChannel("slack", false)
	sms := newRecordingChannel("sms", false)
	e, _ := newTestEngine(clk, WithChannels(slack, sms))

	// MEDIUM skips the sms channel.
	_, err := e.Submit(context.Background(), action.Action{Kind: action.KindEmailSend, Target: "x@co.com"})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-slack.first:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for medium alert")
	}

	// HIGH reaches every channel.
	_, err = e.Submit(context.Background(), action.Action{Kind: action.KindCallMake, Target: "somebody"})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-sms.first:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for high alert")
	}

	if sms.count() != 1 {
		t.Fatalf("sms got %d alerts, want 1 (high only)", sms.count())
	}
	deadline := time.Now().Add(2 * time.Second)
	for slack.count() != 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if slack.count() != 2 {
		t.Fatalf("slack got %d alerts, want 2", slack.count())
	}
}

// panicChannel blows up on every delivery.
type panicChannel struct{ name string }

func (p *panicChannel) Name() string                            { return p.name }
func (p *panicChannel) Send(context.Context, alert.Alert) error { panic("webhook client bug") }

func TestAlertFanOutSurvivesPanickingChannel(t *testing.T) {
	clk := newFakeClock()
	good := newRecordingChannel("slack", false)
	e, _ := newTestEngine(clk, WithChannels(good, &panicChannel{name: "email"}))

	req, err := e.Submit(context.Background(), action.Action{Kind: action.KindEmailSend, Target: "x@co.com"})
	if err != nil {
		t.Fatal(err)
	}

	// An unrecovered panic in the dispatch goroutine would kill the test
	// process; the good channel still receiving is the positive signal.
	select {
	case <-good.first:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for alert dispatch")
	}
	if _, err := e.Decide(context.Background(), req.ID, approval.VerdictApprove, ""); err != nil {
		t.Fatalf("engine unusable after channel panic: %v", err)
	}
}

func TestRestoreResumesPendingState(t *testing.T) {
	clk := newFakeClock()
	dir := t.TempDir()

	st, err := jsonfile.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	e, _ := newTestEngine(clk, WithStore(st))
	req, err := e.Submit(context.Background(), action.Action{Kind: action.KindEmailSend, Target: "x@co.com"})
	if err != nil {
		t.Fatal(err)
	}

	// Restart within the 15 minute window: the request comes back pending
	// with its identity and original clock intact.
	clk.Advance(5 * time.Minute)
	st2, err := jsonfile.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	e2, _ := newTestEngine(clk, WithStore(st2))
	if err := e2.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}

	got, err := e2.Get(req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != approval.StatusPending {
		t.Fatalf("status = %s, want pending after restore", got.Status)
	}
	if !got.CreatedAt.Equal(req.CreatedAt) {
		t.Fatalf("created at = %v, want original %v", got.CreatedAt, req.CreatedAt)
	}

	// The restored clock still drives the timeout.
	clk.Advance(11 * time.Minute)
	e2.sweep(context.Background())
	if st, _ := e2.Status(req.ID); st != approval.StatusTimeout {
		t.Fatalf("status = %s, want timeout from original clock", st)
	}
}

func TestRestoreExpiresOverduePending(t *testing.T) {
	clk := newFakeClock()
	dir := t.TempDir()

	st, err := jsonfile.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	e, _ := newTestEngine(clk, WithStore(st))
	req, err := e.Submit(context.Background(), action.Action{Kind: action.KindEmailSend, Target: "x@co.com"})
	if err != nil {
		t.Fatal(err)
	}

	// The process is down past the request's 15 minute timeout.
	clk.Advance(20 * time.Minute)
	st2, err := jsonfile.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	e2, lg2 := newTestEngine(clk, WithStore(st2))
	if err := e2.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}

	got, err := e2.Get(req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != approval.StatusTimeout {
		t.Fatalf("status = %s, want timeout for overdue restored request", got.Status)
	}
	if len(e2.ListPending()) != 0 {
		t.Fatal("overdue request resurrected into the pending set")
	}
	if lg2.Len() != 1 {
		t.Fatalf("ledger has %d entries, want 1 timeout record", lg2.Len())
	}
}

func TestLedgerRecordsEachOutcomeOnce(t *testing.T) {
	clk := newFakeClock()
	e, lg := newTestEngine(clk)

	req, err := e.Submit(context.Background(), action.Action{Kind: action.KindEmailSend, Target: "x@co.com"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Decide(context.Background(), req.ID, approval.VerdictDeny, "not now"); err != nil {
		t.Fatal(err)
	}
	if lg.Len() != 1 {
		t.Fatalf("ledger has %d entries, want 1", lg.Len())
	}
	ins := lg.Insights()
	if ins.TotalEntries != 1 || ins.ApprovalRate != 0 {
		t.Fatalf("insights = %+v", ins)
	}
}

func TestStartStopSweep(t *testing.T) {
	clk := newFakeClock()
	e, _ := newTestEngine(clk, WithSweepInterval(10*time.Millisecond))

	req, err := e.Submit(context.Background(), action.Action{Kind: action.KindEmailSend, Target: "x@co.com"})
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(16 * time.Minute)

	e.Start()
	deadline := time.After(2 * time.Second)
	for {
		st, err := e.Status(req.ID)
		if err != nil {
			t.Fatal(err)
		}
		if st == approval.StatusTimeout {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweep never expired the request")
		case <-time.After(5 * time.Millisecond):
		}
	}
	e.Stop()
}
