package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Closer flushes buffered log records on shutdown. New returns a no-op one
// so callers can defer Close without caring which mode they got.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler keeps log writes off the approval hot path. Handle only
// enqueues the record together with the handler that formats it; one drain
// goroutine performs the writes in arrival order, so Submit and Decide never
// wait on stdout. A full queue drops the record and counts the drop rather
// than applying backpressure.
type AsyncHandler struct {
	inner slog.Handler
	q     *drainQueue
}

// entry pairs a record with the handler holding its derived attrs and
// groups, so a logger built via With still formats correctly.
type entry struct {
	h   slog.Handler
	rec slog.Record
}

type drainQueue struct {
	ch      chan entry
	done    chan struct{}
	dropped atomic.Int64
}

// NewAsyncHandler wraps inner with a drain queue of the given capacity.
func NewAsyncHandler(inner slog.Handler, queueSize int) *AsyncHandler {
	q := &drainQueue{ch: make(chan entry, queueSize), done: make(chan struct{})}
	go q.drain()
	return &AsyncHandler{inner: inner, q: q}
}

func (q *drainQueue) drain() {
	defer close(q.done)
	for e := range q.ch {
		_ = e.h.Handle(context.Background(), e.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record, or counts a drop when the queue is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.q.ch <- entry{h: h.inner, rec: rec}:
	default:
		h.q.dropped.Add(1)
	}
	return nil
}

// WithAttrs derives a handler that formats with the extra attrs but drains
// through the same queue.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), q: h.q}
}

// WithGroup derives a handler for the named group over the same queue.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), q: h.q}
}

// Dropped reports how many records were discarded on a full queue.
func (h *AsyncHandler) Dropped() int64 {
	return h.q.dropped.Load()
}

// Close stops the queue and waits until every enqueued record is written.
func (h *AsyncHandler) Close() {
	close(h.q.ch)
	<-h.q.done
}
