// Package ledger implements the feedback ledger: an append-only record of
// past decisions with a similarity-weighted query for "approval rate among
// actions like this one". It is what auto-approval learns from.
package ledger

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/greenlight-hq/greenlight/internal/domain/action"
	"github.com/greenlight-hq/greenlight/internal/domain/feedback"
	"github.com/greenlight-hq/greenlight/internal/port/cache"
	"github.com/greenlight-hq/greenlight/internal/port/store"
)

const (
	defaultMinSimilarity = 0.7
	defaultMinHistory    = 5
	defaultTopK          = 20
	cacheTTL             = 5 * time.Minute
)

// Scored pairs a historical entry with its similarity to a query action.
type Scored struct {
	Entry      feedback.Entry
	Similarity float64
}

// Ledger holds the decision history. Appends are serialized; reads take a
// snapshot of the entry slice so similarity queries never block a decision
// racing an append.
type Ledger struct {
	mu      sync.RWMutex
	entries []feedback.Entry
	gen     uint64 // bumped per append; part of every cache key

	st    store.Store
	cache cache.Cache

	minSimilarity float64
	minHistory    int
	topK          int
	now           func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStore persists every append and enables Load.
func WithStore(st store.Store) Option {
	return func(l *Ledger) { l.st = st }
}

// WithCache memoizes approval-rate queries between appends.
func WithCache(c cache.Cache) Option {
	return func(l *Ledger) { l.cache = c }
}

// WithClock overrides the time source used for query feature extraction.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithMinHistory overrides the minimum number of similar precedents below
// which ApprovalRate reports no data.
func WithMinHistory(n int) Option {
	return func(l *Ledger) { l.minHistory = n }
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		minSimilarity: defaultMinSimilarity,
		minHistory:    defaultMinHistory,
		topK:          defaultTopK,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load restores persisted history. A corrupt or missing ledger is non-fatal:
// the ledger starts empty with a warning and never blocks startup.
func (l *Ledger) Load(ctx context.Context) {
	if l.st == nil {
		return
	}
	entries, err := l.st.LoadFeedback(ctx)
	if err != nil {
		slog.Warn("feedback history unavailable, starting with empty ledger", "error", err)
		return
	}
	l.mu.Lock()
	l.entries = entries
	l.gen++
	l.mu.Unlock()
	slog.Info("feedback history loaded", "entries", len(entries))
}

// Record appends one entry. The persistence write failing is logged and does
// not fail the decision that produced the entry.
func (l *Ledger) Record(ctx context.Context, e feedback.Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.gen++
	l.mu.Unlock()

	if l.st != nil {
		if err := l.st.AppendFeedback(ctx, e); err != nil {
			slog.Warn("feedback entry not persisted", "kind", e.ActionKind, "error", err)
		}
	}
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// snapshot returns the current entry slice. Entries are immutable and the
// slice is append-only, so the header copy is safe to read without the lock.
func (l *Ledger) snapshot() ([]feedback.Entry, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries, l.gen
}

// SimilarActions returns history entries scoring at least minSimilarity
// against the action, most similar first. Pass 0 to use the default (0.7).
func (l *Ledger) SimilarActions(a action.Action, minSimilarity float64) []Scored {
	if minSimilarity <= 0 {
		minSimilarity = l.minSimilarity
	}
	query := feedback.Extract(a, l.now())

	entries, _ := l.snapshot()
	var similar []Scored
	for _, e := range entries {
		if s := query.Similarity(e.Features()); s >= minSimilarity {
			similar = append(similar, Scored{Entry: e, Similarity: s})
		}
	}
	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].Similarity > similar[j].Similarity
	})
	return similar
}

// SimilarCount counts history entries at or above the default similarity floor.
func (l *Ledger) SimilarCount(a action.Action) int {
	return len(l.SimilarActions(a, 0))
}

// ApprovalRate returns the similarity-weighted fraction of approved decisions
// among the top-k most similar entries, or nil when fewer than the minimum
// number of similar precedents exist. Weighting by similarity biases the
// estimate toward closer matches instead of treating all history equally.
func (l *Ledger) ApprovalRate(ctx context.Context, a action.Action) *float64 {
	query := feedback.Extract(a, l.now())
	_, gen := l.snapshot()
	key := "rate:" + strconv.FormatUint(gen, 10) + ":" + query.Fingerprint()

	if l.cache != nil {
		if data, ok, err := l.cache.Get(ctx, key); err == nil && ok {
			if rate, perr := strconv.ParseFloat(string(data), 64); perr == nil {
				return &rate
			}
		}
	}

	similar := l.SimilarActions(a, 0)
	if len(similar) < l.minHistory {
		return nil
	}
	if len(similar) > l.topK {
		similar = similar[:l.topK]
	}

	var totalWeight, approvedWeight float64
	for _, s := range similar {
		totalWeight += s.Similarity
		if s.Entry.Decision == feedback.DecisionApproved {
			approvedWeight += s.Similarity
		}
	}
	if totalWeight == 0 {
		return nil
	}
	rate := approvedWeight / totalWeight

	if l.cache != nil {
		data := []byte(strconv.FormatFloat(rate, 'g', -1, 64))
		if err := l.cache.Set(ctx, key, data, cacheTTL); err != nil {
			slog.Debug("approval rate not cached", "error", err)
		}
	}
	return &rate
}

// AverageResponseTime returns the mean response time in seconds over similar
// entries that carry one, or nil when none do.
func (l *Ledger) AverageResponseTime(a action.Action) *float64 {
	var sum float64
	var n int
	for _, s := range l.SimilarActions(a, 0) {
		if s.Entry.ResponseTimeSeconds != nil {
			sum += *s.Entry.ResponseTimeSeconds
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}
