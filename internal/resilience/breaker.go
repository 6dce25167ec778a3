// Package resilience guards outbound alert deliveries. A breaker per channel
// stops a flapping webhook or SMTP host from stalling every dispatch.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a channel's circuit is open and calls are
// being rejected without attempting delivery.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State of a breaker, exposed on the stats surface.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker opens after maxFailures consecutive errors and rejects calls until
// cooldown elapses, then admits a single probe. A failed probe re-opens the
// circuit immediately; a successful one closes it.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	now         func() time.Time
}

// NewBreaker returns a closed breaker. maxFailures must be at least 1.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Execute runs fn unless the circuit is open, and records the outcome.
func (b *Breaker) Execute(fn func() error) error {
	if !b.admit() {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.state = StateOpen
			b.openedAt = b.now()
		}
		return err
	}
	b.failures = 0
	b.state = StateClosed
	return nil
}

// State reports the current circuit state without admitting a call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
		return true
	default:
		return true
	}
}

// Group keys breakers by channel name, creating each lazily with shared
// thresholds. Used by the alert dispatcher so one dead channel never blocks
// the others.
type Group struct {
	mu          sync.Mutex
	breakers    map[string]*Breaker
	maxFailures int
	cooldown    time.Duration
}

// NewGroup returns an empty breaker group.
func NewGroup(maxFailures int, cooldown time.Duration) *Group {
	return &Group{
		breakers:    make(map[string]*Breaker),
		maxFailures: maxFailures,
		cooldown:    cooldown,
	}
}

// For returns the breaker for name, creating it on first use.
func (g *Group) For(name string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.breakers[name]
	if !ok {
		b = NewBreaker(g.maxFailures, g.cooldown)
		g.breakers[name] = b
	}
	return b
}

// States snapshots every known breaker's state by channel name.
func (g *Group) States() map[string]State {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]State, len(g.breakers))
	for name, b := range g.breakers {
		out[name] = b.State()
	}
	return out
}
