package resilience

import (
	"errors"
	"testing"
	"time"
)

var errDelivery = errors.New("webhook unreachable")

func TestClosedBreakerDelivers(t *testing.T) {
	b := NewBreaker(3, time.Second)
	delivered := false
	if err := b.Execute(func() error { delivered = true; return nil }); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !delivered {
		t.Fatal("expected fn to run")
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %s, want closed", b.State())
	}
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Second)
	for range 3 {
		_ = b.Execute(func() error { return errDelivery })
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	for range 2 {
		_ = b.Execute(func() error { return errDelivery })
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen before cooldown, got %v", err)
	}

	now = now.Add(2 * time.Second)

	probed := false
	if err := b.Execute(func() error { probed = true; return nil }); err != nil {
		t.Fatalf("probe after cooldown failed: %v", err)
	}
	if !probed {
		t.Fatal("expected probe to run")
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %s after successful probe, want closed", b.State())
	}
}

func TestFailedProbeReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	for range 2 {
		_ = b.Execute(func() error { return errDelivery })
	}
	now = now.Add(2 * time.Second)

	_ = b.Execute(func() error { return errDelivery })
	if b.State() != StateOpen {
		t.Fatalf("state = %s after failed probe, want open", b.State())
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Second)

	_ = b.Execute(func() error { return errDelivery })
	_ = b.Execute(func() error { return errDelivery })
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(func() error { return errDelivery })
	_ = b.Execute(func() error { return errDelivery })

	if b.State() != StateClosed {
		t.Fatalf("state = %s, want closed (count reset by success)", b.State())
	}
}

func TestGroupIsolatesChannels(t *testing.T) {
	g := NewGroup(1, time.Minute)

	_ = g.For("slack").Execute(func() error { return errDelivery })

	if err := g.For("slack").Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("slack breaker should be open, got %v", err)
	}
	if err := g.For("email").Execute(func() error { return nil }); err != nil {
		t.Fatalf("email breaker tripped by slack failures: %v", err)
	}

	states := g.States()
	if states["slack"] != StateOpen || states["email"] != StateClosed {
		t.Fatalf("states = %v", states)
	}
}
