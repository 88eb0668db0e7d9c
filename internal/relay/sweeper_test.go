package relay

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func newTestSweeper(t *testing.T, registry *SessionRegistry, adapter *MockAdapter, timeout time.Duration) *Sweeper {
	t.Helper()
	s, err := NewSweeper(SweeperOpts{
		Registry: registry,
		Adapter:  adapter,
		Timeout:  timeout,
		Out:      &strings.Builder{},
	})
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	return s
}

func TestNewSweeper_RequiredFields(t *testing.T) {
	if _, err := NewSweeper(SweeperOpts{Adapter: NewMockAdapter()}); err == nil {
		t.Error("expected error for nil registry")
	}
	if _, err := NewSweeper(SweeperOpts{Registry: NewSessionRegistry()}); err == nil {
		t.Error("expected error for nil adapter")
	}
}

func TestNewSweeper_Defaults(t *testing.T) {
	s := newTestSweeper(t, NewSessionRegistry(), NewMockAdapter(), 0)
	if s.interval != DefaultSweepInterval {
		t.Errorf("interval = %v, want %v", s.interval, DefaultSweepInterval)
	}
	if s.timeout != DefaultIdleTimeout {
		t.Errorf("timeout = %v, want %v", s.timeout, DefaultIdleTimeout)
	}
}

func TestSweep_EvictsIdleAndNotifies(t *testing.T) {
	registry := NewSessionRegistry()
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())

	base := time.Now()
	registry.now = func() time.Time { return base }
	registry.Start("c1", "u1", "alice")
	registry.Start("c2", "u2", "bob")

	// u2 stays fresh; u1 crosses the idle threshold.
	registry.now = func() time.Time { return base.Add(4 * time.Minute) }
	registry.Touch("c2", "u2")
	registry.now = func() time.Time { return base.Add(6 * time.Minute) }

	s := newTestSweeper(t, registry, adapter, 5*time.Minute)
	if n := s.Sweep(context.Background()); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}

	if registry.IsActive("c1", "u1") {
		t.Error("u1 should have been evicted")
	}
	if !registry.IsActive("c2", "u2") {
		t.Error("u2 should still be active")
	}

	sent, ok := adapter.LastSent()
	if !ok {
		t.Fatal("no notification sent")
	}
	if sent.ChatID != "c1" {
		t.Errorf("notification chat = %q, want c1", sent.ChatID)
	}
	if !strings.Contains(sent.Text, "alice") {
		t.Errorf("notification %q should name the user", sent.Text)
	}
}

func TestSweep_AlreadyEvictedRace(t *testing.T) {
	registry := NewSessionRegistry()
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())

	base := time.Now()
	registry.now = func() time.Time { return base }
	registry.Start("c1", "u1", "alice")
	registry.now = func() time.Time { return base.Add(10 * time.Minute) }

	s := newTestSweeper(t, registry, adapter, 5*time.Minute)

	// Simulate the user stopping between snapshot and eviction.
	stale := registry.StaleSessions(s.timeout)
	if len(stale) != 1 {
		t.Fatalf("stale = %v", stale)
	}
	registry.Stop("c1", "u1")

	if n := s.Sweep(context.Background()); n != 0 {
		t.Errorf("Sweep = %d, want 0 (already evicted)", n)
	}
	if adapter.SentCount() != 0 {
		t.Errorf("sent = %d notifications, want 0", adapter.SentCount())
	}
}

func TestSweep_NotifyFailureDoesNotAbort(t *testing.T) {
	registry := NewSessionRegistry()
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())
	adapter.FailSends(fmt.Errorf("platform down"))

	base := time.Now()
	registry.now = func() time.Time { return base }
	registry.Start("c1", "u1", "alice")
	registry.Start("c2", "u2", "bob")
	registry.now = func() time.Time { return base.Add(10 * time.Minute) }

	s := newTestSweeper(t, registry, adapter, 5*time.Minute)
	if n := s.Sweep(context.Background()); n != 2 {
		t.Errorf("Sweep = %d, want 2 despite send failures", n)
	}
	if registry.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", registry.ActiveCount())
	}
}

func TestRun_PeriodicEviction(t *testing.T) {
	registry := NewSessionRegistry()
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())

	base := time.Now()
	registry.now = func() time.Time { return base }
	registry.Start("c1", "u1", "alice")
	registry.now = func() time.Time { return base.Add(time.Hour) }

	s, err := NewSweeper(SweeperOpts{
		Registry: registry,
		Adapter:  adapter,
		Interval: 10 * time.Millisecond,
		Timeout:  5 * time.Minute,
		Out:      &strings.Builder{},
	})
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	deadline := time.After(2 * time.Second)
	for registry.IsActive("c1", "u1") {
		select {
		case <-deadline:
			t.Fatal("session not evicted by periodic sweep")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
