package relay

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNextCronDuration(t *testing.T) {
	// Every-minute schedule fires within the next minute.
	d := nextCronDuration("* * * * *")
	if d <= 0 || d > time.Minute {
		t.Errorf("nextCronDuration(* * * * *) = %v, want (0, 1m]", d)
	}

	if d := nextCronDuration("not a cron"); d != 0 {
		t.Errorf("nextCronDuration(invalid) = %v, want 0", d)
	}
	// 6-field (seconds) expressions are not accepted.
	if d := nextCronDuration("0 0 9 * * 1"); d != 0 {
		t.Errorf("nextCronDuration(6-field) = %v, want 0", d)
	}
}

func TestFireDigest_EmptyLedgerSuppressed(t *testing.T) {
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())
	d := newTestDaemon(t, testConfig(t), adapter, &mockBackend{reply: "ok"})

	d.fireDigest(context.Background(), "digest-chat")
	if adapter.SentCount() != 0 {
		t.Errorf("sent = %d, want 0 for empty ledger", adapter.SentCount())
	}
}

func TestFireDigest_PostsLeaderboard(t *testing.T) {
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())
	d := newTestDaemon(t, testConfig(t), adapter, &mockBackend{reply: "ok"})

	if err := d.ledger.GrantXP("u1", "alice"); err != nil {
		t.Fatalf("GrantXP: %v", err)
	}

	d.fireDigest(context.Background(), "digest-chat")

	sent, ok := adapter.LastSent()
	if !ok {
		t.Fatal("no digest sent")
	}
	if sent.ChatID != "digest-chat" {
		t.Errorf("chat = %q, want digest-chat", sent.ChatID)
	}
	if !strings.Contains(sent.Text, "🏆 Leaderboard 🏆") || !strings.Contains(sent.Text, "alice") {
		t.Errorf("digest = %q", sent.Text)
	}
}

func TestFireDigest_SendFailureNonFatal(t *testing.T) {
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())
	adapter.FailSends(fmt.Errorf("platform down"))
	d := newTestDaemon(t, testConfig(t), adapter, &mockBackend{reply: "ok"})

	if err := d.ledger.GrantXP("u1", "alice"); err != nil {
		t.Fatalf("GrantXP: %v", err)
	}

	// Must not panic or abort; the failure is only logged.
	d.fireDigest(context.Background(), "digest-chat")
}

func TestRunDigestScheduler_DisabledReturns(t *testing.T) {
	adapter := NewMockAdapter()
	d := newTestDaemon(t, testConfig(t), adapter, &mockBackend{reply: "ok"})

	done := make(chan struct{})
	go func() {
		d.runDigestScheduler(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler should return immediately when disabled")
	}
}
