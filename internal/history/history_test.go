package history

import (
	"fmt"
	"testing"

	"github.com/zulandar/kisaragi/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openHistoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.ConversationTurn{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestNewStore_NilDB(t *testing.T) {
	_, err := NewStore(nil)
	if err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestAppendAndRecentHistory(t *testing.T) {
	store, _ := NewStore(openHistoryTestDB(t))

	if err := store.Append("u1", "hello", "hi there"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append("u1", "how are you", "great"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	msgs, err := store.RecentHistory("u1", 5)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("len(msgs) = %d, want 4", len(msgs))
	}
	// Oldest first, alternating user/assistant.
	if msgs[0].Role != "user" || msgs[0].Content != "hello" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "hi there" {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
	if msgs[2].Content != "how are you" || msgs[3].Content != "great" {
		t.Errorf("msgs[2:] = %+v", msgs[2:])
	}
}

func TestRecentHistory_Empty(t *testing.T) {
	store, _ := NewStore(openHistoryTestDB(t))

	msgs, err := store.RecentHistory("nobody", 5)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("len(msgs) = %d, want 0", len(msgs))
	}
}

func TestRecentHistory_Bounded(t *testing.T) {
	store, _ := NewStore(openHistoryTestDB(t))

	for i := 0; i < 8; i++ {
		if err := store.Append("u1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	msgs, err := store.RecentHistory("u1", 5)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	// 5 most recent turns, flattened to 10 messages.
	if len(msgs) != 10 {
		t.Fatalf("len(msgs) = %d, want 10", len(msgs))
	}
	// Oldest of the window is turn 3; newest is turn 7.
	if msgs[0].Content != "q3" {
		t.Errorf("msgs[0].Content = %q, want q3", msgs[0].Content)
	}
	if msgs[9].Content != "a7" {
		t.Errorf("msgs[9].Content = %q, want a7", msgs[9].Content)
	}
}

func TestRecentHistory_PerUser(t *testing.T) {
	store, _ := NewStore(openHistoryTestDB(t))

	store.Append("u1", "mine", "yours")
	store.Append("u2", "other", "person")

	msgs, err := store.RecentHistory("u1", 5)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "mine" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestTurnCount(t *testing.T) {
	store, _ := NewStore(openHistoryTestDB(t))

	store.Append("u1", "a", "b")
	store.Append("u2", "c", "d")

	count, err := store.TurnCount()
	if err != nil {
		t.Fatalf("TurnCount: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
