// Package history persists the per-user conversation log and serves bounded
// history reads for building model context.
package history

import (
	"fmt"

	"github.com/zulandar/kisaragi/internal/llm"
	"github.com/zulandar/kisaragi/internal/models"
	"gorm.io/gorm"
)

// DefaultHistoryLimit is the number of most-recent turns fed to the model.
const DefaultHistoryLimit = 5

// Store is the conversation log. Turns are append-only; nothing here
// mutates or deletes existing rows.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store backed by the conversation database.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("history: db is required")
	}
	return &Store{db: db}, nil
}

// Append durably writes one turn. Each append is a single transaction; a
// storage failure leaves no partial row behind.
func (s *Store) Append(userID, userMessage, botResponse string) error {
	turn := models.ConversationTurn{
		UserID:      userID,
		UserMessage: userMessage,
		BotResponse: botResponse,
	}
	if err := s.db.Create(&turn).Error; err != nil {
		return fmt.Errorf("history: append turn for %s: %w", userID, err)
	}
	return nil
}

// RecentHistory returns the limit most recent turns for a user, flattened to
// alternating user/assistant chat messages ordered oldest first. Fewer than
// limit turns returns all of them; a brand-new user gets an empty slice.
func (s *Store) RecentHistory(userID string, limit int) ([]llm.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var turns []models.ConversationTurn
	err := s.db.
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("history: recent turns for %s: %w", userID, err)
	}

	// Rows come back newest-first; walk them backwards to feed the model
	// oldest-first.
	msgs := make([]llm.Message, 0, 2*len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		msgs = append(msgs,
			llm.Message{Role: "user", Content: turns[i].UserMessage},
			llm.Message{Role: "assistant", Content: turns[i].BotResponse},
		)
	}
	return msgs, nil
}

// TurnCount reports the total number of logged turns (dashboard stat).
func (s *Store) TurnCount() (int64, error) {
	var count int64
	if err := s.db.Model(&models.ConversationTurn{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("history: count turns: %w", err)
	}
	return count, nil
}
