package db

import (
	"fmt"

	"github.com/zulandar/kisaragi/internal/models"
	"gorm.io/gorm"
)

// MigrateConversations creates or updates the conversation log schema.
func MigrateConversations(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.ConversationTurn{}); err != nil {
		return fmt.Errorf("db: migrate conversations: %w", err)
	}
	return nil
}

// MigrateRanks creates or updates the rank ledger schema.
func MigrateRanks(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.UserRank{}); err != nil {
		return fmt.Errorf("db: migrate ranks: %w", err)
	}
	return nil
}
