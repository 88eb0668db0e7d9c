// Package models defines the GORM persistence models for Kisaragi.
package models

import "time"

// ConversationTurn is one user-message/bot-response pair in the conversation
// log. Turns are append-only and keyed by the user's identity, not the
// chat's, so a user's context follows them across chats.
type ConversationTurn struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	UserID      string `gorm:"size:64;not null;index"`
	UserMessage string `gorm:"type:text;not null"`
	BotResponse string `gorm:"type:text;not null"`
	CreatedAt   time.Time
}
