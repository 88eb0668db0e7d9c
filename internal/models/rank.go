package models

import "time"

// UserRank tracks a user's XP and level. A row is created on the first
// message from a user and never deleted. XP stays in [0,99]; reaching 100
// wraps to 0 and bumps the level.
type UserRank struct {
	UserID    string `gorm:"primaryKey;size:64"`
	Username  string `gorm:"size:64;not null"`
	XP        int    `gorm:"column:xp;not null;default:0"`
	Level     int    `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
