// Package rank persists per-user XP and level and serves leaderboard reads.
package rank

import (
	"fmt"
	"sync"

	"github.com/zulandar/kisaragi/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// XPPerMessage is granted for every inbound message.
	XPPerMessage = 10
	// LevelThreshold is the XP at which a level-up occurs and XP wraps to 0.
	LevelThreshold = 100
	// DefaultLeaderboardLimit caps the leaderboard query.
	DefaultLeaderboardLimit = 10
)

// NoRankMessage is returned by RankOf for users with no ledger row yet.
const NoRankMessage = "You have no rank yet. Start messaging to gain XP!"

// Entry is one leaderboard row.
type Entry struct {
	Username string `json:"username"`
	Level    int    `json:"level"`
	XP       int    `json:"xp"`
}

// Ledger is the XP/level store. The read-modify-write XP update is
// serialized per user via a keyed mutex; different users proceed
// concurrently.
type Ledger struct {
	db *gorm.DB

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// NewLedger creates a Ledger backed by the rank database.
func NewLedger(db *gorm.DB) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("rank: db is required")
	}
	return &Ledger{
		db:    db,
		users: make(map[string]*sync.Mutex),
	}, nil
}

// userLock returns the mutex guarding one user's ledger row.
func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.users[userID]
	if !ok {
		m = &sync.Mutex{}
		l.users[userID] = m
	}
	return m
}

// EnsureUser inserts a fresh row (xp=0, level=1) if the user is unknown.
// An existing row is left untouched; creation never resets anyone.
func (l *Ledger) EnsureUser(userID, username string) error {
	row := models.UserRank{
		UserID:   userID,
		Username: username,
		XP:       0,
		Level:    1,
	}
	result := l.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("rank: ensure user %s: %w", userID, result.Error)
	}
	return nil
}

// GrantXP credits XPPerMessage to the user, wrapping XP and bumping the
// level at the threshold. The username is refreshed to the latest-seen
// value so display-name changes propagate to the leaderboard.
func (l *Ledger) GrantXP(userID, username string) error {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := l.EnsureUser(userID, username); err != nil {
		return err
	}

	var row models.UserRank
	if err := l.db.Where("user_id = ?", userID).First(&row).Error; err != nil {
		return fmt.Errorf("rank: read user %s: %w", userID, err)
	}

	xp := row.XP + XPPerMessage
	level := row.Level
	if xp >= LevelThreshold {
		xp = 0
		level++
	}

	err := l.db.Model(&models.UserRank{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"xp":       xp,
			"level":    level,
			"username": username,
		}).Error
	if err != nil {
		return fmt.Errorf("rank: update user %s: %w", userID, err)
	}
	return nil
}

// RankOf returns a formatted status line for the user, or NoRankMessage if
// they have no ledger row yet.
func (l *Ledger) RankOf(userID string) (string, error) {
	var row models.UserRank
	err := l.db.Where("user_id = ?", userID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return NoRankMessage, nil
	}
	if err != nil {
		return "", fmt.Errorf("rank: read user %s: %w", userID, err)
	}
	return fmt.Sprintf("%s, you are level %d with %d/%d XP.", row.Username, row.Level, row.XP, LevelThreshold), nil
}

// Leaderboard returns up to limit entries ordered by level then XP,
// descending, with insertion order as a deterministic tiebreak.
func (l *Ledger) Leaderboard(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	var rows []models.UserRank
	err := l.db.
		Order("level DESC").
		Order("xp DESC").
		Order("created_at ASC").
		Order("user_id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rank: leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{Username: r.Username, Level: r.Level, XP: r.XP})
	}
	return entries, nil
}

// UserCount reports the number of ledger rows (dashboard stat).
func (l *Ledger) UserCount() (int64, error) {
	var count int64
	if err := l.db.Model(&models.UserRank{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("rank: count users: %w", err)
	}
	return count, nil
}
