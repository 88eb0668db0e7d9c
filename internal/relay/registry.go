package relay

import (
	"sync"
	"time"
)

// SessionKey identifies one user's talk session within one chat.
type SessionKey struct {
	ChatID string
	UserID string
}

// StaleSession is a snapshot entry returned by StaleSessions.
type StaleSession struct {
	ChatID   string
	UserID   string
	UserName string
}

// SessionRegistry tracks which users are in an active talk session per chat,
// with last-activity timestamps for idle eviction. State is in-memory only;
// a restart ends all sessions. All mutations run under one mutex — an
// activity entry exists iff the user is in the chat's member set.
type SessionRegistry struct {
	mu       sync.Mutex
	members  map[string]map[string]string // chatID → userID → userName
	activity map[SessionKey]time.Time

	now func() time.Time // injectable clock for tests
}

// NewSessionRegistry creates an empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		members:  make(map[string]map[string]string),
		activity: make(map[SessionKey]time.Time),
		now:      time.Now,
	}
}

// Start activates a talk session for the pair. Idempotent: re-issuing while
// already active refreshes the activity timestamp instead of duplicating
// membership.
func (r *SessionRegistry) Start(chatID, userID, userName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[chatID]
	if !ok {
		set = make(map[string]string)
		r.members[chatID] = set
	}
	set[userID] = userName
	r.activity[SessionKey{ChatID: chatID, UserID: userID}] = r.now()
}

// Stop deactivates the pair's session and reports whether it was active.
// The chat entry is garbage-collected once its member set empties.
// Stopping an inactive pair is a tolerated no-op.
func (r *SessionRegistry) Stop(chatID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[chatID]
	if !ok {
		return false
	}
	if _, ok := set[userID]; !ok {
		return false
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(r.members, chatID)
	}
	delete(r.activity, SessionKey{ChatID: chatID, UserID: userID})
	return true
}

// Touch refreshes the pair's activity timestamp. Only active pairs are
// touched; a missing entry is a silent no-op so eviction races stay benign.
func (r *SessionRegistry) Touch(chatID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := SessionKey{ChatID: chatID, UserID: userID}
	if _, ok := r.activity[key]; !ok {
		return
	}
	r.activity[key] = r.now()
}

// IsActive reports whether the pair has an active talk session.
func (r *SessionRegistry) IsActive(chatID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[chatID]
	if !ok {
		return false
	}
	_, ok = set[userID]
	return ok
}

// StaleSessions snapshots the pairs whose last activity is older than the
// threshold. The caller evicts them via Stop; entries that vanish between
// snapshot and eviction are already-evicted races, not errors.
func (r *SessionRegistry) StaleSessions(olderThan time.Duration) []StaleSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	var stale []StaleSession
	for key, last := range r.activity {
		if last.After(cutoff) {
			continue
		}
		name := ""
		if set, ok := r.members[key.ChatID]; ok {
			name = set[key.UserID]
		}
		stale = append(stale, StaleSession{
			ChatID:   key.ChatID,
			UserID:   key.UserID,
			UserName: name,
		})
	}
	return stale
}

// ActiveCount reports the number of active sessions across all chats.
func (r *SessionRegistry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.activity)
}
