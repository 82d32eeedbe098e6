// Package session tracks in-flight configuration wizard sessions, one per
// user, with a lazy inactivity timeout.
package session

import (
	"sync"
	"time"

	"tg_resumo_bot/internal/domain"
)

// DefaultTTL is how long a session survives without activity.
const DefaultTTL = 30 * time.Minute

// Data accumulates the answers collected across wizard steps.
type Data struct {
	GroupName     string
	Editing       bool
	UseDefaults   bool
	IntervalHours int
	QuietStart    string
	QuietEnd      string
	DeleteAfter   *int
	GroupInfo     string
	Prompt        string
}

// Session is one user's wizard conversation.
type Session struct {
	UserID       int64
	ChatID       int64
	State        string
	Data         Data
	StartedAt    time.Time
	LastActivity time.Time
}

// Store holds active sessions in memory. All methods are safe for concurrent
// use; Acquire additionally serializes wizard transitions per user.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	locks    map[int64]*sync.Mutex
	ttl      time.Duration

	now func() time.Time
}

// NewStore constructs a Store with the given inactivity timeout. A zero or
// negative ttl falls back to DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Store{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*sync.Mutex),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a session for the user. It fails with ErrSessionExists when a
// live session is already present; an expired leftover is replaced.
func (s *Store) Create(userID, chatID int64, state string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[userID]; ok && !s.expired(existing) {
		return nil, domain.ErrSessionExists
	}

	now := s.now()
	sess := &Session{
		UserID:       userID,
		ChatID:       chatID,
		State:        state,
		StartedAt:    now,
		LastActivity: now,
	}
	s.sessions[userID] = sess

	return sess, nil
}

// Lookup returns the user's session record, expired or not. The caller
// decides how to treat expiry; deletion stays explicit.
func (s *Store) Lookup(userID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	return sess, ok
}

// IsExpired reports whether the session's last activity is older than the
// store's timeout.
func (s *Store) IsExpired(sess *Session) bool {
	if sess == nil {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired(sess)
}

// Touch refreshes the session's last-activity timestamp.
func (s *Store) Touch(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		sess.LastActivity = s.now()
	}
}

// Delete removes the user's session if present.
func (s *Store) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
}

// Acquire locks the user's transition mutex and returns the release
// function. Two updates from the same user are therefore applied one at a
// time, in arrival order.
func (s *Store) Acquire(userID int64) func() {
	s.mu.Lock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Len reports the number of stored sessions, live or expired.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) expired(sess *Session) bool {
	return s.now().Sub(sess.LastActivity) > s.ttl
}
