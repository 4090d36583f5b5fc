package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatsum/internal/domain"
)

const defaultTTL = 30 * time.Minute

// Session owns the history of one browser tab or API conversation.
// Callers hold Lock for the duration of a request cycle.
type Session struct {
	ID      string
	History domain.History

	sync.Mutex
	lastSeen time.Time
}

// Store keeps sessions in memory for the lifetime of the process.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a Store that expires sessions idle for longer than ttl.
// A non-positive ttl falls back to 30 minutes.
func NewStore(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	s := &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the live session for id. An empty, unknown or expired id
// yields a fresh session with a new id; created reports which case happened.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.sessions[id]; ok && id != "" {
		if now.Sub(sess.lastSeen) <= s.ttl {
			sess.lastSeen = now
			return sess, false
		}
		delete(s.sessions, id)
	}

	sess = &Session{ID: newID(), lastSeen: now}
	s.sessions[sess.ID] = sess
	return sess, true
}

// Get returns the live session for id without creating one. An expired
// session is dropped and reported as missing.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.Sub(sess.lastSeen) > s.ttl {
		delete(s.sessions, id)
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

// End tears down a session. Unknown ids are ignored.
func (s *Store) End(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of tracked sessions, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

var newID = func() string {
	return uuid.NewString()
}
