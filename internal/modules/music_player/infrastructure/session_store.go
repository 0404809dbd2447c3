package infrastructure

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"

	"github.com/cadenza-bot/cadenza/internal/modules/music_player/domain"
)

// Compile-time check that SessionStore implements domain.SessionStore.
var _ domain.SessionStore = (*SessionStore)(nil)

// SessionStore is the in-memory implementation of domain.SessionStore.
//
// Locking is two-level: a read-write mutex guards the map itself and is
// held only for lookup and insert, while each session carries its own mutex
// that With holds for the whole operation. Commands and engine callbacks
// for one guild therefore serialize against each other, and sessions for
// different guilds never contend.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[snowflake.ID]*session
}

type session struct {
	mu    sync.Mutex
	state domain.SessionState
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[snowflake.ID]*session),
	}
}

// With runs fn with exclusive ownership of the guild's session state,
// creating it on first access. The per-session lock is released on every
// exit path.
func (s *SessionStore) With(guildID snowflake.ID, fn func(*domain.SessionState) error) error {
	sess := s.getOrCreate(guildID)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(&sess.state)
}

// WithExisting runs fn only when a session entry already exists. Eviction
// must stay final: the engine's stop notification arrives after Evict on
// the disconnect path, and going through With there would re-insert a
// default entry for a guild the bot just left.
func (s *SessionStore) WithExisting(guildID snowflake.ID, fn func(*domain.SessionState) error) (bool, error) {
	s.mu.RLock()
	sess, ok := s.sessions[guildID]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return true, fn(&sess.state)
}

// getOrCreate returns the session entry for guildID, creating it with
// defaults on first access. The fast path takes only a read lock.
func (s *SessionStore) getOrCreate(guildID snowflake.ID) *session {
	s.mu.RLock()
	sess, ok := s.sessions[guildID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have created the entry between the two locks.
	if sess, ok := s.sessions[guildID]; ok {
		return sess
	}

	sess = &session{
		state: domain.SessionState{
			GuildID: guildID,
			Volume:  domain.DefaultVolume,
		},
	}
	s.sessions[guildID] = sess
	return sess
}

// Evict removes the session entry for guildID. A goroutine still inside
// With on the old entry finishes against state that is no longer reachable,
// which is harmless: the next access starts fresh.
func (s *SessionStore) Evict(guildID snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, guildID)
}

// Count returns the number of live sessions (for testing/monitoring).
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}
