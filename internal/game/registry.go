// internal/game/registry.go
package game

import (
	"sync"

	"github.com/google/uuid"
)

// SessionStore indexes live sessions by id and by join code. It never touches
// session state; each session guards its own.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	codes    map[string]uuid.UUID
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*Session),
		codes:    make(map[string]uuid.UUID),
	}
}

// AddSession stores s under a join code from newCode that no live session is using.
func (st *SessionStore) AddSession(s *Session, newCode func() string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	code := newCode()
	for {
		if _, taken := st.codes[code]; !taken {
			break
		}
		code = newCode()
	}
	s.JoinCode = code
	st.sessions[s.ID] = s
	st.codes[code] = s.ID
}

func (st *SessionStore) GetSession(id uuid.UUID) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, exists := st.sessions[id]
	return s, exists
}

func (st *SessionStore) GetSessionByCode(code string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	id, ok := st.codes[code]
	if !ok {
		return nil, false
	}
	s, exists := st.sessions[id]
	return s, exists
}

// DeleteSession removes the session and frees its join code for reuse.
func (st *SessionStore) DeleteSession(id uuid.UUID) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return
	}
	if st.codes[s.JoinCode] == id {
		delete(st.codes, s.JoinCode)
	}
	delete(st.sessions, id)
}

// Sessions returns a point-in-time copy of the live sessions.
func (st *SessionStore) Sessions() []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
