// internal/game/manager.go
package game

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCzarDisconnectTimeout = 30 * time.Second
	DefaultPlayerEvictTimeout    = 5 * time.Minute
	DefaultLobbyIdleTimeout      = 30 * time.Minute
)

// Dependencies are the collaborators shared by every session of a Manager.
type Dependencies struct {
	Decks       DeckRepository
	Archiver    Archiver
	Broadcaster Broadcaster
	Actions     ActionRecorder
	Clock       clockwork.Clock
	Logger      *logrus.Logger

	// Rand seeds per-session generators and join codes. Tests pass a seeded source.
	Rand *rand.Rand

	CzarDisconnectTimeout time.Duration
	PlayerEvictTimeout    time.Duration
	LobbyIdleTimeout      time.Duration
	JoinCodeLength        int
}

// Manager is the session registry. It creates sessions and routes commands to them.
type Manager struct {
	deps  Dependencies
	store *SessionStore

	rngMu sync.Mutex
	rng   *rand.Rand

	schedMu   sync.Mutex
	scheduler gocron.Scheduler
}

func NewManager(deps Dependencies) *Manager {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = nopBroadcaster{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if deps.CzarDisconnectTimeout <= 0 {
		deps.CzarDisconnectTimeout = DefaultCzarDisconnectTimeout
	}
	if deps.PlayerEvictTimeout <= 0 {
		deps.PlayerEvictTimeout = DefaultPlayerEvictTimeout
	}
	if deps.LobbyIdleTimeout <= 0 {
		deps.LobbyIdleTimeout = DefaultLobbyIdleTimeout
	}
	if deps.JoinCodeLength <= 0 {
		deps.JoinCodeLength = DefaultJoinCodeLength
	}
	return &Manager{
		deps:  deps,
		store: NewSessionStore(),
		rng:   deps.Rand,
	}
}

func (m *Manager) newSessionRand() *rand.Rand {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return rand.New(rand.NewPCG(m.rng.Uint64(), m.rng.Uint64()))
}

func (m *Manager) newJoinCode() string {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return generateJoinCode(m.rng, m.deps.JoinCodeLength)
}

// CreateGame opens a lobby session owned by the caller. It does not fail:
// an unusable nickname is replaced rather than rejected.
func (m *Manager) CreateGame(ctx context.Context, userID *uuid.UUID, nickname string) (*JoinResult, error) {
	s := newSession(uuid.New(), sessionConfig{
		decks:        m.deps.Decks,
		archiver:     m.deps.Archiver,
		broadcaster:  m.deps.Broadcaster,
		actions:      m.deps.Actions,
		clock:        m.deps.Clock,
		logger:       m.deps.Logger,
		rng:          m.newSessionRand(),
		czarTimeout:  m.deps.CzarDisconnectTimeout,
		evictTimeout: m.deps.PlayerEvictTimeout,
		onClose: func(s *Session) {
			m.store.DeleteSession(s.ID)
		},
	})
	m.store.AddSession(s, m.newJoinCode)
	s.log = s.log.WithField("code", s.JoinCode)

	// the goroutine is not running yet, so the owner can be added directly
	owner := s.addPlayer(userID, sanitizeOwnerNickname(nickname))
	res := s.joinResult(owner)
	go s.run()

	s.log.WithField("player", owner.ID).Info("session created")
	return res, nil
}

// JoinGame adds the caller to the lobby with the given join code.
func (m *Manager) JoinGame(ctx context.Context, joinCode string, userID *uuid.UUID, nickname string) (*JoinResult, error) {
	s, ok := m.store.GetSessionByCode(NormalizeJoinCode(joinCode))
	if !ok {
		return nil, ErrSessionNotFound
	}
	v, err := s.Do(ctx, JoinGame{UserID: userID, Nickname: nickname})
	if err != nil {
		return nil, err
	}
	return v.(*JoinResult), nil
}

// ReconnectToGame re-binds the caller to an existing player of the session.
func (m *Manager) ReconnectToGame(ctx context.Context, sessionID uuid.UUID, userID, playerIDHint *uuid.UUID) (*JoinResult, error) {
	v, err := m.Dispatch(ctx, sessionID, ReconnectToGame{UserID: userID, PlayerIDHint: playerIDHint})
	if err != nil {
		return nil, err
	}
	return v.(*JoinResult), nil
}

// Dispatch routes cmd to the session with the given id.
func (m *Manager) Dispatch(ctx context.Context, sessionID uuid.UUID, cmd Command) (interface{}, error) {
	s, ok := m.store.GetSession(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Do(ctx, cmd)
}

// State returns the snapshot of a session as seen by playerID.
func (m *Manager) State(ctx context.Context, sessionID, playerID uuid.UUID) (*Snapshot, error) {
	v, err := m.Dispatch(ctx, sessionID, GetState{PlayerID: playerID})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// LookupJoinCode reports the id of the live session using code.
func (m *Manager) LookupJoinCode(code string) (uuid.UUID, bool) {
	s, ok := m.store.GetSessionByCode(NormalizeJoinCode(code))
	if !ok {
		return uuid.Nil, false
	}
	return s.ID, true
}

func (m *Manager) SessionCount() int {
	return m.store.Len()
}

// Shutdown stops the janitor and every live session without archiving them.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.StopJanitor()
	for _, s := range m.store.Sessions() {
		s.Close()
	}
	for _, s := range m.store.Sessions() {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
