// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/czar/internal/game"
	"github.com/sirupsen/logrus"
)

// outBuffer is the number of queued messages a client may fall behind before it is dropped.
const outBuffer = 64

// client is one websocket connection. OutChan is drained by the connection's write pump.
type client struct {
	OutChan chan []byte
	cancel  context.CancelFunc

	// guarded by Hub.mu
	sessionID uuid.UUID
	playerID  uuid.UUID
}

func newClient(cancel context.CancelFunc) *client {
	return &client{
		OutChan: make(chan []byte, outBuffer),
		cancel:  cancel,
	}
}

// Hub maps players to their live connections and fans session events out to them.
// It implements game.Broadcaster; sends never block the session goroutine.
type Hub struct {
	mu       sync.RWMutex
	players  map[uuid.UUID]*client
	sessions map[uuid.UUID]map[uuid.UUID]*client
	logger   *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		players:  make(map[uuid.UUID]*client),
		sessions: make(map[uuid.UUID]map[uuid.UUID]*client),
		logger:   logger,
	}
}

// Bind attaches c to a player. A connection previously bound to the same player is
// detached and closed.
func (h *Hub) Bind(c *client, sessionID, playerID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.sessionID != uuid.Nil {
		h.detachLocked(c)
	}
	if old, ok := h.players[playerID]; ok && old != c {
		h.detachLocked(old)
		old.cancel()
	}
	c.sessionID, c.playerID = sessionID, playerID
	h.players[playerID] = c
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[uuid.UUID]*client)
	}
	h.sessions[sessionID][playerID] = c
}

// Unbind detaches c and reports the binding it had. ok is false if c was not bound,
// which is the case after it was replaced by a newer connection.
func (h *Hub) Unbind(c *client) (sessionID, playerID uuid.UUID, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.sessionID == uuid.Nil {
		return uuid.Nil, uuid.Nil, false
	}
	sessionID, playerID = c.sessionID, c.playerID
	h.detachLocked(c)
	return sessionID, playerID, true
}

// Binding returns the session and player c is attached to.
func (h *Hub) Binding(c *client) (sessionID, playerID uuid.UUID, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.sessionID, c.playerID, c.sessionID != uuid.Nil
}

func (h *Hub) detachLocked(c *client) {
	if members, ok := h.sessions[c.sessionID]; ok {
		if members[c.playerID] == c {
			delete(members, c.playerID)
		}
		if len(members) == 0 {
			delete(h.sessions, c.sessionID)
		}
	}
	if h.players[c.playerID] == c {
		delete(h.players, c.playerID)
	}
	c.sessionID, c.playerID = uuid.Nil, uuid.Nil
}

// Broadcast sends ev to every connection of its session. Players that left are
// detached after the event, and a finished game detaches everyone.
func (h *Hub) Broadcast(ev game.GameEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithError(err).WithField("type", ev.Type).Error("marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.sessions[ev.SessionID] {
		h.enqueueLocked(c, data)
	}

	switch {
	case ev.Type == game.EventGameEnded:
		for _, c := range h.sessions[ev.SessionID] {
			h.detachLocked(c)
		}
	case ev.Type == game.EventPlayerLeft && ev.Player != nil:
		if c, ok := h.players[ev.Player.ID]; ok && c.sessionID == ev.SessionID {
			h.detachLocked(c)
		}
	}
}

// SendToPlayer delivers a private event to one player's connection, if any.
func (h *Hub) SendToPlayer(playerID uuid.UUID, ev game.GameEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithError(err).WithField("type", ev.Type).Error("marshal private event")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.players[playerID]; ok {
		h.enqueueLocked(c, data)
	}
}

// enqueueLocked queues data for c. A client whose queue is full is cut off; its read
// loop then reports the disconnect.
func (h *Hub) enqueueLocked(c *client, data []byte) {
	select {
	case c.OutChan <- data:
	default:
		h.logger.WithField("player", c.playerID).Warn("client too slow, closing connection")
		c.cancel()
	}
}

// ConnectedPlayers is the number of bound connections.
func (h *Hub) ConnectedPlayers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.players)
}
