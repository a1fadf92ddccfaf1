// internal/game/events.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/czar/internal/models"
)

// EventType names an asynchronous notification sent to session participants.
type EventType string

const (
	EventPlayerJoined       EventType = "player-joined"
	EventPlayerLeft         EventType = "player-left"
	EventPlayerDisconnected EventType = "player-disconnected"
	EventPlayerReconnected  EventType = "player-reconnected"
	EventOwnerChanged       EventType = "owner-changed"
	EventDecksUpdated       EventType = "decks-updated"
	EventSettingsUpdated    EventType = "settings-updated"
	EventGameStarted        EventType = "game-started"
	EventRoundStarted       EventType = "round-started"
	EventCardsDealt         EventType = "cards-dealt"         // private
	EventCardSubmitted      EventType = "card-submitted"      // counts only
	EventAllCardsSubmitted  EventType = "all-cards-submitted" // czar only
	EventWinnerSelected     EventType = "winner-selected"
	EventRoundEnded         EventType = "round-ended"
	EventGameEnded          EventType = "game-ended"
)

// GameEvent is the payload delivered to clients for every broadcast or private message.
type GameEvent struct {
	Type      EventType              `json:"type"`
	SessionID uuid.UUID              `json:"sessionId"`
	Player    *PlayerView            `json:"player,omitempty"`
	Round     *RoundView             `json:"round,omitempty"`
	Cards     []models.Card          `json:"cards,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Broadcaster delivers session events to connected clients. Implementations must not
// block: both methods are called from the session's own goroutine.
type Broadcaster interface {
	Broadcast(ev GameEvent)
	SendToPlayer(playerID uuid.UUID, ev GameEvent)
}

// PlayerView is the public projection of a player.
type PlayerView struct {
	ID        uuid.UUID `json:"id"`
	Nickname  string    `json:"nickname"`
	Score     int       `json:"score"`
	IsOwner   bool      `json:"isOwner"`
	IsGuest   bool      `json:"isGuest"`
	Connected bool      `json:"connected"`
	HandCount int       `json:"handCount"`
}

// RoundView is the public projection of a round.
type RoundView struct {
	ID              uuid.UUID   `json:"id"`
	Number          int         `json:"number"`
	BlackCard       models.Card `json:"blackCard"`
	CzarID          uuid.UUID   `json:"czarId"`
	Status          RoundStatus `json:"status"`
	SubmissionCount int         `json:"submissionCount"`
	RequiredCount   int         `json:"requiredCount"`
	WinnerID        *uuid.UUID  `json:"winnerId,omitempty"`
	Voided          bool        `json:"voided,omitempty"`
}

// SubmissionView is an anonymous submission as shown to the czar.
type SubmissionView struct {
	ID    uuid.UUID     `json:"id"`
	Cards []models.Card `json:"cards"`
}

// Snapshot is a participant's view of the whole session.
type Snapshot struct {
	SessionID      uuid.UUID        `json:"sessionId"`
	JoinCode       string           `json:"joinCode"`
	Status         Status           `json:"status"`
	Settings       Settings         `json:"settings"`
	DeckIDs        []uuid.UUID      `json:"deckIds"`
	Players        []PlayerView     `json:"players"`
	Round          *RoundView       `json:"round,omitempty"`
	YouID          uuid.UUID        `json:"youId"`
	Hand           []models.Card    `json:"hand"`
	Submitted      bool             `json:"submitted"`
	Submissions    []SubmissionView `json:"submissions,omitempty"`
	BlackRemaining int              `json:"blackRemaining"`
	WhiteRemaining int              `json:"whiteRemaining"`
	DiscardCount   int              `json:"discardCount"`
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(GameEvent)                {}
func (nopBroadcaster) SendToPlayer(uuid.UUID, GameEvent) {}
