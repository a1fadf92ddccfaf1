// internal/game/commands.go
package game

import (
	"time"

	"github.com/google/uuid"
)

// Command is a request applied by a session's goroutine. The set is closed:
// only types declared in this package satisfy it.
type Command interface {
	commandName() string
}

// JoinGame adds a player to a lobby session. Owner creation uses the same command.
type JoinGame struct {
	UserID   *uuid.UUID
	Nickname string
}

type LeaveGame struct {
	PlayerID uuid.UUID
}

type KickPlayer struct {
	RequesterID uuid.UUID
	TargetID    uuid.UUID
}

type UpdateDecks struct {
	RequesterID uuid.UUID
	DeckIDs     []uuid.UUID
}

// UpdateSettings carries a partial settings object; absent keys keep their value.
type UpdateSettings struct {
	RequesterID uuid.UUID
	Changes     map[string]interface{}
}

type StartGame struct {
	RequesterID uuid.UUID
}

type SubmitCards struct {
	PlayerID uuid.UUID
	RoundID  uuid.UUID
	CardIDs  []uuid.UUID
}

type SelectWinner struct {
	RequesterID  uuid.UUID
	RoundID      uuid.UUID
	SubmissionID uuid.UUID
}

type EndGameEarly struct {
	RequesterID uuid.UUID
}

// ReconnectToGame re-attaches a transport connection to an existing player.
// Matching tries the user id, then the player id hint, then the sole disconnected guest.
type ReconnectToGame struct {
	UserID       *uuid.UUID
	PlayerIDHint *uuid.UUID
}

// Disconnect is sent by the transport when a player's connection drops.
type Disconnect struct {
	PlayerID uuid.UUID
}

type GetState struct {
	PlayerID uuid.UUID
}

// timer and janitor commands, posted by the session itself
type czarTimeout struct {
	PlayerID   uuid.UUID
	RoundID    uuid.UUID
	Generation uint64
}

type evictTimeout struct {
	PlayerID   uuid.UUID
	Generation uint64
}

type sweepIdle struct {
	IdleAfter time.Duration
}

func (JoinGame) commandName() string        { return "join-game" }
func (LeaveGame) commandName() string       { return "leave-game" }
func (KickPlayer) commandName() string      { return "kick-player" }
func (UpdateDecks) commandName() string     { return "update-decks" }
func (UpdateSettings) commandName() string  { return "update-settings" }
func (StartGame) commandName() string       { return "start-game" }
func (SubmitCards) commandName() string     { return "submit-cards" }
func (SelectWinner) commandName() string    { return "select-winner" }
func (EndGameEarly) commandName() string    { return "end-game-early" }
func (ReconnectToGame) commandName() string { return "reconnect-to-game" }
func (Disconnect) commandName() string      { return "disconnect" }
func (GetState) commandName() string        { return "get-state" }
func (czarTimeout) commandName() string     { return "czar-timeout" }
func (evictTimeout) commandName() string    { return "evict-timeout" }
func (sweepIdle) commandName() string       { return "sweep-idle" }

// JoinResult identifies the player a connection is bound to after join, create or reconnect.
type JoinResult struct {
	SessionID uuid.UUID `json:"sessionId"`
	PlayerID  uuid.UUID `json:"playerId"`
	JoinCode  string    `json:"joinCode"`
	Snapshot  *Snapshot `json:"snapshot"`
}

type SubmitResult struct {
	SubmissionID uuid.UUID `json:"submissionId"`
	Judging      bool      `json:"judging"`
}

type SelectResult struct {
	WinnerPlayerID uuid.UUID `json:"winnerPlayerId"`
	GameEnded      bool      `json:"gameEnded"`
}
