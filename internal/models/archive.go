// internal/models/archive.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// CompletedGame is the immutable record written once a session ends or is abandoned.
type CompletedGame struct {
	ID             uuid.UUID             `json:"id"`
	JoinCode       string                `json:"joinCode"`
	OwnerUserID    *uuid.UUID            `json:"ownerUserId,omitempty"`
	DeckIDs        []uuid.UUID           `json:"deckIds"`
	PointsToWin    int                   `json:"pointsToWin"`
	HandSize       int                   `json:"handSize"`
	CreatedAt      time.Time             `json:"createdAt"`
	EndedAt        time.Time             `json:"endedAt"`
	DurationSec    int                   `json:"durationSec"`
	WasAbandoned   bool                  `json:"wasAbandoned"`
	WinnerPlayerID *uuid.UUID            `json:"winnerPlayerId,omitempty"`
	Players        []CompletedGamePlayer `json:"players"`
	Rounds         []CompletedRound      `json:"rounds"`
}

// CompletedGamePlayer holds one player's final standing.
type CompletedGamePlayer struct {
	PlayerID   uuid.UUID  `json:"playerId"`
	UserID     *uuid.UUID `json:"userId,omitempty"`
	Nickname   string     `json:"nickname"`
	FinalScore int        `json:"finalScore"`

	// Placement is nil for abandoned games.
	Placement *int `json:"placement"`
	RoundsWon int  `json:"roundsWon"`
	IsOwner   bool `json:"isOwner"`
}

// CompletedRound is the history of one finished round.
type CompletedRound struct {
	RoundID           uuid.UUID            `json:"roundId"`
	Number            int                  `json:"number"`
	BlackCardID       uuid.UUID            `json:"blackCardId"`
	BlackCardText     string               `json:"blackCardText"`
	CzarPlayerID      uuid.UUID            `json:"czarPlayerId"`
	WinnerPlayerID    *uuid.UUID           `json:"winnerPlayerId,omitempty"`
	WinningSubmission *ArchivedSubmission  `json:"winningSubmission,omitempty"`
	Submissions       []ArchivedSubmission `json:"submissions"`
	Voided            bool                 `json:"voided"`
	CompletedAt       time.Time            `json:"completedAt"`
}

// ArchivedSubmission is the serialized form of a submission stored with its round.
type ArchivedSubmission struct {
	SubmissionID uuid.UUID   `json:"submissionId"`
	PlayerID     uuid.UUID   `json:"playerId"`
	Nickname     string      `json:"nickname"`
	CardIDs      []uuid.UUID `json:"cardIds"`
}
