// internal/models/card.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// CardKind distinguishes prompt cards from answer cards.
type CardKind string

const (
	CardKindBlack CardKind = "black"
	CardKindWhite CardKind = "white"
)

// Card is a single prompt (black) or answer (white) card belonging to a deck.
type Card struct {
	ID     uuid.UUID `json:"id"`
	DeckID uuid.UUID `json:"deckId"`
	Kind   CardKind  `json:"kind"`
	Text   string    `json:"text"`

	// Pick is the number of white cards a submission must contain. Only meaningful for black cards.
	Pick int `json:"pick,omitempty"`
}

// Deck represents a row in the decks table.
type Deck struct {
	ID          uuid.UUID  `json:"id"`
	OwnerUserID *uuid.UUID `json:"ownerUserId,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	IsPublic    bool       `json:"isPublic"`
	BlackCount  int        `json:"blackCount"`
	WhiteCount  int        `json:"whiteCount"`
	CreatedAt   time.Time  `json:"createdAt"`
}
