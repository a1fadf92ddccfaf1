// internal/models/player.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is a participant in a live game session.
type Player struct {
	ID uuid.UUID `json:"id"`

	// UserID is nil for guests.
	UserID *uuid.UUID `json:"userId,omitempty"`

	Nickname  string `json:"nickname"`
	Score     int    `json:"score"`
	IsOwner   bool   `json:"isOwner"`
	Connected bool   `json:"connected"`

	// Hand holds the ids of the white cards the player may submit, in deal order.
	Hand []uuid.UUID `json:"-"`

	JoinedAt       time.Time  `json:"joinedAt"`
	DisconnectedAt *time.Time `json:"-"`
}

// IsGuest reports whether the player has no backing user account.
func (p *Player) IsGuest() bool {
	return p.UserID == nil
}

// HasUser reports whether the player belongs to the given user.
func (p *Player) HasUser(userID uuid.UUID) bool {
	return p.UserID != nil && *p.UserID == userID
}

// HoldsCards reports whether every id in cardIDs is in the player's hand.
// Repeated ids must be held that many times.
func (p *Player) HoldsCards(cardIDs []uuid.UUID) bool {
	counts := make(map[uuid.UUID]int, len(p.Hand))
	for _, id := range p.Hand {
		counts[id]++
	}
	for _, id := range cardIDs {
		if counts[id] == 0 {
			return false
		}
		counts[id]--
	}
	return true
}

// RemoveCards drops the given ids from the hand, preserving the order of the rest.
func (p *Player) RemoveCards(cardIDs []uuid.UUID) {
	drop := make(map[uuid.UUID]int, len(cardIDs))
	for _, id := range cardIDs {
		drop[id]++
	}
	kept := p.Hand[:0]
	for _, id := range p.Hand {
		if drop[id] > 0 {
			drop[id]--
			continue
		}
		kept = append(kept, id)
	}
	p.Hand = kept
}
