// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// UserStats are the lifetime totals maintained by the archive transaction.
type UserStats struct {
	UserID       uuid.UUID `json:"user_id"`
	GamesPlayed  int       `json:"games_played"`
	GamesWon     int       `json:"games_won"`
	RoundsPlayed int       `json:"rounds_played"`
	RoundsWon    int       `json:"rounds_won"`
	WinRate      float64   `json:"win_rate"`
}
