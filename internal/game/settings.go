// internal/game/settings.go
package game

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Settings are the owner-tunable rules of a session. They can only change while the session is in the lobby.
type Settings struct {
	PointsToWin int `json:"pointsToWin" validate:"min=1,max=50"` // first player to reach this score wins
	HandSize    int `json:"handSize" validate:"min=3,max=15"`    // white cards each player holds
	MaxRounds   int `json:"maxRounds" validate:"min=0,max=500"`  // 0 means no round limit
	MaxPlayers  int `json:"maxPlayers" validate:"min=3,max=20"`  // join is refused once the lobby is full
}

// DefaultSettings returns the settings a new session starts with.
func DefaultSettings() Settings {
	return Settings{
		PointsToWin: 8,
		HandSize:    10,
		MaxRounds:   0,
		MaxPlayers:  12,
	}
}

// Validate checks every field against its bounds.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return newError(CodeInvalidSettings, "%v", err)
	}
	return nil
}

// Update applies the provided keys on top of the current settings.
// Keys that are absent or unknown are ignored and keep their old value.
func (s *Settings) Update(changes map[string]interface{}) error {
	assignInt := func(field *int, key string) error {
		val, exists := changes[key]
		if !exists || val == nil {
			return nil
		}
		switch v := val.(type) {
		case float64:
			// JSON numbers decode as float64
			if v != math.Trunc(v) {
				return fmt.Errorf("%s must be a whole number", key)
			}
			*field = int(v)
		case int:
			*field = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		return nil
	}

	if err := assignInt(&s.PointsToWin, "pointsToWin"); err != nil {
		return newError(CodeInvalidSettings, "%v", err)
	}
	if err := assignInt(&s.HandSize, "handSize"); err != nil {
		return newError(CodeInvalidSettings, "%v", err)
	}
	if err := assignInt(&s.MaxRounds, "maxRounds"); err != nil {
		return newError(CodeInvalidSettings, "%v", err)
	}
	if err := assignInt(&s.MaxPlayers, "maxPlayers"); err != nil {
		return newError(CodeInvalidSettings, "%v", err)
	}
	return s.Validate()
}

// ParseSettings returns current with changes applied, leaving current untouched on error.
func ParseSettings(changes map[string]interface{}, current Settings) (Settings, error) {
	next := current
	if err := next.Update(changes); err != nil {
		return current, err
	}
	return next, nil
}
