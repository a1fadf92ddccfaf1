// internal/game/joincode.go
package game

import (
	"math/rand/v2"
	"strings"
)

// joinCodeAlphabet leaves out I, O, 0 and 1, which are easy to misread.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultJoinCodeLength gives 32^6 (about a billion) codes.
const DefaultJoinCodeLength = 6

func generateJoinCode(rng *rand.Rand, length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = joinCodeAlphabet[rng.IntN(len(joinCodeAlphabet))]
	}
	return string(b)
}

// NormalizeJoinCode upper-cases and trims user input so codes are case-insensitive.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
