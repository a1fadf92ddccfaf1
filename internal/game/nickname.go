// internal/game/nickname.go
package game

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxNicknameLength is measured in runes after normalization.
const MaxNicknameLength = 24

// DefaultOwnerNickname is used when a session is created without a usable nickname.
const DefaultOwnerNickname = "Host"

// NormalizeNickname returns the NFC form of raw with surrounding and repeated
// whitespace collapsed. It fails with InvalidNickname for blank, overlong or
// control-character names.
func NormalizeNickname(raw string) (string, error) {
	name := strings.Join(strings.Fields(norm.NFC.String(raw)), " ")
	if name == "" {
		return "", newError(CodeInvalidNickname, "nickname must not be blank")
	}
	if n := utf8.RuneCountInString(name); n > MaxNicknameLength {
		return "", newError(CodeInvalidNickname, "nickname is %d characters, max is %d", n, MaxNicknameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", newError(CodeInvalidNickname, "nickname contains control characters")
		}
	}
	return name, nil
}

// sanitizeOwnerNickname never fails: session creation is unconditional.
func sanitizeOwnerNickname(raw string) string {
	if name, err := NormalizeNickname(raw); err == nil {
		return name
	}
	var b strings.Builder
	count := 0
	for _, r := range strings.Join(strings.Fields(norm.NFC.String(raw)), " ") {
		if unicode.IsControl(r) {
			continue
		}
		if count == MaxNicknameLength {
			break
		}
		b.WriteRune(r)
		count++
	}
	if name := strings.TrimSpace(b.String()); name != "" {
		return name
	}
	return DefaultOwnerNickname
}
