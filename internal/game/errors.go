// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable kind of a GameError, reported to clients verbatim.
type ErrorCode string

const (
	CodeSessionNotFound    ErrorCode = "SessionNotFound"
	CodeGameAlreadyStarted ErrorCode = "GameAlreadyStarted"
	CodeGameNotStarted     ErrorCode = "GameNotStarted"
	CodeNotOwner           ErrorCode = "NotOwner"
	CodeNotCzar            ErrorCode = "NotCzar"
	CodeNotYourTurn        ErrorCode = "NotYourTurn"
	CodeAlreadySubmitted   ErrorCode = "AlreadySubmitted"
	CodeWrongCardCount     ErrorCode = "WrongCardCount"
	CodeCardNotInHand      ErrorCode = "CardNotInHand"
	CodeTooFewPlayers      ErrorCode = "TooFewPlayers"
	CodeInsufficientCards  ErrorCode = "InsufficientCards"
	CodePoolExhausted      ErrorCode = "PoolExhausted"
	CodeNotInGame          ErrorCode = "NotInGame"
	CodeInvalidNickname    ErrorCode = "InvalidNickname"
	CodeInvalidSettings    ErrorCode = "InvalidSettings"
	CodeInvalidRequest     ErrorCode = "InvalidRequest"
	CodeRoundNotFound      ErrorCode = "RoundNotFound"
	CodeSubmissionNotFound ErrorCode = "SubmissionNotFound"
	CodeInternalError      ErrorCode = "InternalError"
)

// GameError is a recoverable command failure. Session state is unchanged when one is returned.
type GameError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *GameError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code so that errors.Is(err, ErrNotOwner) holds for any NotOwner error.
func (e *GameError) Is(target error) bool {
	t, ok := target.(*GameError)
	return ok && t.Code == e.Code
}

var (
	ErrSessionNotFound    = &GameError{Code: CodeSessionNotFound, Message: "no live session matches"}
	ErrGameAlreadyStarted = &GameError{Code: CodeGameAlreadyStarted, Message: "game has already started"}
	ErrGameNotStarted     = &GameError{Code: CodeGameNotStarted, Message: "game has not started"}
	ErrNotOwner           = &GameError{Code: CodeNotOwner, Message: "only the session owner may do that"}
	ErrNotCzar            = &GameError{Code: CodeNotCzar, Message: "only the card czar may do that"}
	ErrNotYourTurn        = &GameError{Code: CodeNotYourTurn, Message: "not your turn"}
	ErrAlreadySubmitted   = &GameError{Code: CodeAlreadySubmitted, Message: "already submitted this round"}
	ErrWrongCardCount     = &GameError{Code: CodeWrongCardCount, Message: "wrong number of cards"}
	ErrCardNotInHand      = &GameError{Code: CodeCardNotInHand, Message: "card not in hand"}
	ErrTooFewPlayers      = &GameError{Code: CodeTooFewPlayers, Message: "not enough players"}
	ErrInsufficientCards  = &GameError{Code: CodeInsufficientCards, Message: "selected decks do not hold enough cards"}
	ErrPoolExhausted      = &GameError{Code: CodePoolExhausted, Message: "no cards left to draw"}
	ErrNotInGame          = &GameError{Code: CodeNotInGame, Message: "player is not in this game"}
	ErrInvalidNickname    = &GameError{Code: CodeInvalidNickname, Message: "invalid nickname"}
	ErrInvalidSettings    = &GameError{Code: CodeInvalidSettings, Message: "invalid settings"}
	ErrInvalidRequest     = &GameError{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrRoundNotFound      = &GameError{Code: CodeRoundNotFound, Message: "round is not active"}
	ErrSubmissionNotFound = &GameError{Code: CodeSubmissionNotFound, Message: "submission not found"}
	ErrInternal           = &GameError{Code: CodeInternalError, Message: "internal error"}
)

func newError(code ErrorCode, format string, args ...interface{}) *GameError {
	return &GameError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsGameError converts any error into a GameError. Errors that are not already
// GameErrors become InternalError so infrastructure details never reach clients.
func AsGameError(err error) *GameError {
	if err == nil {
		return nil
	}
	var ge *GameError
	if errors.As(err, &ge) {
		return ge
	}
	return &GameError{Code: CodeInternalError, Message: "internal error"}
}
