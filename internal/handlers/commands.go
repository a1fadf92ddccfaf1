// internal/handlers/commands.go
package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/czar/internal/game"
	"github.com/sirupsen/logrus"
)

type nicknamePayload struct {
	Nickname string `json:"nickname"`
}

type joinPayload struct {
	JoinCode string `json:"joinCode"`
	Nickname string `json:"nickname"`
}

type reconnectPayload struct {
	SessionID uuid.UUID  `json:"sessionId"`
	PlayerID  *uuid.UUID `json:"playerId,omitempty"`
}

type decksPayload struct {
	DeckIDs []uuid.UUID `json:"deckIds"`
}

type submitPayload struct {
	RoundID uuid.UUID   `json:"roundId"`
	CardIDs []uuid.UUID `json:"cardIds"`
}

type selectPayload struct {
	RoundID      uuid.UUID `json:"roundId"`
	SubmissionID uuid.UUID `json:"submissionId"`
}

type kickPayload struct {
	PlayerID uuid.UUID `json:"playerId"`
}

// sessionCommands need a connection already bound to a player.
var sessionCommands = map[string]bool{
	"get-state":       true,
	"leave-game":      true,
	"update-decks":    true,
	"update-settings": true,
	"start-game":      true,
	"submit-cards":    true,
	"select-winner":   true,
	"kick-player":     true,
	"end-game-early":  true,
}

var errAlreadyBound = &game.GameError{Code: game.CodeInvalidRequest, Message: "connection is already in a game"}

// handleCommand maps a wire request onto the engine and returns the success payload.
func (gs *GameServer) handleCommand(ctx context.Context, cn *conn, req wsRequest) (interface{}, error) {
	switch req.Type {
	case "ping":
		return map[string]int64{"time": time.Now().UnixMilli()}, nil
	case "create-game", "join-game", "reconnect-to-game":
		if _, _, bound := gs.Hub.Binding(cn.client); bound {
			return nil, errAlreadyBound
		}
		res, err := gs.enter(ctx, cn, req)
		if err != nil {
			return nil, err
		}
		gs.Hub.Bind(cn.client, res.SessionID, res.PlayerID)
		cn.log.WithFields(logrus.Fields{"session": res.SessionID, "player": res.PlayerID}).Info(req.Type)
		return res, nil
	}

	if !sessionCommands[req.Type] {
		return nil, &game.GameError{Code: game.CodeInvalidRequest, Message: "unknown command " + req.Type}
	}
	sessionID, playerID, bound := gs.Hub.Binding(cn.client)
	if !bound {
		return nil, game.ErrNotInGame
	}

	var cmd game.Command
	switch req.Type {
	case "get-state":
		return gs.Manager.State(ctx, sessionID, playerID)
	case "leave-game":
		cmd = game.LeaveGame{PlayerID: playerID}
	case "update-decks":
		var p decksPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		cmd = game.UpdateDecks{RequesterID: playerID, DeckIDs: p.DeckIDs}
	case "update-settings":
		var changes map[string]interface{}
		if err := decodePayload(req.Payload, &changes); err != nil {
			return nil, err
		}
		cmd = game.UpdateSettings{RequesterID: playerID, Changes: changes}
	case "start-game":
		cmd = game.StartGame{RequesterID: playerID}
	case "submit-cards":
		var p submitPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		cmd = game.SubmitCards{PlayerID: playerID, RoundID: p.RoundID, CardIDs: p.CardIDs}
	case "select-winner":
		var p selectPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		cmd = game.SelectWinner{RequesterID: playerID, RoundID: p.RoundID, SubmissionID: p.SubmissionID}
	case "kick-player":
		var p kickPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		cmd = game.KickPlayer{RequesterID: playerID, TargetID: p.PlayerID}
	case "end-game-early":
		cmd = game.EndGameEarly{RequesterID: playerID}
	default:
		return nil, &game.GameError{Code: game.CodeInvalidRequest, Message: "unknown command " + req.Type}
	}

	result, err := gs.Manager.Dispatch(ctx, sessionID, cmd)
	if err != nil {
		return nil, err
	}
	if req.Type == "leave-game" {
		gs.Hub.Unbind(cn.client)
	}
	return result, nil
}

// enter runs the commands that bind a connection to a player.
func (gs *GameServer) enter(ctx context.Context, cn *conn, req wsRequest) (*game.JoinResult, error) {
	switch req.Type {
	case "create-game":
		var p nicknamePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return gs.Manager.CreateGame(ctx, cn.userID, gs.nickname(ctx, cn, p.Nickname))
	case "join-game":
		var p joinPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return gs.Manager.JoinGame(ctx, p.JoinCode, cn.userID, gs.nickname(ctx, cn, p.Nickname))
	default:
		var p reconnectPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return gs.Manager.ReconnectToGame(ctx, p.SessionID, cn.userID, p.PlayerID)
	}
}

// nickname falls back to the signed-in user's username when none was given.
func (gs *GameServer) nickname(ctx context.Context, cn *conn, requested string) string {
	if requested != "" || cn.userID == nil || gs.Usernames == nil {
		return requested
	}
	name, err := gs.Usernames(ctx, *cn.userID)
	if err != nil {
		cn.log.WithError(err).Debug("username lookup failed")
		return requested
	}
	return name
}

// decodePayload unmarshals raw into v. An absent payload leaves v untouched.
func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &game.GameError{Code: game.CodeInvalidRequest, Message: "malformed payload: " + err.Error()}
	}
	return nil
}
