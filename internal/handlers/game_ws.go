// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/czar/internal/auth"
	"github.com/jason-s-yu/czar/internal/game"
	"github.com/jason-s-yu/czar/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	gameSubprotocol = "game"
	pingInterval    = 30 * time.Second
	writeTimeout    = 5 * time.Second
)

// GameServer carries what the game websocket needs.
type GameServer struct {
	Manager *game.Manager
	Hub     *Hub
	Logger  *logrus.Logger

	// Usernames resolves a signed-in user's default nickname. Optional.
	Usernames func(ctx context.Context, userID uuid.UUID) (string, error)
}

// wsRequest is a client command. RequestID is echoed back on the response.
type wsRequest struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type wsResponse struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Command   string          `json:"command"`
	OK        bool            `json:"ok"`
	Data      interface{}     `json:"data,omitempty"`
	Error     *game.GameError `json:"error,omitempty"`
}

// conn is the per-connection state shared by the read loop and the command handlers.
type conn struct {
	ws     *websocket.Conn
	client *client
	userID *uuid.UUID
	log    *logrus.Entry
}

// GameWSHandler upgrades /game/ws to a websocket speaking the "game" subprotocol.
// A valid auth cookie binds the connection to a user; without one the caller plays as a guest.
func GameWSHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, authErr := auth.UserFromRequest(r)

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{gameSubprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			gs.Logger.WithError(err).Warn("websocket accept error")
			return
		}
		defer c.CloseNow()

		if c.Subprotocol() != gameSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the game subprotocol")
			return
		}
		if authErr != nil && !errors.Is(authErr, auth.ErrNoToken) {
			c.Close(InvalidAuthTokenError, "invalid auth token")
			return
		}

		middleware.LogWebSocketConnect(gs.Logger, r.RemoteAddr, r.URL.Path)
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		cn := &conn{
			ws:     c,
			client: newClient(cancel),
			log:    gs.Logger.WithField("remote", r.RemoteAddr),
		}
		if authErr == nil {
			cn.userID = &userID
			cn.log = cn.log.WithField("user", userID)
		}

		go gs.writePump(ctx, cn)
		readErr := gs.readPump(ctx, cn)
		cancel()

		if sessionID, playerID, ok := gs.Hub.Unbind(cn.client); ok {
			dctx, dcancel := context.WithTimeout(context.Background(), writeTimeout)
			if _, err := gs.Manager.Dispatch(dctx, sessionID, game.Disconnect{PlayerID: playerID}); err != nil {
				cn.log.WithError(err).Debug("disconnect not applied")
			}
			dcancel()
		}
		middleware.LogWebSocketDisconnect(gs.Logger, r.RemoteAddr, r.URL.Path, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump reads commands until the connection closes or ctx is cancelled.
// The returned error is nil for a normal closure.
func (gs *GameServer) readPump(ctx context.Context, cn *conn) error {
	for {
		typ, data, err := cn.ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			cn.log.Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			gs.respond(ctx, cn, wsRequest{}, nil, &game.GameError{Code: game.CodeInvalidRequest, Message: "invalid JSON"})
			continue
		}
		cn.log.WithField("command", req.Type).Debug("received command")

		result, err := gs.handleCommand(ctx, cn, req)
		gs.respond(ctx, cn, req, result, err)
	}
}

// writePump is the connection's only writer: it drains OutChan and keeps the connection alive with pings.
func (gs *GameServer) writePump(ctx context.Context, cn *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-cn.client.OutChan:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := cn.ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				cn.log.WithError(err).Debug("write failed")
				cn.client.cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := cn.ws.Ping(pingCtx)
			cancel()
			if err != nil {
				cn.log.WithError(err).Debug("ping failed")
				cn.client.cancel()
				return
			}
		}
	}
}

// respond queues the response to req. Unlike events it waits for room in the queue.
func (gs *GameServer) respond(ctx context.Context, cn *conn, req wsRequest, result interface{}, err error) {
	resp := wsResponse{
		Type:      "response",
		RequestID: req.RequestID,
		Command:   req.Type,
		OK:        err == nil,
	}
	if err != nil {
		resp.Error = game.AsGameError(err)
		if resp.Error.Code == game.CodeInternalError {
			cn.log.WithError(err).WithField("command", req.Type).Error("command failed")
		}
	} else {
		resp.Data = result
	}

	data, mErr := json.Marshal(resp)
	if mErr != nil {
		cn.log.WithError(mErr).Error("marshal response")
		return
	}
	select {
	case cn.client.OutChan <- data:
	case <-ctx.Done():
	}
}
