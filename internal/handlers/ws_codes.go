// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom close codes, sent when a connection is refused after the upgrade.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // client did not negotiate the "game" subprotocol
	InvalidAuthTokenError websocket.StatusCode = 3001 // auth cookie present but invalid or expired
)
