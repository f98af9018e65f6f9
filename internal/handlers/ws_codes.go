// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room socket.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Auth token was missing, invalid or expired.
	InvalidUserIDError    = 3002 // The token's user is not a member of the room.
	InvalidRoomIDError    = 3003 // Target room in the WS URL does not exist or is invalid.
)
