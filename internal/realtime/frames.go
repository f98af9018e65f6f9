// internal/realtime/frames.go
package realtime

import "github.com/jason-s-yu/heist/internal/game"

// Subprotocol is the websocket subprotocol spoken on room sockets.
const Subprotocol = "heist"

// Frame types. The server sends event, state, result and error frames;
// clients send chat, ready and action frames.
const (
	FrameEvent  = "event"
	FrameState  = "state"
	FrameResult = "result"
	FrameError  = "error"

	FrameChat   = "chat"
	FrameReady  = "ready"
	FrameAction = "action"
)

// ServerFrame is pushed from the server to a connected player.
type ServerFrame struct {
	Type   string             `json:"type"`
	Event  *game.Event        `json:"event,omitempty"`
	State  *game.RoomView     `json:"state,omitempty"`
	Result *game.ActionResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
	Code   string             `json:"code,omitempty"`
}

// ClientFrame is sent by a player over the socket.
type ClientFrame struct {
	Type    string       `json:"type"`
	Content string       `json:"content,omitempty"`
	Ready   bool         `json:"ready,omitempty"`
	Action  *game.Action `json:"action,omitempty"`
}
