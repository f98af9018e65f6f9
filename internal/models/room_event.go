// internal/models/room_event.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RoomEvent is the durable form of a published game event, as queued in
// redis and archived by the historian.
type RoomEvent struct {
	RoomID    uuid.UUID       `json:"roomId"`
	Type      string          `json:"eventType"`
	ActorID   string          `json:"actorId,omitempty"`
	Version   int64           `json:"version"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
