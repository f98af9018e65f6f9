// internal/models/message.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// SystemSenderID is the sender id used for messages synthesized by the server.
const SystemSenderID = "system"

// Message is one entry of a room's append-only chat log.
type Message struct {
	ID         uuid.UUID `json:"id"`
	RoomID     uuid.UUID `json:"roomId"`
	Seq        int64     `json:"seq"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	IsSystem   bool      `json:"isSystem"`
}
