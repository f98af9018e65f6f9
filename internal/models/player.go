// internal/models/player.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is one user's membership in a room.
type Player struct {
	ID          uuid.UUID `json:"id"`
	RoomID      uuid.UUID `json:"roomId"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	AvatarID    int       `json:"avatarId"`
	Ready       bool      `json:"ready"`
	IsHost      bool      `json:"isHost"`
	IsAlive     bool      `json:"isAlive"`
	Role        Role      `json:"role,omitempty"`
	Alignment   Alignment `json:"alignment,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}

func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
