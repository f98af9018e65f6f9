// internal/models/room.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus is the coarse lifecycle of a room. It only ever moves forward.
type RoomStatus string

const (
	RoomStatusLobby   RoomStatus = "lobby"
	RoomStatusPlaying RoomStatus = "playing"
	RoomStatusEnded   RoomStatus = "ended"
)

var statusRank = map[RoomStatus]int{
	RoomStatusLobby:   0,
	RoomStatusPlaying: 1,
	RoomStatusEnded:   2,
}

// Valid reports whether s is a known status.
func (s RoomStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether a room in status s may be moved to next.
// Staying put is allowed; lobby may skip straight to ended when abandoned.
func (s RoomStatus) CanTransitionTo(next RoomStatus) bool {
	from, ok1 := statusRank[s]
	to, ok2 := statusRank[next]
	if !ok1 || !ok2 {
		return false
	}
	return to >= from
}

// Room is the authoritative record of one game room.
type Room struct {
	ID           uuid.UUID  `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	HostID       string     `json:"hostId"`
	TraitorCount int        `json:"traitorCount"`
	HeroCount    int        `json:"heroCount"`
	Status       RoomStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	// Version is bumped by the store on every committed patch.
	Version int64 `json:"version"`

	Game GameState `json:"game"`
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Game = r.Game.Clone()
	return &c
}

// RoomPatch is one atomic change set applied to a room by the store.
// Nil fields are left untouched. Players are upserted by ID; unknown
// players are appended in the order given.
type RoomPatch struct {
	Status    *RoomStatus
	Game      *GameState
	Players   []*Player
	UpdatedAt time.Time
}
