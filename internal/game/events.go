// internal/game/events.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names something that happened in a room.
type EventType string

const (
	EventRoomCreated      EventType = "room_created"
	EventPlayerJoined     EventType = "player_joined"
	EventPlayerReady      EventType = "player_ready"
	EventGameStarted      EventType = "game_started"
	EventPhaseChanged     EventType = "phase_changed"
	EventVoteCast         EventType = "vote_cast"
	EventPlayerEliminated EventType = "player_eliminated"
	EventTaskReported     EventType = "task_reported"
	EventTaskResolved     EventType = "task_resolved"
	EventRoleIntel        EventType = "role_intel"   // private to the master thief
	EventAbilityUsed      EventType = "ability_used" // private to the actor
	EventMessagePosted    EventType = "message_posted"
	EventGameEnded        EventType = "game_ended"
	EventRoomAbandoned    EventType = "room_abandoned"
)

// Event is pushed to subscribers after a change has been committed.
// Payloads never carry another player's hidden role.
type Event struct {
	Type      EventType              `json:"type"`
	RoomID    uuid.UUID              `json:"roomId"`
	ActorID   string                 `json:"actorId,omitempty"`
	Version   int64                  `json:"version"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	// Audience restricts delivery to one user id when set.
	Audience string `json:"-"`
}

// Publisher receives committed events. Implementations must not block.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event)

func (f PublisherFunc) Publish(ctx context.Context, ev Event) { f(ctx, ev) }
