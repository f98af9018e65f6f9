// internal/store/store.go
package store

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/models"
)

// Store persists rooms, their players and their chat logs.
// Implementations must return copies; callers never alias stored state.
type Store interface {
	// CreateRoom persists a new room and its host atomically.
	// Fails with models.ErrCodeTaken if a non-ended room already uses the code.
	CreateRoom(ctx context.Context, room *models.Room, host *models.Player) error

	GetRoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error)

	// GetRoomByCode prefers the active room holding the code, falling back
	// to the most recently created ended one.
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)

	// CodeInUse reports whether a non-ended room holds the code.
	CodeInUse(ctx context.Context, code string) (bool, error)

	// ListActiveRooms returns every room that has not ended.
	ListActiveRooms(ctx context.Context) ([]*models.Room, error)

	// PatchRoom applies patch if the stored version still equals
	// expectedVersion, bumps the version and returns the new room.
	PatchRoom(ctx context.Context, id uuid.UUID, expectedVersion int64, patch models.RoomPatch) (*models.Room, error)

	// ListPlayers returns the room's players in join order.
	ListPlayers(ctx context.Context, roomID uuid.UUID) ([]*models.Player, error)

	// AppendMessage stores msg and assigns its Seq.
	AppendMessage(ctx context.Context, msg *models.Message) error

	// ListMessages returns the log ordered by timestamp, ties by Seq.
	ListMessages(ctx context.Context, roomID uuid.UUID) ([]*models.Message, error)

	Close() error
}

// ApplyRoomPatch mutates room with the non-player parts of patch.
// It refuses status changes that would move the room backwards.
func ApplyRoomPatch(room *models.Room, patch models.RoomPatch) error {
	if patch.Status != nil {
		if !room.Status.CanTransitionTo(*patch.Status) {
			return models.ErrInvalidStatusTransition
		}
		room.Status = *patch.Status
	}
	if patch.Game != nil {
		room.Game = patch.Game.Clone()
	}
	if !patch.UpdatedAt.IsZero() {
		room.UpdatedAt = patch.UpdatedAt
	}
	room.Version++
	return nil
}

// UpsertPlayers merges updates into players by ID, appending unknown ones.
// Returns models.ErrConflict if a new player reuses a user id already in the room.
func UpsertPlayers(players []*models.Player, updates []*models.Player) ([]*models.Player, error) {
	for _, u := range updates {
		replaced := false
		for i, p := range players {
			if p.ID == u.ID {
				players[i] = u.Clone()
				replaced = true
				break
			}
		}
		if replaced {
			continue
		}
		for _, p := range players {
			if p.UserID == u.UserID {
				return nil, models.ErrConflict
			}
		}
		players = append(players, u.Clone())
	}
	return players, nil
}

// SortMessages orders a log by timestamp, breaking ties by insertion sequence.
func SortMessages(msgs []*models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].Seq < msgs[j].Seq
		}
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}
