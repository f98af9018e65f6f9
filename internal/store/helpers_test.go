package store_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/models"
)

func ctxBG() context.Context { return context.Background() }

func fixtureRoom() (*models.Room, *models.Player) {
	ts := time.Now().UTC()
	room := &models.Room{
		ID:        uuid.New(),
		Code:      "K7PQ2M",
		Name:      "Heist A",
		HostID:    "host",
		Status:    models.RoomStatusLobby,
		CreatedAt: ts,
		UpdatedAt: ts,
		Version:   1,
	}
	host := &models.Player{
		ID:          uuid.New(),
		RoomID:      room.ID,
		UserID:      "host",
		DisplayName: "Host",
		AvatarID:    3,
		Ready:       true,
		IsHost:      true,
		IsAlive:     true,
		JoinedAt:    ts,
	}
	return room, host
}
