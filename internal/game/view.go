// internal/game/view.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/models"
)

// PlayerView is a player as seen by one viewer.
type PlayerView struct {
	ID          uuid.UUID        `json:"id"`
	UserID      string           `json:"userId"`
	DisplayName string           `json:"displayName"`
	AvatarID    int              `json:"avatarId"`
	Ready       bool             `json:"ready"`
	IsHost      bool             `json:"isHost"`
	IsAlive     bool             `json:"isAlive"`
	Role        models.Role      `json:"role,omitempty"`
	Alignment   models.Alignment `json:"alignment,omitempty"`
}

// GameView is the public part of the game state plus the viewer's own
// private bits. Pending sabotages, lockpicks and frames are never shown;
// task counters only move when the task phase is announced.
type GameView struct {
	Phase          models.Phase      `json:"phase"`
	Round          int               `json:"round"`
	MaxRounds      int               `json:"maxRounds"`
	PhaseSeq       int64             `json:"phaseSeq"`
	PhaseEndsAt    *time.Time        `json:"phaseEndsAt,omitempty"`
	CompletedTasks int               `json:"completedTasks"`
	SabotagedTasks int               `json:"sabotagedTasks"`
	Winner         models.Winner     `json:"winner,omitempty"`
	Votes          map[string]string `json:"votes,omitempty"`
	MyAbilities    []models.Ability  `json:"myAbilities,omitempty"`
	MyTask         models.TaskType   `json:"myTask,omitempty"`
	KnownInnocent  string            `json:"knownInnocent,omitempty"`
}

// RoomView is the snapshot pushed to and fetched by clients.
type RoomView struct {
	ID           uuid.UUID         `json:"id"`
	Code         string            `json:"code"`
	Name         string            `json:"name"`
	HostID       string            `json:"hostId"`
	Status       models.RoomStatus `json:"status"`
	TraitorCount int               `json:"traitorCount"`
	HeroCount    int               `json:"heroCount"`
	Version      int64             `json:"version"`
	CreatedAt    time.Time         `json:"createdAt"`
	ViewerID     string            `json:"viewerId,omitempty"`
	Players      []PlayerView      `json:"players"`
	Game         GameView          `json:"game"`
}

// NewRoomView redacts room for viewerID. Roles are visible for the viewer
// themself, for eliminated players and for everyone once the game ended.
func NewRoomView(room *models.Room, players []*models.Player, viewerID string) *RoomView {
	v := &RoomView{
		ID:           room.ID,
		Code:         room.Code,
		Name:         room.Name,
		HostID:       room.HostID,
		Status:       room.Status,
		TraitorCount: room.TraitorCount,
		HeroCount:    room.HeroCount,
		Version:      room.Version,
		CreatedAt:    room.CreatedAt,
		ViewerID:     viewerID,
		Players:      make([]PlayerView, 0, len(players)),
	}

	ended := room.Status == models.RoomStatusEnded
	for _, p := range players {
		pv := PlayerView{
			ID:          p.ID,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			AvatarID:    p.AvatarID,
			Ready:       p.Ready,
			IsHost:      p.IsHost,
			IsAlive:     p.IsAlive,
		}
		if ended || !p.IsAlive || p.UserID == viewerID {
			pv.Role = p.Role
			pv.Alignment = p.Alignment
		}
		v.Players = append(v.Players, pv)
	}

	g := room.Game
	v.Game = GameView{
		Phase:          g.Phase,
		Round:          g.Round,
		MaxRounds:      g.MaxRounds,
		PhaseSeq:       g.PhaseSeq,
		CompletedTasks: g.RevealedCompleted,
		SabotagedTasks: g.RevealedSabotaged,
		Winner:         g.Winner,
		MyTask:         g.TaskAttempts[viewerID],
		KnownInnocent:  g.KnownInnocent[viewerID],
	}
	if ended {
		v.Game.CompletedTasks = g.CompletedTasks
		v.Game.SabotagedTasks = g.SabotagedTasks
	}
	if !g.PhaseEndsAt.IsZero() {
		endsAt := g.PhaseEndsAt
		v.Game.PhaseEndsAt = &endsAt
	}
	if len(g.Votes) > 0 {
		v.Game.Votes = make(map[string]string, len(g.Votes))
		for voter, target := range g.Votes {
			v.Game.Votes[voter] = target
		}
	}
	if used := g.UsedAbilities[viewerID]; len(used) > 0 {
		v.Game.MyAbilities = append([]models.Ability(nil), used...)
	}
	return v
}

// Player returns the view of userID, or nil.
func (v *RoomView) Player(userID string) *PlayerView {
	for i := range v.Players {
		if v.Players[i].UserID == userID {
			return &v.Players[i]
		}
	}
	return nil
}
