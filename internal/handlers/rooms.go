// internal/handlers/rooms.go
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/game"
	"github.com/jason-s-yu/heist/internal/models"
)

type createRoomResponse struct {
	Room   *game.RoomView `json:"room"`
	Player *models.Player `json:"player"`
}

// CreateRoomHandler creates a room hosted by the caller.
func (a *API) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	id, err := a.identify(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var params game.CreateRoomParams
	if err := decodeBody(r, &params); err != nil {
		a.writeError(w, r, err)
		return
	}
	params.HostID = id.UserID
	if params.HostName == "" {
		params.HostName = id.Name
	}

	room, host, err := a.svc.CreateRoom(r.Context(), params)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	view := game.NewRoomView(room, []*models.Player{host}, id.UserID)
	writeJSON(w, http.StatusCreated, createRoomResponse{Room: view, Player: host})
}

// GetRoomHandler returns the room as the caller may see it.
func (a *API) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	rid, err := roomID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	view, err := a.svc.Snapshot(r.Context(), rid, a.viewerID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) GetRoomByCodeHandler(w http.ResponseWriter, r *http.Request) {
	room, err := a.svc.GetRoomByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	view, err := a.svc.Snapshot(r.Context(), room.ID, a.viewerID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type joinRequest struct {
	DisplayName string `json:"displayName"`
	AvatarID    int    `json:"avatarId"`
}

// JoinRoomHandler adds the caller to the lobby behind the code.
func (a *API) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	id, err := a.identify(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req joinRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = id.Name
	}

	player, err := a.svc.JoinRoom(r.Context(), r.PathValue("code"), id.UserID, req.DisplayName, req.AvatarID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

// ListPlayersHandler returns the roster with hidden roles redacted.
func (a *API) ListPlayersHandler(w http.ResponseWriter, r *http.Request) {
	rid, err := roomID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	view, err := a.svc.Snapshot(r.Context(), rid, a.viewerID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.Players)
}

type readyRequest struct {
	Ready bool `json:"ready"`
}

func (a *API) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	id, err := a.identify(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rid, err := roomID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req readyRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	player, err := a.svc.SetReady(r.Context(), rid, id.UserID, req.Ready)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

// StartGameHandler lets the host deal roles and open night one.
func (a *API) StartGameHandler(w http.ResponseWriter, r *http.Request) {
	a.hostAction(w, r, a.svc.StartGame)
}

// AdvancePhaseHandler lets the host end the current phase early.
func (a *API) AdvancePhaseHandler(w http.ResponseWriter, r *http.Request) {
	a.hostAction(w, r, a.svc.SkipPhase)
}

func (a *API) hostAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, roomID uuid.UUID, callerID string) (*models.Room, error)) {
	id, err := a.identify(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rid, err := roomID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if _, err := fn(r.Context(), rid, id.UserID); err != nil {
		a.writeError(w, r, err)
		return
	}
	view, err := a.svc.Snapshot(r.Context(), rid, id.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
