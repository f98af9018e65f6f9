// internal/handlers/game.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/heist/internal/game"
	"github.com/jason-s-yu/heist/internal/models"
)

// ActionHandler applies a night ability, day vote or task report. The
// result, including any investigation finding, goes only to the caller.
func (a *API) ActionHandler(w http.ResponseWriter, r *http.Request) {
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
	var action game.Action
	if err := decodeBody(r, &action); err != nil {
		a.writeError(w, r, err)
		return
	}

	res, err := a.svc.PostAction(r.Context(), rid, id.UserID, action)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListMessagesHandler returns the chat log to members of the room.
func (a *API) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
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
	view, err := a.svc.Snapshot(r.Context(), rid, id.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if view.Player(id.UserID) == nil {
		a.writeError(w, r, models.ErrPlayerNotFound)
		return
	}
	msgs, err := a.svc.ListMessages(r.Context(), rid)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type postMessageRequest struct {
	Content string `json:"content"`
}

// PostMessageHandler appends a chat line from the caller.
func (a *API) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
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
	var req postMessageRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	msg, err := a.svc.PostMessage(r.Context(), rid, id.UserID, "", req.Content, false)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
