// internal/handlers/auth.go
package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/auth"
	"github.com/jason-s-yu/heist/internal/models"
)

type guestRequest struct {
	Name string `json:"name"`
}

type guestResponse struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}

// GuestHandler issues a session for a fresh guest identity and sets it as
// the auth cookie.
func (a *API) GuestHandler(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Guest"
	}
	if utf8.RuneCountInString(name) > 32 {
		a.writeError(w, r, models.ErrInvalidName)
		return
	}

	userID := uuid.NewString()
	token, err := a.issuer.CreateJWT(userID, name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	a.logger.WithField("user", userID).Info("guest session issued")
	writeJSON(w, http.StatusCreated, guestResponse{UserID: userID, Name: name, Token: token})
}
