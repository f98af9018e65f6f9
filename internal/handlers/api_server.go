// internal/handlers/api_server.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/auth"
	"github.com/jason-s-yu/heist/internal/game"
	"github.com/jason-s-yu/heist/internal/middleware"
	"github.com/jason-s-yu/heist/internal/models"
	"github.com/jason-s-yu/heist/internal/realtime"
	"github.com/sirupsen/logrus"
)

var errUnauthorized = errors.New("missing or invalid auth token")

// API serves the room endpoints over a game.Service.
type API struct {
	svc    *game.Service
	hub    *realtime.Hub
	issuer *auth.Issuer
	logger logrus.FieldLogger
}

func NewAPI(svc *game.Service, hub *realtime.Hub, issuer *auth.Issuer, logger logrus.FieldLogger) *API {
	return &API{svc: svc, hub: hub, issuer: issuer, logger: logger}
}

// Routes returns the full handler tree wrapped in request logging.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/guest", a.GuestHandler)

	mux.HandleFunc("POST /rooms", a.CreateRoomHandler)
	mux.HandleFunc("GET /rooms/{id}", a.GetRoomHandler)
	mux.HandleFunc("GET /codes/{code}", a.GetRoomByCodeHandler)
	mux.HandleFunc("POST /codes/{code}/join", a.JoinRoomHandler)
	mux.HandleFunc("GET /rooms/{id}/players", a.ListPlayersHandler)
	mux.HandleFunc("POST /rooms/{id}/ready", a.ReadyHandler)
	mux.HandleFunc("POST /rooms/{id}/start", a.StartGameHandler)
	mux.HandleFunc("POST /rooms/{id}/advance", a.AdvancePhaseHandler)
	mux.HandleFunc("POST /rooms/{id}/actions", a.ActionHandler)
	mux.HandleFunc("GET /rooms/{id}/messages", a.ListMessagesHandler)
	mux.HandleFunc("POST /rooms/{id}/messages", a.PostMessageHandler)
	mux.HandleFunc("GET /rooms/{id}/ws", a.RoomWSHandler)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return middleware.LogMiddleware(a.logger)(mux)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errorStatus maps domain error kinds to HTTP statuses and stable codes.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrAbilityAlreadyUsed):
		return http.StatusConflict, "ability_already_used"
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, models.ErrPreconditionFailed):
		return http.StatusPreconditionFailed, "precondition_failed"
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, models.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable, "code_space_exhausted"
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).WithError(err).Error("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// decodeBody decodes an optional JSON body into v.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return models.ErrInvalidInput
	}
	return nil
}

// identify returns the caller's identity from their session token.
func (a *API) identify(r *http.Request) (*auth.Identity, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return nil, errUnauthorized
	}
	id, err := a.issuer.Authenticate(token)
	if err != nil {
		return nil, errUnauthorized
	}
	return id, nil
}

// viewerID is the caller's user id, or "" for anonymous reads.
func (a *API) viewerID(r *http.Request) string {
	if id, err := a.identify(r); err == nil {
		return id.UserID
	}
	return ""
}

func roomID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, models.ErrRoomNotFound
	}
	return id, nil
}
