// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/auth"
	"github.com/jason-s-yu/heist/internal/middleware"
	"github.com/jason-s-yu/heist/internal/models"
	"github.com/jason-s-yu/heist/internal/realtime"
	"github.com/sirupsen/logrus"
)

// RoomWSHandler streams a room's events and per-viewer state to one of
// its players and accepts chat, ready and action frames back.
func (a *API) RoomWSHandler(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{realtime.Subprotocol},
		OriginPatterns: []string{"*"}, // Adjust in production
	})
	if err != nil {
		a.logger.WithError(err).Warn("websocket accept error")
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != realtime.Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the heist subprotocol")
		return
	}

	id, err := a.identify(r)
	if err != nil {
		c.Close(InvalidAuthTokenError, "invalid auth token")
		return
	}
	rid, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		c.Close(InvalidRoomIDError, "invalid room id")
		return
	}
	view, err := a.svc.Snapshot(r.Context(), rid, id.UserID)
	if err != nil {
		c.Close(InvalidRoomIDError, "room does not exist")
		return
	}
	if view.Player(id.UserID) == nil {
		c.Close(InvalidUserIDError, "not a member of this room")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := a.hub.Subscribe(rid, id.UserID)
	defer sub.Close()

	logger := a.logger.WithFields(logrus.Fields{"room": rid, "user": id.UserID})
	middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

	out := make(chan realtime.ServerFrame, 16)
	out <- realtime.ServerFrame{Type: realtime.FrameState, State: view}

	go a.writePump(ctx, cancel, c, sub, out, logger)
	err = a.readPump(ctx, c, rid, id, out, logger)

	if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
		err = nil
	}
	middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
	c.Close(websocket.StatusNormalClosure, "")
}

// readPump handles incoming frames until the socket closes.
func (a *API) readPump(ctx context.Context, c *websocket.Conn, rid uuid.UUID, id *auth.Identity, out chan<- realtime.ServerFrame, logger logrus.FieldLogger) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			logger.Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var frame realtime.ClientFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			logger.WithError(err).Warn("invalid json from client")
			send(out, realtime.ServerFrame{Type: realtime.FrameError, Error: "invalid JSON format", Code: "invalid_input"})
			continue
		}

		if err := a.handleFrame(ctx, rid, id, frame, out); err != nil {
			_, code := errorStatus(err)
			send(out, realtime.ServerFrame{Type: realtime.FrameError, Error: err.Error(), Code: code})
		}
	}
}

func (a *API) handleFrame(ctx context.Context, rid uuid.UUID, id *auth.Identity, frame realtime.ClientFrame, out chan<- realtime.ServerFrame) error {
	switch frame.Type {
	case realtime.FrameChat:
		_, err := a.svc.PostMessage(ctx, rid, id.UserID, "", frame.Content, false)
		return err
	case realtime.FrameReady:
		_, err := a.svc.SetReady(ctx, rid, id.UserID, frame.Ready)
		return err
	case realtime.FrameAction:
		if frame.Action == nil {
			return models.ErrInvalidAction
		}
		res, err := a.svc.PostAction(ctx, rid, id.UserID, *frame.Action)
		if err != nil {
			return err
		}
		send(out, realtime.ServerFrame{Type: realtime.FrameResult, Result: res})
		return nil
	}
	return models.ErrInvalidAction
}

// send queues f unless the writer is backed up; the client resyncs from
// the next state frame.
func send(out chan<- realtime.ServerFrame, f realtime.ServerFrame) {
	select {
	case out <- f:
	default:
	}
}

// writePump owns all writes to the socket. Every versioned event is
// followed by a fresh state frame for this viewer.
func (a *API) writePump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, sub *realtime.Subscription, out <-chan realtime.ServerFrame, logger logrus.FieldLogger) {
	defer cancel()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	write := func(f realtime.ServerFrame) bool {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := wsjson.Write(writeCtx, c, f); err != nil {
			logger.WithError(err).Debug("failed to write to websocket")
			return false
		}
		return true
	}

	dropped := sub.Dropped()
	for {
		select {
		case <-ctx.Done():
			return

		case f := <-out:
			if !write(f) {
				return
			}

		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if !write(realtime.ServerFrame{Type: realtime.FrameEvent, Event: &ev}) {
				return
			}
			lost := sub.Dropped() != dropped
			dropped = sub.Dropped()
			if ev.Version == 0 && !lost {
				continue
			}
			view, err := a.svc.Snapshot(ctx, sub.RoomID, sub.UserID)
			if err != nil {
				logger.WithError(err).Warn("failed to build state frame")
				continue
			}
			if !write(realtime.ServerFrame{Type: realtime.FrameState, State: view}) {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithError(err).Warn("failed to send ping, assuming disconnect")
				return
			}
		}
	}
}
