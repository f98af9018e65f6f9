// internal/realtime/hub.go
package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/game"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the per-subscriber event backlog.
const DefaultBuffer = 32

// Hub fans committed events out to the connections watching each room.
// Sends never block: a subscriber whose buffer is full misses the event
// and is expected to resync from the next state snapshot.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[*Subscription]struct{}
	buffer int
	logger logrus.FieldLogger
}

var _ game.Publisher = (*Hub)(nil)

func NewHub(buffer int, logger logrus.FieldLogger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscription is one connection's feed of a room's events.
type Subscription struct {
	RoomID uuid.UUID
	UserID string

	out     chan game.Event
	hub     *Hub
	dropped atomic.Int64
	once    sync.Once
}

// Events is closed when the subscription is closed.
func (s *Subscription) Events() <-chan game.Event { return s.out }

// Dropped reports how many events did not fit in the buffer.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close unsubscribes; it is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Subscribe registers userID for roomID's events.
func (h *Hub) Subscribe(roomID uuid.UUID, userID string) *Subscription {
	sub := &Subscription{
		RoomID: roomID,
		UserID: userID,
		out:    make(chan game.Event, h.buffer),
		hub:    h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.rooms[roomID] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.rooms[sub.RoomID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.rooms, sub.RoomID)
		}
	}
	close(sub.out)
}

// Publish delivers ev to every subscriber of its room. Events with an
// Audience only go to that user.
func (h *Hub) Publish(ctx context.Context, ev game.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.rooms[ev.RoomID] {
		if ev.Audience != "" && ev.Audience != sub.UserID {
			continue
		}
		select {
		case sub.out <- ev:
		default:
			sub.dropped.Add(1)
			h.logger.WithFields(logrus.Fields{
				"room":  ev.RoomID,
				"user":  sub.UserID,
				"event": ev.Type,
			}).Debug("subscriber buffer full, dropping event")
		}
	}
}

// Count returns the number of live subscriptions for roomID.
func (h *Hub) Count(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
