package realtime

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(buffer int) *Hub {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewHub(buffer, logger)
}

func TestPublishReachesRoomSubscribers(t *testing.T) {
	h := newTestHub(4)
	room, other := uuid.New(), uuid.New()

	a := h.Subscribe(room, "alice")
	b := h.Subscribe(room, "bob")
	c := h.Subscribe(other, "carol")
	defer a.Close()
	defer b.Close()
	defer c.Close()
	assert.Equal(t, 2, h.Count(room))

	h.Publish(context.Background(), game.Event{Type: game.EventPhaseChanged, RoomID: room})

	for _, sub := range []*Subscription{a, b} {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, game.EventPhaseChanged, ev.Type)
		default:
			t.Fatalf("%s got nothing", sub.UserID)
		}
	}
	assert.Empty(t, c.Events())
}

func TestPrivateEventsOnlyReachAudience(t *testing.T) {
	h := newTestHub(4)
	room := uuid.New()
	hacker := h.Subscribe(room, "hacker")
	other := h.Subscribe(room, "other")
	defer hacker.Close()
	defer other.Close()

	h.Publish(context.Background(), game.Event{Type: game.EventAbilityUsed, RoomID: room, Audience: "hacker"})

	assert.Len(t, hacker.Events(), 1)
	assert.Len(t, other.Events(), 0)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := newTestHub(2)
	room := uuid.New()
	sub := h.Subscribe(room, "slow")
	defer sub.Close()

	for i := 0; i < 5; i++ {
		h.Publish(context.Background(), game.Event{Type: game.EventVoteCast, RoomID: room})
	}
	assert.Len(t, sub.Events(), 2)
	assert.Equal(t, int64(3), sub.Dropped())
}

func TestCloseUnsubscribes(t *testing.T) {
	h := newTestHub(1)
	room := uuid.New()
	sub := h.Subscribe(room, "alice")

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, h.Count(room))

	_, open := <-sub.Events()
	require.False(t, open)

	// Publishing to a room nobody watches is a no-op.
	h.Publish(context.Background(), game.Event{Type: game.EventGameEnded, RoomID: room})
}
