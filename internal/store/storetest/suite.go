// Package storetest holds the behaviour every store.Store must share.
// Adapters run it from their own tests with a factory for a fresh store.
package storetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/models"
	"github.com/jason-s-yu/heist/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run executes the shared store tests against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"CodeReuseAfterEnd", testCodeReuseAfterEnd},
		{"PatchCompareAndSwap", testPatchCompareAndSwap},
		{"PlayersUpsertInJoinOrder", testPlayersUpsert},
		{"MessagesOrdered", testMessagesOrdered},
		{"ReturnsCopies", testReturnsCopies},
		{"NotFound", testNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tc.fn(t, s)
		})
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// randomCode keeps runs against a shared database from colliding.
func randomCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

func newRoom(code string) (*models.Room, *models.Player) {
	ts := now()
	room := &models.Room{
		ID:           uuid.New(),
		Code:         code,
		Name:         "Heist A",
		HostID:       "host-" + uuid.NewString(),
		TraitorCount: 1,
		HeroCount:    1,
		Status:       models.RoomStatusLobby,
		CreatedAt:    ts,
		UpdatedAt:    ts,
		Version:      1,
	}
	host := newPlayer(room, room.HostID, "Host")
	host.IsHost = true
	host.Ready = true
	return room, host
}

func newPlayer(room *models.Room, userID, name string) *models.Player {
	return &models.Player{
		ID:          uuid.New(),
		RoomID:      room.ID,
		UserID:      userID,
		DisplayName: name,
		AvatarID:    1,
		IsAlive:     true,
		JoinedAt:    now(),
	}
}

func statusPtr(s models.RoomStatus) *models.RoomStatus { return &s }

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	room, host := newRoom(randomCode())
	require.NoError(t, s.CreateRoom(ctx, room, host))

	byID, err := s.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Code, byID.Code)
	assert.Equal(t, room.Name, byID.Name)
	assert.Equal(t, models.RoomStatusLobby, byID.Status)
	assert.Equal(t, int64(1), byID.Version)

	byCode, err := s.GetRoomByCode(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, room.ID, byCode.ID)

	inUse, err := s.CodeInUse(ctx, room.Code)
	require.NoError(t, err)
	assert.True(t, inUse)

	players, err := s.ListPlayers(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, host.UserID, players[0].UserID)
	assert.True(t, players[0].IsHost)
	assert.True(t, players[0].Ready)

	active, err := s.ListActiveRooms(ctx)
	require.NoError(t, err)
	found := false
	for _, r := range active {
		if r.ID == room.ID {
			found = true
		}
	}
	assert.True(t, found, "new room should be active")
}

func testCodeReuseAfterEnd(t *testing.T, s store.Store) {
	ctx := context.Background()
	code := randomCode()
	first, host := newRoom(code)
	require.NoError(t, s.CreateRoom(ctx, first, host))

	second, host2 := newRoom(code)
	err := s.CreateRoom(ctx, second, host2)
	require.ErrorIs(t, err, models.ErrCodeTaken)
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = s.PatchRoom(ctx, first.ID, 1, models.RoomPatch{Status: statusPtr(models.RoomStatusEnded), UpdatedAt: now()})
	require.NoError(t, err)

	// An ended room is still found by code until the code is reused.
	ended, err := s.GetRoomByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, first.ID, ended.ID)
	assert.Equal(t, models.RoomStatusEnded, ended.Status)

	inUse, err := s.CodeInUse(ctx, code)
	require.NoError(t, err)
	assert.False(t, inUse)

	require.NoError(t, s.CreateRoom(ctx, second, host2))
	got, err := s.GetRoomByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	active, err := s.ListActiveRooms(ctx)
	require.NoError(t, err)
	for _, r := range active {
		assert.NotEqual(t, first.ID, r.ID, "ended room listed as active")
	}
}

func testPatchCompareAndSwap(t *testing.T, s store.Store) {
	ctx := context.Background()
	room, host := newRoom(randomCode())
	require.NoError(t, s.CreateRoom(ctx, room, host))

	game := models.GameState{
		Phase:     models.PhaseNight,
		Round:     1,
		MaxRounds: 3,
		PhaseSeq:  1,
		Votes:     map[string]string{"a": "b"},
	}
	updated, err := s.PatchRoom(ctx, room.ID, 1, models.RoomPatch{
		Status: statusPtr(models.RoomStatusPlaying),
		Game:   &game,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, models.RoomStatusPlaying, updated.Status)
	assert.Equal(t, models.PhaseNight, updated.Game.Phase)

	_, err = s.PatchRoom(ctx, room.ID, 1, models.RoomPatch{Game: &game})
	assert.ErrorIs(t, err, models.ErrVersionConflict)

	_, err = s.PatchRoom(ctx, room.ID, 2, models.RoomPatch{Status: statusPtr(models.RoomStatusLobby)})
	assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)

	got, err := s.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version, "failed patches must not bump the version")
	assert.Equal(t, models.RoomStatusPlaying, got.Status)
	assert.Equal(t, "b", got.Game.Votes["a"])
}

func testPlayersUpsert(t *testing.T, s store.Store) {
	ctx := context.Background()
	room, host := newRoom(randomCode())
	require.NoError(t, s.CreateRoom(ctx, room, host))

	alice := newPlayer(room, "alice", "Alice")
	bob := newPlayer(room, "bob", "Bob")
	_, err := s.PatchRoom(ctx, room.ID, 1, models.RoomPatch{Players: []*models.Player{alice, bob}})
	require.NoError(t, err)

	alice.Ready = true
	alice.AvatarID = 7
	_, err = s.PatchRoom(ctx, room.ID, 2, models.RoomPatch{Players: []*models.Player{alice}})
	require.NoError(t, err)

	players, err := s.ListPlayers(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, players, 3)
	assert.Equal(t, []string{host.UserID, "alice", "bob"}, []string{players[0].UserID, players[1].UserID, players[2].UserID})
	assert.True(t, players[1].Ready)
	assert.Equal(t, 7, players[1].AvatarID)

	dup := newPlayer(room, "alice", "Alice again")
	_, err = s.PatchRoom(ctx, room.ID, 3, models.RoomPatch{Players: []*models.Player{dup}})
	assert.ErrorIs(t, err, models.ErrConflict)

	players, err = s.ListPlayers(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, players, 3)
}

func testMessagesOrdered(t *testing.T, s store.Store) {
	ctx := context.Background()
	room, host := newRoom(randomCode())
	require.NoError(t, s.CreateRoom(ctx, room, host))

	base := now()
	msgs := []*models.Message{
		{RoomID: room.ID, SenderID: "a", SenderName: "A", Content: "second", Timestamp: base.Add(time.Second)},
		{RoomID: room.ID, SenderID: "b", SenderName: "B", Content: "first", Timestamp: base},
		{RoomID: room.ID, SenderID: models.SystemSenderID, SenderName: "System", Content: "third", Timestamp: base.Add(time.Second), IsSystem: true},
	}
	var lastSeq int64
	for _, m := range msgs {
		require.NoError(t, s.AppendMessage(ctx, m))
		assert.Greater(t, m.Seq, lastSeq)
		assert.NotEqual(t, uuid.Nil, m.ID)
		lastSeq = m.Seq
	}

	got, err := s.ListMessages(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "second", got[1].Content)
	assert.Equal(t, "third", got[2].Content)
	assert.True(t, got[2].IsSystem)
}

func testReturnsCopies(t *testing.T, s store.Store) {
	ctx := context.Background()
	room, host := newRoom(randomCode())
	require.NoError(t, s.CreateRoom(ctx, room, host))
	room.Name = "mutated after create"

	got, err := s.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Heist A", got.Name)

	got.Name = "mutated after get"
	got.Game.Votes = map[string]string{"x": "y"}
	again, err := s.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Heist A", again.Name)
	assert.Empty(t, again.Game.Votes)

	players, err := s.ListPlayers(ctx, room.ID)
	require.NoError(t, err)
	players[0].Ready = false
	players, err = s.ListPlayers(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, players[0].Ready)
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	missing := uuid.New()

	_, err := s.GetRoomByID(ctx, missing)
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
	_, err = s.GetRoomByCode(ctx, "ZZZZZ9")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.PatchRoom(ctx, missing, 1, models.RoomPatch{})
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
	_, err = s.ListPlayers(ctx, missing)
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
	err = s.AppendMessage(ctx, &models.Message{RoomID: missing, Content: "hi", Timestamp: now()})
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}
