package game

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/models"
	"github.com/jason-s-yu/heist/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPublisher collects events instead of sending them anywhere.
type mockPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (mp *mockPublisher) Publish(ctx context.Context, ev Event) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.events = append(mp.events, ev)
}

func (mp *mockPublisher) ofType(typ EventType) []Event {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	var out []Event
	for _, ev := range mp.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestService(t *testing.T, rules Rules, opts ...Option) (*Service, *mockPublisher) {
	t.Helper()
	pub := &mockPublisher{}
	opts = append([]Option{WithRand(rand.New(rand.NewSource(42))), WithPublisher(pub)}, opts...)
	svc, err := NewService(store.NewMemoryStore(), rules, testLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, pub
}

// setupLobby creates "Heist A" hosted by "host" plus n-1 ready joiners p1..p(n-1).
func setupLobby(t *testing.T, svc *Service, n, traitors, heroes int) *models.Room {
	t.Helper()
	ctx := context.Background()
	room, _, err := svc.CreateRoom(ctx, CreateRoomParams{
		Name:         "Heist A",
		HostID:       "host",
		HostName:     "Hana",
		TraitorCount: traitors,
		HeroCount:    heroes,
	})
	require.NoError(t, err)
	for i := 1; i < n; i++ {
		id := fmt.Sprintf("p%d", i)
		_, err := svc.JoinRoom(ctx, room.Code, id, fmt.Sprintf("Player %d", i), 0)
		require.NoError(t, err)
		_, err = svc.SetReady(ctx, room.ID, id, true)
		require.NoError(t, err)
	}
	return room
}

// byRole maps each role to the user ids holding it.
func byRole(t *testing.T, svc *Service, roomID uuid.UUID) map[models.Role][]string {
	t.Helper()
	players, err := svc.ListPlayers(context.Background(), roomID)
	require.NoError(t, err)
	out := make(map[models.Role][]string)
	for _, p := range players {
		out[p.Role] = append(out[p.Role], p.UserID)
	}
	return out
}

func TestCreateAndJoinRoom(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t, manualRules())

	room, host, err := svc.CreateRoom(ctx, CreateRoomParams{Name: "Heist A", HostID: "host", HostName: "Hana", TraitorCount: 1, HeroCount: 1})
	require.NoError(t, err)
	assert.Len(t, room.Code, RoomCodeLength)
	assert.True(t, ValidCode(room.Code))
	assert.Equal(t, models.RoomStatusLobby, room.Status)
	assert.True(t, host.IsHost)
	assert.True(t, host.Ready)
	assert.GreaterOrEqual(t, host.AvatarID, 1)

	p, err := svc.JoinRoom(ctx, room.Code, "bob", "Bob", 4)
	require.NoError(t, err)
	assert.False(t, p.Ready)
	assert.False(t, p.IsHost)
	assert.Equal(t, 4, p.AvatarID)

	// Joining again hands back the same player.
	again, err := svc.JoinRoom(ctx, room.Code, "bob", "Bobby", 9)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, "Bob", again.DisplayName)

	players, err := svc.ListPlayers(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, []string{"host", "bob"}, []string{players[0].UserID, players[1].UserID})

	// Lower-case codes are accepted.
	byCode, err := svc.GetRoomByCode(ctx, "  "+strings.ToLower(room.Code)+" ")
	require.NoError(t, err)
	assert.Equal(t, room.ID, byCode.ID)

	_, err = svc.JoinRoom(ctx, "ZZZZZZ", "carol", "Carol", 0)
	assert.ErrorIs(t, err, models.ErrRoomNotFound)

	assert.Len(t, pub.ofType(EventRoomCreated), 1)
	assert.Len(t, pub.ofType(EventPlayerJoined), 1)

	msgs, err := svc.ListMessages(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Bob joined the crew.", msgs[0].Content)
	assert.True(t, msgs[0].IsSystem)
}

func TestCreateRoomValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, manualRules())

	_, _, err := svc.CreateRoom(ctx, CreateRoomParams{Name: "  ", HostID: "host"})
	assert.ErrorIs(t, err, models.ErrInvalidName)
	_, _, err = svc.CreateRoom(ctx, CreateRoomParams{Name: "Heist A"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, _, err = svc.CreateRoom(ctx, CreateRoomParams{Name: "Heist A", HostID: "host", TraitorCount: 5, HeroCount: 4})
	assert.ErrorIs(t, err, models.ErrInvalidRoleDistribution)
	_, _, err = svc.CreateRoom(ctx, CreateRoomParams{Name: "Heist A", HostID: "host", AvatarID: 40})
	assert.ErrorIs(t, err, models.ErrInvalidAvatar)
}

func TestCreateRoomCodeSpaceExhausted(t *testing.T) {
	ctx := context.Background()
	gen := &CodeGenerator{Alphabet: RoomCodeChars, Length: RoomCodeLength, MaxAttempts: 5, Rand: zeroReader{}}
	svc, _ := newTestService(t, manualRules(), WithCodeGenerator(gen))

	room, _, err := svc.CreateRoom(ctx, CreateRoomParams{Name: "First", HostID: "a"})
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", room.Code)

	_, _, err = svc.CreateRoom(ctx, CreateRoomParams{Name: "Second", HostID: "b"})
	assert.ErrorIs(t, err, models.ErrCodeSpaceExhausted)
}

func TestJoinRoomLimits(t *testing.T) {
	ctx := context.Background()
	rules := manualRules()
	rules.MaxPlayers = 3
	svc, _ := newTestService(t, rules)

	room := setupLobby(t, svc, 3, 1, 0)
	_, err := svc.JoinRoom(ctx, room.Code, "late", "Late", 0)
	assert.ErrorIs(t, err, models.ErrRoomFull)

	_, err = svc.StartGame(ctx, room.ID, "host")
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, room.Code, "later", "Later", 0)
	assert.ErrorIs(t, err, models.ErrGameAlreadyStarted)

	// Existing members may still "join" to fetch their record.
	p, err := svc.JoinRoom(ctx, room.Code, "p1", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.UserID)

	_, err = svc.JoinRoom(ctx, room.Code, "", "Nobody", 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	rules := manualRules()
	rules.MaxPlayers = 4
	svc, _ := newTestService(t, rules)

	room, _, err := svc.CreateRoom(ctx, CreateRoomParams{Name: "Heist A", HostID: "host"})
	require.NoError(t, err)

	const joiners = 5
	var wg sync.WaitGroup
	errs := make([]error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.JoinRoom(ctx, room.Code, fmt.Sprintf("u%d", i), fmt.Sprintf("User %d", i), 0)
		}(i)
	}
	wg.Wait()

	ok, full := 0, 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		if assert.ErrorIs(t, err, models.ErrRoomFull) {
			full++
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 2, full)

	players, err := svc.ListPlayers(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, players, 4)

	avatars := make(map[int]bool)
	for _, p := range players {
		assert.False(t, avatars[p.AvatarID], "avatar %d handed out twice", p.AvatarID)
		avatars[p.AvatarID] = true
	}
}

func TestStartGamePreconditions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, manualRules())

	room := setupLobby(t, svc, 3, 1, 1)
	_, err := svc.SetReady(ctx, room.ID, "p2", false)
	require.NoError(t, err)

	_, err = svc.StartGame(ctx, room.ID, "p1")
	assert.ErrorIs(t, err, models.ErrNotHost)

	_, err = svc.StartGame(ctx, room.ID, "host")
	assert.ErrorIs(t, err, models.ErrPlayersNotReady)
	assert.ErrorIs(t, err, models.ErrPreconditionFailed)

	_, err = svc.SetReady(ctx, room.ID, "stranger", true)
	assert.ErrorIs(t, err, models.ErrPlayerNotFound)

	_, err = svc.SetReady(ctx, room.ID, "p2", true)
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, room.ID, "host")
	require.NoError(t, err)

	_, err = svc.StartGame(ctx, room.ID, "host")
	assert.ErrorIs(t, err, models.ErrGameAlreadyStarted)
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = svc.SetReady(ctx, room.ID, "p1", false)
	assert.ErrorIs(t, err, models.ErrRoomNotInLobby)
}

func TestStartGameRejectsTooFewPlayers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, manualRules())

	room := setupLobby(t, svc, 2, 2, 1)
	_, err := svc.StartGame(ctx, room.ID, "host")
	assert.ErrorIs(t, err, models.ErrInvalidRoleDistribution)

	got, err := svc.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusLobby, got.Status)
}

func TestFourPlayerStart(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t, DefaultRules())

	room := setupLobby(t, svc, 4, 1, 1)
	started, err := svc.StartGame(ctx, room.ID, "host")
	require.NoError(t, err)

	assert.Equal(t, models.RoomStatusPlaying, started.Status)
	g := started.Game
	assert.Equal(t, models.PhaseNight, g.Phase)
	assert.Equal(t, 1, g.Round)
	assert.Equal(t, 3, g.MaxRounds)
	assert.Equal(t, 0, g.CompletedTasks)
	assert.Equal(t, 0, g.SabotagedTasks)
	assert.False(t, g.PhaseEndsAt.IsZero())

	roles := byRole(t, svc, room.ID)
	assert.Len(t, roles[models.RoleInfiltrator], 1)
	assert.Len(t, roles[models.RoleMasterThief], 1)
	assert.Len(t, roles[models.RoleCivilian], 2)

	seq, at, ok := svc.Scheduler().Pending(room.ID)
	require.True(t, ok, "night timer should be armed")
	assert.Equal(t, g.PhaseSeq, seq)
	assert.True(t, at.Equal(g.PhaseEndsAt))

	require.Len(t, pub.ofType(EventGameStarted), 1)
	for _, ev := range pub.ofType(EventGameStarted) {
		assert.NotContains(t, ev.Payload, "roles")
	}
}

func TestThreeCyclesWithoutWinEndAtRoundLimit(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t, manualRules())
	room := setupLobby(t, svc, 4, 1, 1)
	_, err := svc.StartGame(ctx, room.ID, "host")
	require.NoError(t, err)

	var last *models.Room
	for i := 0; i < 9; i++ {
		last, err = svc.AdvancePhase(ctx, room.ID, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, models.PhaseEnd, last.Game.Phase)
	assert.Equal(t, 3, last.Game.Round)
	assert.Equal(t, models.RoomStatusEnded, last.Status)
	assert.Equal(t, models.WinnerTraitors, last.Game.Winner)

	_, err = svc.AdvancePhase(ctx, room.ID, 0)
	assert.ErrorIs(t, err, models.ErrGameNotInProgress)

	ended := pub.ofType(EventGameEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, models.WinnerTraitors, ended[0].Payload["winner"])

	// Once ended, the code is free for a new room.
	inUse, err := svc.store.CodeInUse(ctx, room.Code)
	require.NoError(t, err)
	assert.False(t, inUse)
}

func TestStaleAdvanceIsIgnored(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, manualRules())
	room := setupLobby(t, svc, 2, 1, 0)
	started, err := svc.StartGame(ctx, room.ID, "host")
	require.NoError(t, err)

	seq := started.Game.PhaseSeq
	day, err := svc.AdvancePhase(ctx, room.ID, seq)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseDay, day.Game.Phase)

	again, err := svc.AdvancePhase(ctx, room.ID, seq)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseDay, again.Game.Phase)
	assert.Equal(t, day.Version, again.Version)
}

func TestTaskThresholdWinsMidRound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, manualRules())
	room := setupLobby(t, svc, 5, 1, 1)
	_, err := svc.StartGame(ctx, room.ID, "host")
	require.NoError(t, err)

	_, err = svc.AdvancePhase(ctx, room.ID, 0) // day
	require.NoError(t, err)
	_, err = svc.AdvancePhase(ctx, room.ID, 0) // task
	require.NoError(t, err)

	roles := byRole(t, svc, room.ID)
	crew := append(append([]string{}, roles[models.RoleCivilian]...), roles[models.RoleMasterThief]...)
	require.Len(t, crew, 4)

	for i := 0; i < 2; i++ {
		res, err := svc.PostAction(ctx, room.ID, crew[i], task(true))
		require.NoError(t, err)
		assert.Equal(t, models.PhaseTask, res.Phase)
	}
	res, err := svc.PostAction(ctx, room.ID, crew[2], task(true))
	require.NoError(t, err)
	assert.Equal(t, models.PhaseEnd, res.Phase)
	assert.Equal(t, models.WinnerHeroes, res.Winner)

	got, err := svc.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusEnded, got.Status)
	assert.Equal(t, 3, got.Game.CompletedTasks)
	assert.Equal(t, 1, got.Game.Round)

	_, err = svc.PostAction(ctx, room.ID, crew[3], task(true))
	assert.ErrorIs(t, err, models.ErrGameNotInProgress)
}

func TestSabotageThreshold(t *testing.T) {
	ctx := context.Background()
	rules := manualRules()
	rules.SabotageWinThreshold = 1
	svc, _ := newTestService(t, rules)
	room := setupLobby(t, svc, 3, 1, 0)
	_, err := svc.StartGame(ctx, room.ID, "host")
	require.NoError(t, err)

	roles := byRole(t, svc, room.ID)
	_, err = svc.PostAction(ctx, room.ID, roles[models.RoleInfiltrator][0], ability(models.AbilitySabotage, ""))
	require.NoError(t, err)
	_, err = svc.AdvancePhase(ctx, room.ID, 0)
	require.NoError(t, err)
	_, err = svc.AdvancePhase(ctx, room.ID, 0)
	require.NoError(t, err)

	res, err := svc.PostAction(ctx, room.ID, roles[models.RoleCivilian][0], task(true))
	require.NoError(t, err)
	assert.Equal(t, TaskOutcomeSabotaged, res.Outcome)
	assert.Equal(t, models.WinnerTraitors, res.Winner)
}

func TestVoteOutAllTraitors(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t, manualRules())
	room := setupLobby(t, svc, 4, 1, 1)
	_, err := svc.StartGame(ctx, room.ID, "host")
	require.NoError(t, err)
	_, err = svc.AdvancePhase(ctx, room.ID, 0)
	require.NoError(t, err)

	traitor := byRole(t, svc, room.ID)[models.RoleInfiltrator][0]
	players, err := svc.ListPlayers(ctx, room.ID)
	require.NoError(t, err)
	for _, p := range players {
		if p.UserID == traitor {
			continue
		}
		_, err := svc.PostAction(ctx, room.ID, p.UserID, vote(traitor))
		require.NoError(t, err)
	}
	assert.Len(t, pub.ofType(EventVoteCast), 3)

	end, err := svc.AdvancePhase(ctx, room.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.WinnerHeroes, end.Game.Winner)
	assert.Equal(t, models.PhaseEnd, end.Game.Phase)

	elim := pub.ofType(EventPlayerEliminated)
	require.Len(t, elim, 1)
	assert.Equal(t, traitor, elim[0].Payload["userId"])

	msgs, err := svc.ListMessages(ctx, room.ID)
	require.NoError(t, err)
	var contents []string
	for _, m := range msgs {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "The heroes win: every traitor has been caught.")
}

func TestAbilityOncePerGame(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, manualRules())
	room := setupLobby(t, svc, 4, 1, 2)
	_, err := svc.StartGame(ctx, room.ID, "host")
	require.NoError(t, err)

	roles := byRole(t, svc, room.ID)
	hacker := roles[models.RoleHacker][0]
	traitor := roles[models.RoleInfiltrator][0]

	res, err := svc.PostAction(ctx, room.ID, hacker, ability(models.AbilityInvestigate, traitor))
	require.NoError(t, err)
	assert.Equal(t, models.AlignmentTraitor, res.Alignment)

	for i := 0; i < 3; i++ {
		_, err = svc.AdvancePhase(ctx, room.ID, 0)
		require.NoError(t, err)
	}
	_, err = svc.PostAction(ctx, room.ID, hacker, ability(models.AbilityInvestigate, traitor))
	assert.ErrorIs(t, err, models.ErrAbilityAlreadyUsed)

	view, err := svc.Snapshot(ctx, room.ID, hacker)
	require.NoError(t, err)
	assert.Equal(t, []models.Ability{models.AbilityInvestigate}, view.Game.MyAbilities)
}

func TestSnapshotRedactsRoles(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, manualRules())
	room := setupLobby(t, svc, 4, 1, 1)
	_, err := svc.StartGame(ctx, room.ID, "host")
	require.NoError(t, err)

	view, err := svc.Snapshot(ctx, room.ID, "p1")
	require.NoError(t, err)
	for _, p := range view.Players {
		if p.UserID == "p1" {
			assert.NotEmpty(t, p.Role)
		} else {
			assert.Empty(t, p.Role, "role of %s leaked", p.UserID)
			assert.Empty(t, p.Alignment)
		}
	}

	for i := 0; i < 9; i++ {
		if _, err := svc.AdvancePhase(ctx, room.ID, 0); err != nil {
			break
		}
	}
	view, err = svc.Snapshot(ctx, room.ID, "p1")
	require.NoError(t, err)
	require.Equal(t, models.RoomStatusEnded, view.Status)
	for _, p := range view.Players {
		assert.NotEmpty(t, p.Role, "roles are revealed once the game ends")
	}
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t, manualRules())
	room := setupLobby(t, svc, 2, 0, 0)

	msg, err := svc.PostMessage(ctx, room.ID, "p1", "", "  anyone got a crowbar? ", false)
	require.NoError(t, err)
	assert.Equal(t, "Player 1", msg.SenderName)
	assert.Equal(t, "anyone got a crowbar?", msg.Content)
	assert.False(t, msg.IsSystem)

	_, err = svc.PostMessage(ctx, room.ID, "stranger", "Eve", "hi", false)
	assert.ErrorIs(t, err, models.ErrPlayerNotFound)

	_, err = svc.PostMessage(ctx, room.ID, "p1", "", "   ", false)
	assert.ErrorIs(t, err, models.ErrInvalidMessage)

	long := make([]rune, 501)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.PostMessage(ctx, room.ID, "p1", "", string(long), false)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	sys, err := svc.PostMessage(ctx, room.ID, "", "", "The vault is open.", true)
	require.NoError(t, err)
	assert.Equal(t, models.SystemSenderID, sys.SenderID)

	msgs, err := svc.ListMessages(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "Player 1 joined the crew.", msgs[0].Content)
	assert.Equal(t, "anyone got a crowbar?", msgs[1].Content)
	assert.Equal(t, "The vault is open.", msgs[2].Content)
	for i := 1; i < len(msgs); i++ {
		assert.Greater(t, msgs[i].Seq, msgs[i-1].Seq)
	}

	assert.Len(t, pub.ofType(EventMessagePosted), 3)
}

func TestReapIdleLobbies(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)}
	svc, pub := newTestService(t, manualRules(), WithClock(clock.Now))

	idle, _, err := svc.CreateRoom(ctx, CreateRoomParams{Name: "Idle", HostID: "a"})
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)
	busy, _, err := svc.CreateRoom(ctx, CreateRoomParams{Name: "Busy", HostID: "b"})
	require.NoError(t, err)
	clock.Advance(11 * time.Minute)

	n, err := svc.ReapIdle(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.GetRoomByID(ctx, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusEnded, got.Status)
	got, err = svc.GetRoomByID(ctx, busy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusLobby, got.Status)

	_, err = svc.JoinRoom(ctx, idle.Code, "c", "Carol", 0)
	assert.ErrorIs(t, err, models.ErrGameAlreadyStarted)
	assert.Len(t, pub.ofType(EventRoomAbandoned), 1)
}

func TestPhaseTimersDriveTheGame(t *testing.T) {
	ctx := context.Background()
	rules := DefaultRules()
	rules.NightDuration = 20 * time.Millisecond
	rules.DayDuration = 20 * time.Millisecond
	rules.TaskDuration = 20 * time.Millisecond
	rules.MaxRounds = 1
	svc, pub := newTestService(t, rules)

	room := setupLobby(t, svc, 3, 1, 0)
	_, err := svc.StartGame(ctx, room.ID, "host")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r, err := svc.GetRoomByID(ctx, room.ID)
		return err == nil && r.Status == models.RoomStatusEnded
	}, 3*time.Second, 10*time.Millisecond)

	r, err := svc.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseEnd, r.Game.Phase)
	assert.Equal(t, 1, r.Game.Round)
	assert.Len(t, pub.ofType(EventGameEnded), 1)

	_, _, ok := svc.Scheduler().Pending(room.ID)
	assert.False(t, ok, "no timer should remain after the game ends")
}

func TestResumeTimers(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	rules := DefaultRules()

	first, err := NewService(st, rules, testLogger())
	require.NoError(t, err)
	room := setupLobby(t, first, 2, 1, 0)
	started, err := first.StartGame(ctx, room.ID, "host")
	require.NoError(t, err)
	first.Close()

	second, err := NewService(st, rules, testLogger())
	require.NoError(t, err)
	defer second.Close()

	n, err := second.ResumeTimers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	seq, _, ok := second.Scheduler().Pending(room.ID)
	require.True(t, ok)
	assert.Equal(t, started.Game.PhaseSeq, seq)
}
