// internal/game/service.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/models"
	"github.com/jason-s-yu/heist/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	// maxUpdateAttempts bounds re-reads after a lost compare-and-swap.
	maxUpdateAttempts = 5
	// maxCreateAttempts bounds retries when another room grabbed the same
	// code between the availability check and the insert.
	maxCreateAttempts = 3

	maxNameLength = 32
	maxRoomName   = 64
)

// Service is the authoritative owner of room, roster, phase and chat state.
// All mutations read the room, compute on a copy and commit through the
// store's compare-and-swap patch, then publish events and re-arm timers.
type Service struct {
	store      store.Store
	rules      Rules
	logger     logrus.FieldLogger
	codes      *CodeGenerator
	sched      *Scheduler
	publishers []Publisher
	now        func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// Option configures a Service.
type Option func(*Service)

// WithRand makes role, avatar and tie-break draws reproducible.
func WithRand(rnd *rand.Rand) Option {
	return func(s *Service) { s.rnd = rnd }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithCodeGenerator(g *CodeGenerator) Option {
	return func(s *Service) { s.codes = g }
}

// WithPublisher adds receivers for committed events.
func WithPublisher(p ...Publisher) Option {
	return func(s *Service) { s.publishers = append(s.publishers, p...) }
}

// NewService wires a Service over st.
func NewService(st store.Store, rules Rules, logger logrus.FieldLogger, opts ...Option) (*Service, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	s := &Service{
		store:  st,
		rules:  rules,
		logger: logger,
		codes:  NewCodeGenerator(),
		now:    time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sched = NewScheduler(s.onPhaseTimer, logger)
	s.sched.now = s.now
	return s, nil
}

// Rules returns the rules the service was built with.
func (s *Service) Rules() Rules { return s.rules }

// Scheduler exposes the phase timers, mainly for inspection.
func (s *Service) Scheduler() *Scheduler { return s.sched }

// Close stops all phase timers.
func (s *Service) Close() {
	s.sched.Stop()
}

// newRand derives a per-operation source so tables never share one.
func (s *Service) newRand() *rand.Rand {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return rand.New(rand.NewSource(s.rnd.Int63()))
}

func (s *Service) roomLogger(roomID uuid.UUID) logrus.FieldLogger {
	return s.logger.WithField("room", roomID)
}

// update runs fn against a fresh copy of the room and commits the result.
// A lost compare-and-swap re-reads and re-runs fn.
func (s *Service) update(ctx context.Context, roomID uuid.UUID, fn func(t *table) error) (*table, error) {
	for attempt := 1; ; attempt++ {
		room, err := s.store.GetRoomByID(ctx, roomID)
		if err != nil {
			return nil, err
		}
		players, err := s.store.ListPlayers(ctx, roomID)
		if err != nil {
			return nil, err
		}

		t := newTable(room, players, s.rules, s.newRand(), s.now())
		if err := fn(t); err != nil {
			return nil, err
		}
		if !t.changed() {
			return t, nil
		}

		updated, err := s.store.PatchRoom(ctx, roomID, room.Version, t.patch())
		if errors.Is(err, models.ErrVersionConflict) && attempt < maxUpdateAttempts {
			s.roomLogger(roomID).WithField("attempt", attempt).Debug("room version moved, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		t.room = updated
		s.afterCommit(ctx, t)
		return t, nil
	}
}

// afterCommit posts the table's system notes, publishes its events and
// brings the room's phase timer in line with the committed state.
func (s *Service) afterCommit(ctx context.Context, t *table) {
	for _, note := range t.notes {
		if _, err := s.appendMessage(ctx, t.room.ID, models.SystemSenderID, "System", note, true); err != nil {
			s.roomLogger(t.room.ID).WithError(err).Warn("failed to post system message")
		}
	}
	for _, ev := range t.events {
		ev.Version = t.room.Version
		s.publish(ctx, ev)
	}
	s.syncTimer(t.room)
}

func (s *Service) publish(ctx context.Context, ev Event) {
	for _, p := range s.publishers {
		p.Publish(ctx, ev)
	}
}

func (s *Service) syncTimer(room *models.Room) {
	g := room.Game
	if room.Status == models.RoomStatusPlaying && g.Phase != models.PhaseEnd && !g.PhaseEndsAt.IsZero() {
		s.sched.Schedule(room.ID, g.PhaseSeq, g.PhaseEndsAt)
		return
	}
	s.sched.Cancel(room.ID)
}

func (s *Service) onPhaseTimer(roomID uuid.UUID, seq int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.AdvancePhase(ctx, roomID, seq); err != nil {
		entry := s.roomLogger(roomID).WithError(err).WithField("seq", seq)
		if errors.Is(err, models.ErrGameNotInProgress) {
			entry.Debug("phase timer fired for a finished game")
			return
		}
		entry.Warn("failed to advance phase on timer")
	}
}

// CreateRoomParams describes a new room and its host.
type CreateRoomParams struct {
	Name         string `json:"name"`
	HostID       string `json:"-"`
	HostName     string `json:"hostName"`
	AvatarID     int    `json:"avatarId"`
	TraitorCount int    `json:"traitorCount"`
	HeroCount    int    `json:"heroCount"`
}

func cleanName(name string, max int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > max {
		return "", models.ErrInvalidName
	}
	return name, nil
}

// CreateRoom allocates a code, persists the room in the lobby and adds
// the host as a ready player.
func (s *Service) CreateRoom(ctx context.Context, p CreateRoomParams) (*models.Room, *models.Player, error) {
	name, err := cleanName(p.Name, maxRoomName)
	if err != nil {
		return nil, nil, err
	}
	if p.HostID == "" {
		return nil, nil, fmt.Errorf("%w: missing host id", models.ErrInvalidInput)
	}
	hostName := strings.TrimSpace(p.HostName)
	if hostName == "" {
		hostName = "Host"
	}
	if hostName, err = cleanName(hostName, maxNameLength); err != nil {
		return nil, nil, err
	}
	if !ValidRoleCounts(s.rules.MaxPlayers, p.TraitorCount, p.HeroCount) {
		return nil, nil, models.ErrInvalidRoleDistribution
	}
	avatar, err := AllocateAvatar(p.AvatarID, nil, s.rules.AvatarPool, s.newRand())
	if err != nil {
		return nil, nil, err
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		code, err := s.codes.Generate(ctx, s.store.CodeInUse)
		if err != nil {
			return nil, nil, err
		}

		now := s.now()
		room := &models.Room{
			ID:           uuid.New(),
			Code:         code,
			Name:         name,
			HostID:       p.HostID,
			TraitorCount: p.TraitorCount,
			HeroCount:    p.HeroCount,
			Status:       models.RoomStatusLobby,
			CreatedAt:    now,
			UpdatedAt:    now,
			Version:      1,
			Game:         models.GameState{MaxRounds: s.rules.MaxRounds},
		}
		host := &models.Player{
			ID:          uuid.New(),
			RoomID:      room.ID,
			UserID:      p.HostID,
			DisplayName: hostName,
			AvatarID:    avatar,
			Ready:       true,
			IsHost:      true,
			IsAlive:     true,
			JoinedAt:    now,
		}

		err = s.store.CreateRoom(ctx, room, host)
		if errors.Is(err, models.ErrCodeTaken) {
			s.logger.WithField("code", code).Debug("room code taken concurrently, regenerating")
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		s.logger.WithFields(logrus.Fields{
			"room": room.ID,
			"code": room.Code,
			"host": room.HostID,
		}).Info("room created")
		s.publish(ctx, Event{
			Type:      EventRoomCreated,
			RoomID:    room.ID,
			ActorID:   p.HostID,
			Version:   room.Version,
			Payload:   map[string]interface{}{"code": room.Code, "name": room.Name},
			Timestamp: now,
		})
		return room, host, nil
	}
	return nil, nil, models.ErrCodeSpaceExhausted
}

// GetRoomByCode looks a room up by its shareable code.
func (s *Service) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	return s.store.GetRoomByCode(ctx, NormalizeCode(code))
}

func (s *Service) GetRoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return s.store.GetRoomByID(ctx, id)
}

// ListPlayers returns the roster in join order.
func (s *Service) ListPlayers(ctx context.Context, roomID uuid.UUID) ([]*models.Player, error) {
	return s.store.ListPlayers(ctx, roomID)
}

// JoinRoom adds userID to the lobby behind code. Joining twice returns
// the existing player unchanged.
func (s *Service) JoinRoom(ctx context.Context, code, userID, displayName string, avatarID int) (*models.Player, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", models.ErrInvalidInput)
	}
	room, err := s.store.GetRoomByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}

	var joined *models.Player
	_, err = s.update(ctx, room.ID, func(t *table) error {
		if p := t.player(userID); p != nil {
			joined = p.Clone()
			return nil
		}
		if t.room.Status != models.RoomStatusLobby {
			return models.ErrGameAlreadyStarted
		}
		if len(t.players) >= t.rules.MaxPlayers {
			return models.ErrRoomFull
		}
		name, err := cleanName(displayName, maxNameLength)
		if err != nil {
			return err
		}

		taken := make(map[int]bool, len(t.players))
		for _, p := range t.players {
			taken[p.AvatarID] = true
		}
		avatar, err := AllocateAvatar(avatarID, taken, t.rules.AvatarPool, t.rnd)
		if err != nil {
			return err
		}

		p := &models.Player{
			ID:          uuid.New(),
			RoomID:      t.room.ID,
			UserID:      userID,
			DisplayName: name,
			AvatarID:    avatar,
			IsAlive:     true,
			JoinedAt:    t.now,
		}
		t.players = append(t.players, p)
		t.touch(p)
		t.note("%s joined the crew.", name)
		t.emit(EventPlayerJoined, userID, map[string]interface{}{
			"playerId":    p.ID,
			"displayName": name,
			"avatarId":    avatar,
		})
		joined = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return joined, nil
}

// SetReady flips a lobby player's ready flag.
func (s *Service) SetReady(ctx context.Context, roomID uuid.UUID, userID string, ready bool) (*models.Player, error) {
	var out *models.Player
	_, err := s.update(ctx, roomID, func(t *table) error {
		p := t.player(userID)
		if p == nil {
			return models.ErrPlayerNotFound
		}
		if t.room.Status != models.RoomStatusLobby {
			return models.ErrRoomNotInLobby
		}
		if p.Ready != ready {
			p.Ready = ready
			t.touch(p)
			t.emit(EventPlayerReady, userID, map[string]interface{}{"ready": ready})
		}
		out = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StartGame deals roles and opens night one. Only the host may start,
// only from the lobby, and only once every other player is ready.
func (s *Service) StartGame(ctx context.Context, roomID uuid.UUID, callerID string) (*models.Room, error) {
	t, err := s.update(ctx, roomID, func(t *table) error {
		if t.room.HostID != callerID {
			return models.ErrNotHost
		}
		if t.room.Status != models.RoomStatusLobby {
			return models.ErrGameAlreadyStarted
		}
		for _, p := range t.players {
			if !p.IsHost && !p.Ready {
				return models.ErrPlayersNotReady
			}
		}
		return t.start()
	})
	if err != nil {
		return nil, err
	}
	s.roomLogger(roomID).WithField("players", len(t.players)).Info("game started")
	return t.room, nil
}

// PostAction applies a night ability, day vote or task report.
func (s *Service) PostAction(ctx context.Context, roomID uuid.UUID, userID string, a Action) (*ActionResult, error) {
	var res *ActionResult
	t, err := s.update(ctx, roomID, func(t *table) error {
		var err error
		res, err = t.apply(userID, a)
		return err
	})
	if err != nil {
		return nil, err
	}
	g := t.room.Game
	res.Phase = g.Phase
	res.Round = g.Round
	res.Winner = g.Winner
	if g.Winner != models.WinnerNone {
		s.roomLogger(roomID).WithField("winner", g.Winner).Info("game ended")
	}
	return res, nil
}

// AdvancePhase ends the current phase. seq guards against stale callers:
// when non-zero and no longer current, nothing happens.
func (s *Service) AdvancePhase(ctx context.Context, roomID uuid.UUID, seq int64) (*models.Room, error) {
	t, err := s.update(ctx, roomID, func(t *table) error {
		if t.room.Status != models.RoomStatusPlaying {
			return models.ErrGameNotInProgress
		}
		if seq != 0 && seq != t.room.Game.PhaseSeq {
			return nil
		}
		t.advance()
		return nil
	})
	if err != nil {
		return nil, err
	}
	g := t.room.Game
	s.roomLogger(roomID).WithFields(logrus.Fields{
		"phase": g.Phase,
		"round": g.Round,
	}).Debug("phase advanced")
	return t.room, nil
}

// SkipPhase lets the host end the current phase early.
func (s *Service) SkipPhase(ctx context.Context, roomID uuid.UUID, callerID string) (*models.Room, error) {
	room, err := s.store.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.HostID != callerID {
		return nil, models.ErrNotHost
	}
	return s.AdvancePhase(ctx, roomID, room.Game.PhaseSeq)
}

// PostMessage appends to the room's chat. Player messages need a member
// sender; system messages are attributed to the server.
func (s *Service) PostMessage(ctx context.Context, roomID uuid.UUID, senderID, senderName, content string, isSystem bool) (*models.Message, error) {
	if isSystem {
		if senderName == "" {
			senderName = "System"
		}
		return s.appendMessage(ctx, roomID, models.SystemSenderID, senderName, content, true)
	}

	players, err := s.store.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	var sender *models.Player
	for _, p := range players {
		if p.UserID == senderID {
			sender = p
			break
		}
	}
	if sender == nil {
		return nil, models.ErrPlayerNotFound
	}
	if senderName == "" {
		senderName = sender.DisplayName
	}
	return s.appendMessage(ctx, roomID, senderID, senderName, content, false)
}

func (s *Service) appendMessage(ctx context.Context, roomID uuid.UUID, senderID, senderName, content string, isSystem bool) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > s.rules.MaxMessageLength {
		return nil, models.ErrInvalidMessage
	}
	msg := &models.Message{
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		Timestamp:  s.now(),
		IsSystem:   isSystem,
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.publish(ctx, Event{
		Type:      EventMessagePosted,
		RoomID:    roomID,
		ActorID:   senderID,
		Payload:   map[string]interface{}{"message": msg},
		Timestamp: msg.Timestamp,
	})
	return msg, nil
}

// ListMessages returns the chat log oldest first.
func (s *Service) ListMessages(ctx context.Context, roomID uuid.UUID) ([]*models.Message, error) {
	return s.store.ListMessages(ctx, roomID)
}

// Snapshot returns the room as viewerID is allowed to see it.
func (s *Service) Snapshot(ctx context.Context, roomID uuid.UUID, viewerID string) (*RoomView, error) {
	room, err := s.store.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	players, err := s.store.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return NewRoomView(room, players, viewerID), nil
}

// ResumeTimers re-arms phase timers for games that were running when the
// process last stopped. Deadlines already in the past fire immediately.
func (s *Service) ResumeTimers(ctx context.Context) (int, error) {
	rooms, err := s.store.ListActiveRooms(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rooms {
		if r.Status == models.RoomStatusPlaying && !r.Game.PhaseEndsAt.IsZero() {
			s.syncTimer(r)
			n++
		}
	}
	return n, nil
}

// ReapIdle ends lobbies nobody touched for idle, releasing their codes.
func (s *Service) ReapIdle(ctx context.Context, idle time.Duration) (int, error) {
	rooms, err := s.store.ListActiveRooms(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-idle)
	reaped := 0
	for _, r := range rooms {
		if r.Status != models.RoomStatusLobby || !r.UpdatedAt.Before(cutoff) {
			continue
		}
		t, err := s.update(ctx, r.ID, func(t *table) error {
			if t.room.Status != models.RoomStatusLobby || !t.room.UpdatedAt.Before(cutoff) {
				return nil
			}
			t.room.Status = models.RoomStatusEnded
			t.emit(EventRoomAbandoned, "", map[string]interface{}{"code": t.room.Code})
			return nil
		})
		if err != nil {
			s.roomLogger(r.ID).WithError(err).Warn("failed to reap idle room")
			continue
		}
		if t.room.Status == models.RoomStatusEnded {
			reaped++
			s.roomLogger(r.ID).WithField("code", r.Code).Info("idle lobby abandoned")
		}
	}
	return reaped, nil
}
