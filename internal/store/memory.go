// internal/store/memory.go
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/models"
)

// MemoryStore keeps everything in process memory. Used for tests and
// single-node deployments that can afford to lose rooms on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[uuid.UUID]*models.Room
	codes    map[string]uuid.UUID
	players  map[uuid.UUID][]*models.Player
	messages map[uuid.UUID][]*models.Message
	seq      map[uuid.UUID]int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[uuid.UUID]*models.Room),
		codes:    make(map[string]uuid.UUID),
		players:  make(map[uuid.UUID][]*models.Player),
		messages: make(map[uuid.UUID][]*models.Message),
		seq:      make(map[uuid.UUID]int64),
	}
}

func (s *MemoryStore) CreateRoom(ctx context.Context, room *models.Room, host *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[room.ID]; exists {
		return models.ErrConflict
	}
	if prevID, ok := s.codes[room.Code]; ok {
		if prev := s.rooms[prevID]; prev != nil && prev.Status != models.RoomStatusEnded {
			return models.ErrCodeTaken
		}
	}

	s.rooms[room.ID] = room.Clone()
	s.codes[room.Code] = room.ID
	s.players[room.ID] = []*models.Player{host.Clone()}
	return nil
}

func (s *MemoryStore) GetRoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[id]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	return r.Clone(), nil
}

// GetRoomByCode relies on codes always pointing at the newest room for a
// code; a new room can only take a code once the previous holder ended.
func (s *MemoryStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.codes[code]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	return s.rooms[id].Clone(), nil
}

func (s *MemoryStore) CodeInUse(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.codes[code]
	if !ok {
		return false, nil
	}
	return s.rooms[id].Status != models.RoomStatusEnded, nil
}

func (s *MemoryStore) ListActiveRooms(ctx context.Context) ([]*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Room
	for _, r := range s.rooms {
		if r.Status != models.RoomStatusEnded {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) PatchRoom(ctx context.Context, id uuid.UUID, expectedVersion int64, patch models.RoomPatch) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.rooms[id]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	if stored.Version != expectedVersion {
		return nil, models.ErrVersionConflict
	}

	next := stored.Clone()
	if err := ApplyRoomPatch(next, patch); err != nil {
		return nil, err
	}

	players := make([]*models.Player, len(s.players[id]))
	copy(players, s.players[id])
	players, err := UpsertPlayers(players, patch.Players)
	if err != nil {
		return nil, err
	}

	s.rooms[id] = next
	s.players[id] = players
	return next.Clone(), nil
}

func (s *MemoryStore) ListPlayers(ctx context.Context, roomID uuid.UUID) ([]*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.rooms[roomID]; !ok {
		return nil, models.ErrRoomNotFound
	}
	out := make([]*models.Player, 0, len(s.players[roomID]))
	for _, p := range s.players[roomID] {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[msg.RoomID]; !ok {
		return models.ErrRoomNotFound
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	s.seq[msg.RoomID]++
	msg.Seq = s.seq[msg.RoomID]

	stored := *msg
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], &stored)
	return nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, roomID uuid.UUID) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.rooms[roomID]; !ok {
		return nil, models.ErrRoomNotFound
	}
	out := make([]*models.Message, 0, len(s.messages[roomID]))
	for _, m := range s.messages[roomID] {
		c := *m
		out = append(out, &c)
	}
	SortMessages(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
