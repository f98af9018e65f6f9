// internal/store/bolt.go
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/models"
	bolt "go.etcd.io/bbolt"
)

var (
	roomsBucket    = []byte("rooms")
	codesBucket    = []byte("codes")
	playersBucket  = []byte("players")
	messagesBucket = []byte("messages")
)

// BoltStore persists rooms in a single bbolt file. Players and messages
// live in one nested bucket per room, keyed by an increasing sequence so
// that cursor order is join/insertion order.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{roomsBucket, codesBucket, playersBucket, messagesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func seqKey(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func getRoom(tx *bolt.Tx, id uuid.UUID) (*models.Room, error) {
	v := tx.Bucket(roomsBucket).Get(id[:])
	if v == nil {
		return nil, models.ErrRoomNotFound
	}
	var r models.Room
	if err := json.Unmarshal(v, &r); err != nil {
		return nil, fmt.Errorf("json unmarshal room: %w", err)
	}
	return &r, nil
}

func putJSON(b *bolt.Bucket, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := b.Put(key, data); err != nil {
		return fmt.Errorf("put to bucket error: %w", err)
	}
	return nil
}

func (s *BoltStore) CreateRoom(ctx context.Context, room *models.Room, host *models.Player) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rooms := tx.Bucket(roomsBucket)
		codes := tx.Bucket(codesBucket)

		if rooms.Get(room.ID[:]) != nil {
			return models.ErrConflict
		}
		if prev := codes.Get([]byte(room.Code)); prev != nil {
			prevID, err := uuid.FromBytes(prev)
			if err != nil {
				return fmt.Errorf("decode room id: %w", err)
			}
			prevRoom, err := getRoom(tx, prevID)
			if err != nil {
				return err
			}
			if prevRoom.Status != models.RoomStatusEnded {
				return models.ErrCodeTaken
			}
		}

		if err := putJSON(rooms, room.ID[:], room); err != nil {
			return err
		}
		if err := codes.Put([]byte(room.Code), room.ID[:]); err != nil {
			return fmt.Errorf("put code: %w", err)
		}

		pb, err := tx.Bucket(playersBucket).CreateBucket(room.ID[:])
		if err != nil {
			return fmt.Errorf("create players bucket: %w", err)
		}
		n, err := pb.NextSequence()
		if err != nil {
			return err
		}
		if err := putJSON(pb, seqKey(n), host); err != nil {
			return err
		}

		_, err = tx.Bucket(messagesBucket).CreateBucket(room.ID[:])
		return err
	})
}

func (s *BoltStore) GetRoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room *models.Room
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		room, err = getRoom(tx, id)
		return err
	})
	return room, err
}

func (s *BoltStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	var room *models.Room
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(codesBucket).Get([]byte(code))
		if id == nil {
			return models.ErrRoomNotFound
		}
		roomID, err := uuid.FromBytes(id)
		if err != nil {
			return fmt.Errorf("decode room id: %w", err)
		}
		room, err = getRoom(tx, roomID)
		return err
	})
	return room, err
}

func (s *BoltStore) CodeInUse(ctx context.Context, code string) (bool, error) {
	room, err := s.GetRoomByCode(ctx, code)
	if errors.Is(err, models.ErrRoomNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return room.Status != models.RoomStatusEnded, nil
}

func (s *BoltStore) ListActiveRooms(ctx context.Context) ([]*models.Room, error) {
	var out []*models.Room
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(roomsBucket).ForEach(func(k, v []byte) error {
			var r models.Room
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("json unmarshal room: %w", err)
			}
			if r.Status != models.RoomStatusEnded {
				out = append(out, &r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return out, nil
}

// PatchRoom runs inside a single read-write transaction; bbolt allows only
// one writer at a time, so the version check and the write are atomic.
func (s *BoltStore) PatchRoom(ctx context.Context, id uuid.UUID, expectedVersion int64, patch models.RoomPatch) (*models.Room, error) {
	var out *models.Room
	err := s.db.Update(func(tx *bolt.Tx) error {
		room, err := getRoom(tx, id)
		if err != nil {
			return err
		}
		if room.Version != expectedVersion {
			return models.ErrVersionConflict
		}
		if err := ApplyRoomPatch(room, patch); err != nil {
			return err
		}

		if len(patch.Players) > 0 {
			if err := upsertBoltPlayers(tx.Bucket(playersBucket).Bucket(id[:]), patch.Players); err != nil {
				return err
			}
		}

		if err := putJSON(tx.Bucket(roomsBucket), id[:], room); err != nil {
			return err
		}
		out = room
		return nil
	})
	return out, err
}

func upsertBoltPlayers(b *bolt.Bucket, updates []*models.Player) error {
	if b == nil {
		return models.ErrRoomNotFound
	}
	for _, u := range updates {
		var key []byte
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var p models.Player
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("json unmarshal player: %w", err)
			}
			if p.ID == u.ID {
				key = append([]byte(nil), k...)
				break
			}
			if p.UserID == u.UserID {
				return models.ErrConflict
			}
		}
		if key == nil {
			n, err := b.NextSequence()
			if err != nil {
				return err
			}
			key = seqKey(n)
		}
		if err := putJSON(b, key, u); err != nil {
			return err
		}
	}
	return nil
}

func (s *BoltStore) ListPlayers(ctx context.Context, roomID uuid.UUID) ([]*models.Player, error) {
	var out []*models.Player
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(playersBucket).Bucket(roomID[:])
		if b == nil {
			return models.ErrRoomNotFound
		}
		return b.ForEach(func(k, v []byte) error {
			var p models.Player
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("json unmarshal player: %w", err)
			}
			out = append(out, &p)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(messagesBucket).Bucket(msg.RoomID[:])
		if b == nil {
			return models.ErrRoomNotFound
		}
		n, err := b.NextSequence()
		if err != nil {
			return err
		}
		if msg.ID == uuid.Nil {
			msg.ID = uuid.New()
		}
		msg.Seq = int64(n)
		return putJSON(b, seqKey(n), msg)
	})
}

func (s *BoltStore) ListMessages(ctx context.Context, roomID uuid.UUID) ([]*models.Message, error) {
	var out []*models.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(messagesBucket).Bucket(roomID[:])
		if b == nil {
			return models.ErrRoomNotFound
		}
		return b.ForEach(func(k, v []byte) error {
			var m models.Message
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("json unmarshal message: %w", err)
			}
			out = append(out, &m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	SortMessages(out)
	return out, nil
}

func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("error close bolt db: %w", err)
	}
	return nil
}
