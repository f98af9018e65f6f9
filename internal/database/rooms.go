// internal/database/rooms.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/heist/internal/models"
	"github.com/jason-s-yu/heist/internal/store"
)

const roomColumns = `id, code, name, host_id, traitor_count, hero_count, status, version, game, created_at, updated_at`

const playerColumns = `id, room_id, user_id, display_name, avatar_id, ready, is_host, is_alive, role, alignment, joined_at`

// queryer is satisfied by both the pool and a transaction.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanRoom(row pgx.Row) (*models.Room, error) {
	var (
		r      models.Room
		status string
		game   []byte
	)
	err := row.Scan(
		&r.ID,
		&r.Code,
		&r.Name,
		&r.HostID,
		&r.TraitorCount,
		&r.HeroCount,
		&status,
		&r.Version,
		&game,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan room: %w", err)
	}
	r.Status = models.RoomStatus(status)
	if len(game) > 0 {
		if err := json.Unmarshal(game, &r.Game); err != nil {
			return nil, fmt.Errorf("decode game state of room %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

func getRoom(ctx context.Context, q queryer, id uuid.UUID, lock bool) (*models.Room, error) {
	sql := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	return scanRoom(q.QueryRow(ctx, sql, id))
}

func listPlayers(ctx context.Context, q queryer, roomID uuid.UUID) ([]*models.Player, error) {
	rows, err := q.Query(ctx, `SELECT `+playerColumns+` FROM room_players WHERE room_id = $1 ORDER BY join_seq`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		var (
			p               models.Player
			role, alignment string
		)
		if err := rows.Scan(
			&p.ID,
			&p.RoomID,
			&p.UserID,
			&p.DisplayName,
			&p.AvatarID,
			&p.Ready,
			&p.IsHost,
			&p.IsAlive,
			&role,
			&alignment,
			&p.JoinedAt,
		); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		p.Role = models.Role(role)
		p.Alignment = models.Alignment(alignment)
		players = append(players, &p)
	}
	return players, rows.Err()
}

func upsertPlayer(ctx context.Context, tx pgx.Tx, p *models.Player) error {
	q := `
		INSERT INTO room_players (` + playerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			avatar_id = EXCLUDED.avatar_id,
			ready = EXCLUDED.ready,
			is_host = EXCLUDED.is_host,
			is_alive = EXCLUDED.is_alive,
			role = EXCLUDED.role,
			alignment = EXCLUDED.alignment
	`
	_, err := tx.Exec(ctx, q,
		p.ID,
		p.RoomID,
		p.UserID,
		p.DisplayName,
		p.AvatarID,
		p.Ready,
		p.IsHost,
		p.IsAlive,
		string(p.Role),
		string(p.Alignment),
		p.JoinedAt,
	)
	if _, ok := pgError(err, uniqueViolation); ok {
		return models.ErrConflict
	}
	return err
}

// CreateRoom inserts the room and its host in one transaction.
func (s *Store) CreateRoom(ctx context.Context, room *models.Room, host *models.Player) error {
	game, err := json.Marshal(room.Game)
	if err != nil {
		return fmt.Errorf("encode game state: %w", err)
	}

	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `INSERT INTO rooms (` + roomColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
		_, err := tx.Exec(ctx, q,
			room.ID,
			room.Code,
			room.Name,
			room.HostID,
			room.TraitorCount,
			room.HeroCount,
			string(room.Status),
			room.Version,
			game,
			room.CreatedAt,
			room.UpdatedAt,
		)
		if pgErr, ok := pgError(err, uniqueViolation); ok && pgErr.ConstraintName == activeCodeIndex {
			return models.ErrCodeTaken
		}
		if err != nil {
			return fmt.Errorf("insert room: %w", err)
		}
		return upsertPlayer(ctx, tx, host)
	})
	if err != nil {
		return err
	}

	s.codes.Add(room.Code, room.ID)
	return nil
}

func (s *Store) GetRoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return getRoom(ctx, s.pool, id, false)
}

// GetRoomByCode serves active rooms from the cache and otherwise prefers
// the active holder of code over the newest ended one.
func (s *Store) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	if v, ok := s.codes.Get(code); ok {
		room, err := s.GetRoomByID(ctx, v.(uuid.UUID))
		if err == nil && room.Status != models.RoomStatusEnded {
			return room, nil
		}
		s.codes.Remove(code)
	}

	q := `SELECT ` + roomColumns + ` FROM rooms WHERE code = $1 ORDER BY (status = 'ended'), created_at DESC LIMIT 1`
	room, err := scanRoom(s.pool.QueryRow(ctx, q, code))
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomStatusEnded {
		s.codes.Add(code, room.ID)
	}
	return room, nil
}

func (s *Store) CodeInUse(ctx context.Context, code string) (bool, error) {
	var inUse bool
	q := `SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1 AND status <> 'ended')`
	if err := s.pool.QueryRow(ctx, q, code).Scan(&inUse); err != nil {
		return false, fmt.Errorf("check code %s: %w", code, err)
	}
	return inUse, nil
}

func (s *Store) ListActiveRooms(ctx context.Context) ([]*models.Room, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roomColumns+` FROM rooms WHERE status <> 'ended' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query active rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// PatchRoom locks the row, checks the version and writes the room plus
// any changed players in a single transaction.
func (s *Store) PatchRoom(ctx context.Context, id uuid.UUID, expectedVersion int64, patch models.RoomPatch) (*models.Room, error) {
	var updated *models.Room
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		room, err := getRoom(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if room.Version != expectedVersion {
			return models.ErrVersionConflict
		}
		if err := store.ApplyRoomPatch(room, patch); err != nil {
			return err
		}

		if len(patch.Players) > 0 {
			current, err := listPlayers(ctx, tx, id)
			if err != nil {
				return err
			}
			if _, err := store.UpsertPlayers(current, patch.Players); err != nil {
				return err
			}
			for _, p := range patch.Players {
				if err := upsertPlayer(ctx, tx, p); err != nil {
					return err
				}
			}
		}

		game, err := json.Marshal(room.Game)
		if err != nil {
			return fmt.Errorf("encode game state: %w", err)
		}
		q := `UPDATE rooms SET status = $2, version = $3, game = $4, updated_at = $5 WHERE id = $1`
		if _, err := tx.Exec(ctx, q, id, string(room.Status), room.Version, game, room.UpdatedAt); err != nil {
			return fmt.Errorf("update room: %w", err)
		}
		updated = room
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Status == models.RoomStatusEnded {
		s.codes.Remove(updated.Code)
	}
	return updated, nil
}

func (s *Store) ListPlayers(ctx context.Context, roomID uuid.UUID) ([]*models.Player, error) {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return listPlayers(ctx, s.pool, roomID)
}

func (s *Store) requireRoom(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check room %s: %w", id, err)
	}
	if !exists {
		return models.ErrRoomNotFound
	}
	return nil
}
