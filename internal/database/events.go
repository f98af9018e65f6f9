// internal/database/events.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/heist/internal/models"
)

// InsertRoomEvents archives a batch of events in one transaction.
func (s *Store) InsertRoomEvents(ctx context.Context, events []models.RoomEvent) error {
	if len(events) == 0 {
		return nil
	}
	q := `
		INSERT INTO room_events (room_id, event_type, actor_id, version, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, ev := range events {
			var payload []byte
			if len(ev.Payload) > 0 {
				payload = ev.Payload
			}
			batch.Queue(q, ev.RoomID, ev.Type, ev.ActorID, ev.Version, payload, ev.Timestamp)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert %d room events: %w", len(events), err)
	}
	return nil
}

// ListRoomEvents returns the archived events of a room in insertion order.
func (s *Store) ListRoomEvents(ctx context.Context, roomID uuid.UUID) ([]models.RoomEvent, error) {
	q := `
		SELECT room_id, event_type, actor_id, version, payload, created_at
		FROM room_events
		WHERE room_id = $1
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, fmt.Errorf("query room events: %w", err)
	}
	defer rows.Close()

	var out []models.RoomEvent
	for rows.Next() {
		var (
			ev      models.RoomEvent
			payload []byte
		)
		if err := rows.Scan(&ev.RoomID, &ev.Type, &ev.ActorID, &ev.Version, &payload, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan room event: %w", err)
		}
		ev.Payload = payload
		out = append(out, ev)
	}
	return out, rows.Err()
}
