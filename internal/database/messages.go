// internal/database/messages.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/models"
)

// AppendMessage inserts msg and fills in its ID and Seq.
func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	q := `
		INSERT INTO room_messages (id, room_id, sender_id, sender_name, content, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq
	`
	err := s.pool.QueryRow(ctx, q,
		msg.ID,
		msg.RoomID,
		msg.SenderID,
		msg.SenderName,
		msg.Content,
		msg.IsSystem,
		msg.Timestamp,
	).Scan(&msg.Seq)
	if _, ok := pgError(err, foreignKeyViolation); ok {
		return models.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, roomID uuid.UUID) ([]*models.Message, error) {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}
	q := `
		SELECT id, room_id, seq, sender_id, sender_name, content, is_system, created_at
		FROM room_messages
		WHERE room_id = $1
		ORDER BY created_at, seq
	`
	rows, err := s.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []*models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Seq, &m.SenderID, &m.SenderName, &m.Content, &m.IsSystem, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
