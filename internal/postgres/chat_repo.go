package postgres

import (
	"context"
	"fmt"

	"github.com/Dracko000/meet/internal/domain"
	"github.com/Dracko000/meet/internal/history"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatRepository is the durable history.Store. Sequence numbers come from a
// per-room counter row that is locked by the append transaction, so
// concurrent appends to one room queue up and a rolled back append leaves no
// gap.
type ChatRepository struct {
	db *pgxpool.Pool
}

var _ history.Store = (*ChatRepository)(nil)

func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

const (
	nextSeqQuery = `
		INSERT INTO room_sequences (room_id, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (room_id) DO UPDATE SET last_seq = room_sequences.last_seq + 1
		RETURNING last_seq`

	insertMessageQuery = `
		INSERT INTO room_messages (room_id, seq, sender_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	listMessagesQuery = `
		SELECT room_id, seq, sender_id, body, created_at
		FROM room_messages
		WHERE room_id = $1
		  AND ($2::bigint <= 0 OR seq < $2)
		ORDER BY seq DESC
		LIMIT $3`
)

func (r *ChatRepository) Append(ctx context.Context, roomID, senderID, body string) (domain.ChatMessage, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.ChatMessage{}, persistence("begin", err)
	}
	defer tx.Rollback(ctx)

	m := domain.ChatMessage{RoomID: roomID, SenderID: senderID, Body: body}
	if err := tx.QueryRow(ctx, nextSeqQuery, roomID).Scan(&m.Seq); err != nil {
		return domain.ChatMessage{}, persistence("next seq", err)
	}
	if err := tx.QueryRow(ctx, insertMessageQuery, roomID, m.Seq, senderID, body).Scan(&m.CreatedAt); err != nil {
		return domain.ChatMessage{}, persistence("insert message", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ChatMessage{}, persistence("commit", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func (r *ChatRepository) List(ctx context.Context, roomID string, limit int, before int64) ([]domain.ChatMessage, error) {
	limit = history.NormalizeLimit(limit)

	rows, err := r.db.Query(ctx, listMessagesQuery, roomID, before, limit)
	if err != nil {
		return nil, persistence("list", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0, limit)
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.RoomID, &m.Seq, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, persistence("scan", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("rows", err)
	}

	history.Reverse(out)
	return out, nil
}

// Close is a no-op; the pool is owned by the caller.
func (r *ChatRepository) Close() error { return nil }

func persistence(op string, err error) error {
	return fmt.Errorf("%w: postgres %s: %w", domain.ErrPersistence, op, err)
}
