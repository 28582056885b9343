// Package history defines the durable per-room chat log.
package history

import (
	"context"

	"github.com/Dracko000/meet/internal/domain"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Store is the chat history log. It is the only place sequence numbers are
// assigned: Append allocates the next number for the room and persists the
// record in one atomic step.
type Store interface {
	Append(ctx context.Context, roomID, senderID, body string) (domain.ChatMessage, error)
	// List returns the newest limit messages with seq < before (any seq when
	// before <= 0), oldest first.
	List(ctx context.Context, roomID string, limit int, before int64) ([]domain.ChatMessage, error)
	Close() error
}

// NormalizeLimit clamps a requested page size.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Reverse flips a newest-first page into chronological order in place.
func Reverse(msgs []domain.ChatMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
