package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dracko000/meet/internal/domain"
)

// Memory keeps history in process memory. Sequence numbers do not survive a
// restart, so it is meant for development and tests.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string][]domain.ChatMessage
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[string][]domain.ChatMessage),
		now:   time.Now,
	}
}

func (m *Memory) Append(_ context.Context, roomID, senderID, body string) (domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.rooms[roomID]
	msg := domain.ChatMessage{
		RoomID:    roomID,
		Seq:       int64(len(log)) + 1,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: m.now().UTC(),
	}
	m.rooms[roomID] = append(log, msg)
	return msg, nil
}

func (m *Memory) List(_ context.Context, roomID string, limit int, before int64) ([]domain.ChatMessage, error) {
	limit = NormalizeLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	log := m.rooms[roomID]
	end := len(log)
	if before > 0 {
		// log[i].Seq == i+1
		end = sort.Search(len(log), func(i int) bool { return log[i].Seq >= before })
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	out := make([]domain.ChatMessage, end-start)
	copy(out, log[start:end])
	return out, nil
}

func (m *Memory) Close() error { return nil }
