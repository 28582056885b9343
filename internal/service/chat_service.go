package service

import (
	"context"

	"github.com/Dracko000/meet/internal/domain"
	"github.com/Dracko000/meet/internal/history"
	"github.com/Dracko000/meet/internal/registry"
	"github.com/Dracko000/meet/internal/relay"
)

type ChatService struct {
	relay *relay.Relay
	store history.Store
}

func NewChatService(rl *relay.Relay, store history.Store) *ChatService {
	return &ChatService{relay: rl, store: store}
}

// Send stores the message and pushes it to the rest of the room. via is the
// sender's connection, nil for callers without one.
func (s *ChatService) Send(ctx context.Context, roomID, senderID string, via registry.Peer, body string) (domain.ChatMessage, error) {
	return s.relay.Chat(ctx, roomID, senderID, via, body)
}

// History returns up to limit messages older than before (or the newest ones
// when before <= 0), oldest first. next is the before value for the following
// older page, zero when there is none.
func (s *ChatService) History(ctx context.Context, roomID string, limit int, before int64) (msgs []domain.ChatMessage, next int64, err error) {
	limit = history.NormalizeLimit(limit)
	msgs, err = s.store.List(ctx, roomID, limit, before)
	if err != nil {
		return nil, 0, err
	}
	if len(msgs) == limit && msgs[0].Seq > 1 {
		next = msgs[0].Seq
	}
	return msgs, next, nil
}

// Relay forwards a negotiation message to its target.
func (s *ChatService) Relay(ctx context.Context, sig domain.Signal, via registry.Peer) error {
	return s.relay.Signal(ctx, sig, via)
}
