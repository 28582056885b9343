// Package relay forwards negotiation messages between two participants and
// fans chat out to a room.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Dracko000/meet/internal/domain"
	"github.com/Dracko000/meet/internal/events"
	"github.com/Dracko000/meet/internal/history"
	"github.com/Dracko000/meet/internal/metrics"
	"github.com/Dracko000/meet/internal/registry"
)

const DefaultMaxBodyLen = 4000

type Relay struct {
	rooms   *registry.Registry
	store   history.Store
	metrics *metrics.Metrics
	events  events.Publisher
	maxBody int
}

type Option func(*Relay)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithPublisher(p events.Publisher) Option {
	return func(r *Relay) {
		if p != nil {
			r.events = p
		}
	}
}

// WithMaxBodyLen bounds chat bodies, counted in runes.
func WithMaxBodyLen(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.maxBody = n
		}
	}
}

func New(rooms *registry.Registry, store history.Store, opts ...Option) *Relay {
	r := &Relay{
		rooms:   rooms,
		store:   store,
		events:  events.Nop{},
		maxBody: DefaultMaxBodyLen,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Signal forwards sig to its target unmodified. A target that is not in the
// room, or whose connection is gone, yields ErrTargetNotFound immediately.
// via is the sender's connection; when non-nil it must be the one the
// registry holds for sig.FromID.
func (r *Relay) Signal(ctx context.Context, sig domain.Signal, via registry.Peer) error {
	if !sig.Kind.Valid() {
		return fmt.Errorf("%w: unknown signal kind %q", domain.ErrInvalidRequest, sig.Kind)
	}
	if sig.ToID == "" {
		return fmt.Errorf("%w: to_id is required", domain.ErrInvalidRequest)
	}

	room, err := r.rooms.GetRoom(sig.RoomID)
	if err != nil {
		r.metrics.Signal(string(sig.Kind), "not_found")
		return fmt.Errorf("relay %s: %w", sig.Kind, err)
	}
	if !room.HeldBy(sig.FromID, via) {
		return fmt.Errorf("relay %s: %w", sig.Kind, domain.ErrNotInRoom)
	}

	peer, ok := room.Peer(sig.ToID)
	if !ok {
		r.metrics.Signal(string(sig.Kind), "not_found")
		return fmt.Errorf("relay %s to %s: %w", sig.Kind, sig.ToID, domain.ErrTargetNotFound)
	}
	if err := peer.DeliverSignal(sig); err != nil {
		r.metrics.Signal(string(sig.Kind), "not_found")
		slog.DebugContext(ctx, "relay: target unreachable", "room", sig.RoomID, "to", sig.ToID, "err", err)
		return fmt.Errorf("relay %s to %s: %w", sig.Kind, sig.ToID, domain.ErrTargetNotFound)
	}

	r.metrics.Signal(string(sig.Kind), "relayed")
	return nil
}

// Chat appends body to the room history and pushes the sequenced message to
// everyone else in the room. The append decides success: a failed delivery
// to one recipient neither fails the call nor affects other recipients.
// via is checked as in Signal.
func (r *Relay) Chat(ctx context.Context, roomID, fromID string, via registry.Peer, body string) (domain.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.ChatMessage{}, fmt.Errorf("%w: empty message", domain.ErrInvalidRequest)
	}
	if utf8.RuneCountInString(body) > r.maxBody {
		return domain.ChatMessage{}, fmt.Errorf("%w: message longer than %d characters", domain.ErrInvalidRequest, r.maxBody)
	}

	room, err := r.rooms.GetRoom(roomID)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("chat: %w", err)
	}
	if !room.HeldBy(fromID, via) {
		return domain.ChatMessage{}, fmt.Errorf("chat: %w", domain.ErrNotInRoom)
	}

	// Held across append and enqueue so that delivery order equals sequence
	// order. A slow store serializes chat senders in this room; presence and
	// directed relay use a different lock and are not blocked.
	room.LockChat()
	defer room.UnlockChat()

	msg, err := r.store.Append(ctx, roomID, fromID, body)
	if err != nil {
		if domain.KindOf(err) != domain.KindPersistenceFailure {
			err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		return domain.ChatMessage{}, err
	}
	r.metrics.ChatAppended()
	r.events.Publish(ctx, events.Event{
		Type:          events.TypeChatAppended,
		RoomID:        roomID,
		ParticipantID: fromID,
		Seq:           msg.Seq,
		At:            msg.CreatedAt,
	})

	for _, m := range room.Members(fromID) {
		err := m.Peer.DeliverChat(msg)
		r.metrics.ChatDelivered(err == nil)
		if err != nil {
			slog.DebugContext(ctx, "relay: chat delivery dropped",
				"room", roomID, "to", m.ID, "seq", msg.Seq, "err", err)
		}
	}
	return msg, nil
}
