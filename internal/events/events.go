// Package events publishes room and chat lifecycle events for other
// services. Publishing is best effort and never blocks the broker.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	TypeRoomCreated       = "room.created"
	TypeRoomRemoved       = "room.removed"
	TypeParticipantJoined = "participant.joined"
	TypeParticipantLeft   = "participant.left"
	TypeChatAppended      = "chat.appended"
)

type Event struct {
	Type          string    `json:"type"`
	RoomID        string    `json:"room_id"`
	ParticipantID string    `json:"participant_id,omitempty"`
	Seq           int64     `json:"seq,omitempty"`
	At            time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
func (Nop) RoomCreated(string)              {}
func (Nop) RoomRemoved(string)              {}

// NATS publishes JSON events on <prefix>.<room_id>.<type>.
type NATS struct {
	nc     *nats.Conn
	prefix string
	now    func() time.Time
}

func Connect(url, name, prefix string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return NewNATS(nc, prefix), nil
}

func NewNATS(nc *nats.Conn, prefix string) *NATS {
	if prefix == "" {
		prefix = "meet.rooms"
	}
	return &NATS{nc: nc, prefix: prefix, now: time.Now}
}

func (p *NATS) Subject(roomID, typ string) string {
	return p.prefix + "." + roomID + "." + typ
}

func (p *NATS) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = p.now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.WarnContext(ctx, "events: encode failed", "type", ev.Type, "err", err)
		return
	}
	if err := p.nc.Publish(p.Subject(ev.RoomID, ev.Type), data); err != nil {
		slog.WarnContext(ctx, "events: publish failed", "type", ev.Type, "room", ev.RoomID, "err", err)
	}
}

func (p *NATS) RoomCreated(roomID string) {
	p.Publish(context.Background(), Event{Type: TypeRoomCreated, RoomID: roomID})
}

func (p *NATS) RoomRemoved(roomID string) {
	p.Publish(context.Background(), Event{Type: TypeRoomRemoved, RoomID: roomID})
}

// Close flushes pending events and closes the connection.
func (p *NATS) Close() error {
	return p.nc.Drain()
}
