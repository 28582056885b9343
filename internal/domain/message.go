package domain

import (
	"encoding/json"
	"time"
)

// SignalKind is the negotiation message kind relayed point-to-point.
type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

func (k SignalKind) Valid() bool {
	switch k {
	case SignalOffer, SignalAnswer, SignalCandidate:
		return true
	}
	return false
}

// Signal is never persisted; Payload is forwarded byte for byte.
type Signal struct {
	Kind    SignalKind
	RoomID  string
	FromID  string
	ToID    string
	Payload json.RawMessage
}

type ChatMessage struct {
	RoomID    string    `db:"room_id"`
	Seq       int64     `db:"seq"`
	SenderID  string    `db:"sender_id"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

// PresenceEvent tells the rest of a room that a participant came or went.
type PresenceEvent struct {
	RoomID        string
	ParticipantID string
	DisplayName   string
	Joined        bool
	At            time.Time
}
