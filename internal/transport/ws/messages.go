package ws

import "encoding/json"

// Inbound envelope types.
const (
	TypeJoin           = "join"
	TypeLeave          = "leave"
	TypeOffer          = "offer"
	TypeAnswer         = "answer"
	TypeCandidate      = "candidate"
	TypeChatSend       = "chat-send"
	TypeHistoryRequest = "history-request"
)

// Outbound envelope types. Relayed offer/answer/candidate keep their inbound
// type names.
const (
	TypeJoined     = "joined"      // roster of the others, sent to the joiner
	TypeLeft       = "left"        // leave confirmation
	TypePeerJoined = "peer-joined" // someone else joined
	TypePeerLeft   = "peer-left"   // someone else left or dropped
	TypeChat       = "chat"        // sequenced chat message
	TypeChatAck    = "chat-ack"    // to the sender only, once the message is stored
	TypeHistory    = "history"
	TypeError      = "error"
)

// Envelope is what clients send.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Message is what the server sends.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type JoinPayload struct {
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
}

type LeavePayload struct {
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id,omitempty"`
}

type SignalPayload struct {
	RoomID  string          `json:"room_id"`
	ToID    string          `json:"to_id"`
	Payload json.RawMessage `json:"payload"`
}

type ChatSendPayload struct {
	RoomID string `json:"room_id"`
	Body   string `json:"body"`
}

type HistoryRequestPayload struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit,omitempty"`
	Before int64  `json:"before,omitempty"`
}

type ParticipantItem struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name,omitempty"`
	JoinedAt      int64  `json:"joined_at_unix"`
}

type JoinedPayload struct {
	RoomID        string            `json:"room_id"`
	ParticipantID string            `json:"participant_id"`
	Roster        []ParticipantItem `json:"roster"`
}

type LeftPayload struct {
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
}

type PeerEventPayload struct {
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name,omitempty"`
}

type RelayedSignalPayload struct {
	RoomID  string          `json:"room_id"`
	FromID  string          `json:"from_id"`
	Payload json.RawMessage `json:"payload"`
}

type ChatPayload struct {
	RoomID   string `json:"room_id"`
	Seq      int64  `json:"seq"`
	SenderID string `json:"sender_id"`
	Body     string `json:"body"`
	TSUnixMs int64  `json:"ts_unix_ms"`
}

type ChatAckPayload struct {
	RoomID   string `json:"room_id"`
	Seq      int64  `json:"seq"`
	TSUnixMs int64  `json:"ts_unix_ms"`
}

type HistoryPayload struct {
	RoomID   string        `json:"room_id"`
	Messages []ChatPayload `json:"messages"`
	// Before value for the next older page, absent on the last page.
	NextBefore int64 `json:"next_before,omitempty"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Type of the inbound envelope that failed, if known.
	Type string `json:"type,omitempty"`
}
