package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

type ParticipantItem struct {
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name,omitempty"`
	JoinedAt      time.Time `json:"joined_at"`
}

type RoomResponse struct {
	RoomID       string            `json:"room_id"`
	CreatedAt    time.Time         `json:"created_at"`
	Participants []ParticipantItem `json:"participants"`
}

type ParticipantsResponse struct {
	Items []ParticipantItem `json:"items"`
}

type ChatMessageItem struct {
	Seq       int64     `json:"seq"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatHistoryResponse struct {
	Items      []ChatMessageItem `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// ClientConfig is what a browser needs before opening the socket.
type ClientConfig struct {
	ICEServers      []ICEServer `json:"ice_servers"`
	MaxParticipants int         `json:"max_participants"`
	MaxBodyLen      int         `json:"max_body_len"`
}
