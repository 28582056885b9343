package domain

import "time"

type Participant struct {
	ID          string
	RoomID      string
	DisplayName string
	JoinedAt    time.Time
}
