package domain

import "time"

// RoomInfo is a point-in-time view of a live room.
type RoomInfo struct {
	ID           string
	CreatedAt    time.Time
	Participants []Participant
}
