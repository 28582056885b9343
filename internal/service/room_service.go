package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dracko000/meet/internal/domain"
	"github.com/Dracko000/meet/internal/registry"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	roomIDAlphabet = "0123456789abcdef"
	roomIDLength   = 16
)

type RoomService struct {
	rooms *registry.Registry
	newID func() string
}

func NewRoomService(rooms *registry.Registry) (*RoomService, error) {
	gen, err := nanoid.CustomASCII(roomIDAlphabet, roomIDLength)
	if err != nil {
		return nil, fmt.Errorf("nanoid.CustomASCII: %w", err)
	}
	return &RoomService{rooms: rooms, newID: gen}, nil
}

// CreateRoom hands out a fresh room id. The live room itself appears on the
// first join, so an id nobody uses costs nothing.
func (s *RoomService) CreateRoom(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		id := s.newID()
		if _, err := s.rooms.GetRoom(id); errors.Is(err, domain.ErrRoomNotFound) {
			return id, nil
		}
	}
	return "", fmt.Errorf("create room: no free id")
}

// GetRoom returns a snapshot of a live room.
func (s *RoomService) GetRoom(ctx context.Context, id string) (*domain.RoomInfo, error) {
	rm, err := s.rooms.GetRoom(id)
	if err != nil {
		return nil, err
	}
	return &domain.RoomInfo{
		ID:           rm.ID(),
		CreatedAt:    rm.CreatedAt(),
		Participants: rm.Participants(),
	}, nil
}

func (s *RoomService) ListParticipants(ctx context.Context, id string) ([]domain.Participant, error) {
	rm, err := s.rooms.GetRoom(id)
	if err != nil {
		return nil, err
	}
	return rm.Participants(), nil
}

func (s *RoomService) LiveRooms() int {
	return s.rooms.Len()
}
