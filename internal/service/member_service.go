package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dracko000/meet/internal/domain"
	"github.com/Dracko000/meet/internal/events"
	"github.com/Dracko000/meet/internal/registry"
)

type MemberService struct {
	rooms  *registry.Registry
	events events.Publisher
	now    func() time.Time
}

func NewMemberService(rooms *registry.Registry, pub events.Publisher) *MemberService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &MemberService{rooms: rooms, events: pub, now: time.Now}
}

// Join registers p in roomID on behalf of peer and returns everyone else in
// the room. The others are told about the newcomer.
func (s *MemberService) Join(ctx context.Context, roomID string, p domain.Participant, peer registry.Peer) ([]domain.Participant, error) {
	p.JoinedAt = s.now()
	_, others, err := s.rooms.Join(roomID, p, peer)
	if err != nil {
		return nil, err
	}

	ev := domain.PresenceEvent{
		RoomID:        roomID,
		ParticipantID: p.ID,
		DisplayName:   p.DisplayName,
		Joined:        true,
		At:            p.JoinedAt,
	}
	roster := make([]domain.Participant, 0, len(others))
	for _, m := range others {
		roster = append(roster, m.Participant)
		if err := m.Peer.DeliverPresence(ev); err != nil {
			slog.DebugContext(ctx, "presence delivery dropped", "room", roomID, "to", m.ID, "err", err)
		}
	}

	s.events.Publish(ctx, events.Event{
		Type:          events.TypeParticipantJoined,
		RoomID:        roomID,
		ParticipantID: p.ID,
		At:            p.JoinedAt,
	})
	return roster, nil
}

// Leave removes the participant. It reports whether anything was removed;
// leaving twice is not an error.
func (s *MemberService) Leave(ctx context.Context, roomID, participantID string) bool {
	return s.afterLeave(ctx, roomID, s.rooms.Leave(roomID, participantID))
}

// Detach is the leave of a closed connection. It only takes effect when the
// participant has not since rejoined over another connection.
func (s *MemberService) Detach(ctx context.Context, roomID, participantID string, peer registry.Peer) bool {
	return s.afterLeave(ctx, roomID, s.rooms.Detach(roomID, participantID, peer))
}

func (s *MemberService) afterLeave(ctx context.Context, roomID string, res registry.LeaveResult) bool {
	if !res.Removed {
		return false
	}

	ev := domain.PresenceEvent{
		RoomID:        roomID,
		ParticipantID: res.Left.ID,
		DisplayName:   res.Left.DisplayName,
		At:            s.now(),
	}
	for _, m := range res.Remaining {
		if err := m.Peer.DeliverPresence(ev); err != nil {
			slog.DebugContext(ctx, "presence delivery dropped", "room", roomID, "to", m.ID, "err", err)
		}
	}

	s.events.Publish(ctx, events.Event{
		Type:          events.TypeParticipantLeft,
		RoomID:        roomID,
		ParticipantID: res.Left.ID,
		At:            ev.At,
	})
	if res.Empty {
		slog.InfoContext(ctx, "room emptied", "room", roomID)
	}
	return true
}

// ListOthers is the roster of roomID without participantID.
func (s *MemberService) ListOthers(ctx context.Context, roomID, participantID string) ([]string, error) {
	rm, err := s.rooms.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	return rm.ListOthers(participantID), nil
}
