package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Dracko000/meet/internal/domain"
)

var errRoomClosed = errors.New("room reclaimed")

// Peer is the live connection handle of a participant. The gateway owns it;
// a Room only delivers to it and never closes it.
type Peer interface {
	DeliverSignal(sig domain.Signal) error
	DeliverChat(msg domain.ChatMessage) error
	DeliverPresence(ev domain.PresenceEvent) error
}

// Member is a participant together with its connection handle.
type Member struct {
	domain.Participant
	Peer Peer
}

// LeaveResult describes the outcome of a leave. Remaining is the roster
// snapshot taken right after the removal.
type LeaveResult struct {
	Removed   bool
	Empty     bool
	Left      Member
	Remaining []Member
}

// Room is the per-room presence tracker.
type Room struct {
	id        string
	createdAt time.Time

	mu      sync.Mutex
	members map[string]*Member
	closed  bool

	// chatMu serializes chat append and fan-out so every recipient sees the
	// store's sequence order. It is never taken while mu is held.
	chatMu sync.Mutex
}

func newRoom(id string, now time.Time) *Room {
	return &Room{
		id:        id,
		createdAt: now,
		members:   make(map[string]*Member),
	}
}

func (rm *Room) ID() string           { return rm.id }
func (rm *Room) CreatedAt() time.Time { return rm.createdAt }

// LockChat acquires the room's chat ordering section.
func (rm *Room) LockChat()   { rm.chatMu.Lock() }
func (rm *Room) UnlockChat() { rm.chatMu.Unlock() }

func (rm *Room) join(p domain.Participant, peer Peer, maxParticipants int) ([]Member, bool, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.closed {
		return nil, false, errRoomClosed
	}

	m, rejoin := rm.members[p.ID]
	switch {
	case rejoin:
		m.JoinedAt = p.JoinedAt
		if p.DisplayName != "" {
			m.DisplayName = p.DisplayName
		}
		m.Peer = peer
	case maxParticipants > 0 && len(rm.members) >= maxParticipants:
		return nil, false, domain.ErrRoomFull
	default:
		p.RoomID = rm.id
		rm.members[p.ID] = &Member{Participant: p, Peer: peer}
	}

	return rm.snapshotLocked(p.ID), rejoin, nil
}

// leave removes participantID. When peer is non-nil the entry is only removed
// if it still refers to that connection.
func (rm *Room) leave(participantID string, peer Peer) LeaveResult {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	m, ok := rm.members[participantID]
	if !ok || (peer != nil && m.Peer != peer) {
		return LeaveResult{Empty: len(rm.members) == 0}
	}
	delete(rm.members, participantID)

	return LeaveResult{
		Removed:   true,
		Empty:     len(rm.members) == 0,
		Left:      *m,
		Remaining: rm.snapshotLocked(""),
	}
}

// ListOthers returns the ids of everyone in the room except participantID,
// ordered by join time.
func (rm *Room) ListOthers(participantID string) []string {
	members := rm.Members(participantID)
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids
}

// Members returns a consistent roster snapshot without the given id.
// Pass "" to include everyone.
func (rm *Room) Members(except string) []Member {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.snapshotLocked(except)
}

func (rm *Room) Participants() []domain.Participant {
	members := rm.Members("")
	out := make([]domain.Participant, 0, len(members))
	for _, m := range members {
		out = append(out, m.Participant)
	}
	return out
}

// Peer returns the connection handle of a present participant.
func (rm *Room) Peer(participantID string) (Peer, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	m, ok := rm.members[participantID]
	if !ok {
		return nil, false
	}
	return m.Peer, true
}

// HeldBy reports whether participantID is present and bound to peer. A nil
// peer matches any connection.
func (rm *Room) HeldBy(participantID string, peer Peer) bool {
	cur, ok := rm.Peer(participantID)
	if !ok {
		return false
	}
	return peer == nil || cur == peer
}

func (rm *Room) Contains(participantID string) bool {
	_, ok := rm.Peer(participantID)
	return ok
}

func (rm *Room) Len() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

func (rm *Room) snapshotLocked(except string) []Member {
	out := make([]Member, 0, len(rm.members))
	for id, m := range rm.members {
		if id == except {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}
