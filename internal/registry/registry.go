// Package registry owns the live room map and per-room presence.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/Dracko000/meet/internal/domain"
)

// Observer is told about room lifecycle changes. Calls happen outside the
// registry lock.
type Observer interface {
	RoomCreated(roomID string)
	RoomRemoved(roomID string)
}

type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	maxRooms        int
	maxParticipants int
	observers       []Observer
	now             func() time.Time
}

type Option func(*Registry)

// WithMaxRooms caps the number of live rooms. Zero means unlimited.
func WithMaxRooms(n int) Option {
	return func(r *Registry) { r.maxRooms = n }
}

// WithMaxParticipants caps the roster of a single room. Zero means unlimited.
func WithMaxParticipants(n int) Option {
	return func(r *Registry) { r.maxParticipants = n }
}

func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func New(opts ...Option) *Registry {
	r := &Registry{
		rooms: make(map[string]*Room),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureRoom returns the live room or creates it.
func (r *Registry) EnsureRoom(roomID string) (*Room, error) {
	r.mu.Lock()
	if rm, ok := r.rooms[roomID]; ok {
		r.mu.Unlock()
		return rm, nil
	}
	if r.maxRooms > 0 && len(r.rooms) >= r.maxRooms {
		r.mu.Unlock()
		return nil, domain.ErrRegistryFull
	}
	rm := newRoom(roomID, r.now())
	r.rooms[roomID] = rm
	r.mu.Unlock()

	for _, o := range r.observers {
		o.RoomCreated(roomID)
	}
	return rm, nil
}

func (r *Registry) GetRoom(roomID string) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return rm, nil
}

// RemoveIfEmpty drops the room's live entry iff nobody is in it. The room is
// marked closed under its own lock, so a join racing the removal retries
// against a fresh room instead of landing in a detached one.
func (r *Registry) RemoveIfEmpty(roomID string) bool {
	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	rm.mu.Lock()
	removed := len(rm.members) == 0
	if removed {
		rm.closed = true
		delete(r.rooms, roomID)
	}
	rm.mu.Unlock()
	r.mu.Unlock()

	if removed {
		for _, o := range r.observers {
			o.RoomRemoved(roomID)
		}
	}
	return removed
}

// Len reports the number of live rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Join registers the participant, creating the room if needed. Rejoining with
// the same id refreshes the entry. The returned roster excludes the joiner.
func (r *Registry) Join(roomID string, p domain.Participant, peer Peer) (*Room, []Member, error) {
	if p.JoinedAt.IsZero() {
		p.JoinedAt = r.now()
	}
	for {
		rm, err := r.EnsureRoom(roomID)
		if err != nil {
			return nil, nil, err
		}
		others, _, err := rm.join(p, peer, r.maxParticipants)
		if errors.Is(err, errRoomClosed) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return rm, others, nil
	}
}

// Leave removes the participant. Calling it again, or for an unknown room, is
// a no-op. An emptied room is reclaimed.
func (r *Registry) Leave(roomID, participantID string) LeaveResult {
	return r.leave(roomID, participantID, nil)
}

// Detach is the leave synthesized when a connection closes: it only removes
// the participant if the entry still belongs to peer.
func (r *Registry) Detach(roomID, participantID string, peer Peer) LeaveResult {
	return r.leave(roomID, participantID, peer)
}

func (r *Registry) leave(roomID, participantID string, peer Peer) LeaveResult {
	rm, err := r.GetRoom(roomID)
	if err != nil {
		return LeaveResult{Empty: true}
	}
	res := rm.leave(participantID, peer)
	if res.Empty {
		r.RemoveIfEmpty(roomID)
	}
	return res
}
