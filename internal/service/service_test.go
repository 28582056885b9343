package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/Dracko000/meet/internal/domain"
	"github.com/Dracko000/meet/internal/history"
	"github.com/Dracko000/meet/internal/registry"
	"github.com/Dracko000/meet/internal/relay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbox struct {
	mu       sync.Mutex
	signals  []domain.Signal
	chats    []domain.ChatMessage
	presence []domain.PresenceEvent
}

func (b *inbox) DeliverSignal(sig domain.Signal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals = append(b.signals, sig)
	return nil
}

func (b *inbox) DeliverChat(msg domain.ChatMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chats = append(b.chats, msg)
	return nil
}

func (b *inbox) DeliverPresence(ev domain.PresenceEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presence = append(b.presence, ev)
	return nil
}

type fixture struct {
	rooms   *RoomService
	members *MemberService
	chat    *ChatService
	reg     *registry.Registry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	reg := registry.New()
	store := history.NewMemory()
	rs, err := NewRoomService(reg)
	require.NoError(t, err)
	return fixture{
		rooms:   rs,
		members: NewMemberService(reg, nil),
		chat:    NewChatService(relay.New(reg, store), store),
		reg:     reg,
	}
}

func ids(ps []domain.Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestCreateRoom_GeneratesHexIDs(t *testing.T) {
	f := newFixture(t)
	re := regexp.MustCompile(`^[0-9a-f]{16}$`)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := f.rooms.CreateRoom(context.Background())
		require.NoError(t, err)
		assert.Regexp(t, re, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 0, f.rooms.LiveRooms(), "creating an id must not create a live room")
}

func TestJoinChatHistoryScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := &inbox{}, &inbox{}

	roster, err := f.members.Join(ctx, "r1", domain.Participant{ID: "A"}, a)
	require.NoError(t, err)
	assert.Empty(t, roster)

	roster, err = f.members.Join(ctx, "r1", domain.Participant{ID: "B"}, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ids(roster))

	require.Len(t, a.presence, 1)
	assert.Equal(t, "B", a.presence[0].ParticipantID)
	assert.True(t, a.presence[0].Joined)

	msg, err := f.chat.Send(ctx, "r1", "A", nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.Seq)

	require.Len(t, b.chats, 1)
	assert.Equal(t, int64(1), b.chats[0].Seq)
	assert.Equal(t, "hi", b.chats[0].Body)

	page, next, err := f.chat.History(ctx, "r1", 10, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "A", page[0].SenderID)
	assert.Equal(t, "hi", page[0].Body)
	assert.Zero(t, next)
}

func TestOfferScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := &inbox{}, &inbox{}
	_, err := f.members.Join(ctx, "r1", domain.Participant{ID: "A"}, a)
	require.NoError(t, err)
	_, err = f.members.Join(ctx, "r1", domain.Participant{ID: "B"}, b)
	require.NoError(t, err)

	payload := json.RawMessage(`{"sdp":"x"}`)
	err = f.chat.Relay(ctx, domain.Signal{Kind: domain.SignalOffer, RoomID: "r1", FromID: "A", ToID: "B", Payload: payload}, nil)
	require.NoError(t, err)
	require.Len(t, b.signals, 1)
	assert.Equal(t, "A", b.signals[0].FromID)
	assert.Equal(t, payload, b.signals[0].Payload)

	err = f.chat.Relay(ctx, domain.Signal{Kind: domain.SignalOffer, RoomID: "r1", FromID: "A", ToID: "C", Payload: payload}, nil)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.Len(t, b.signals, 1)
}

func TestDisconnectReclaimScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := &inbox{}, &inbox{}, &inbox{}

	_, err := f.members.Join(ctx, "r1", domain.Participant{ID: "A"}, a)
	require.NoError(t, err)
	_, err = f.members.Join(ctx, "r1", domain.Participant{ID: "B"}, b)
	require.NoError(t, err)
	_, err = f.chat.Send(ctx, "r1", "A", nil, "before")
	require.NoError(t, err)

	assert.True(t, f.members.Detach(ctx, "r1", "A", a))
	require.Len(t, b.presence, 1)
	assert.False(t, b.presence[0].Joined)
	assert.Equal(t, "A", b.presence[0].ParticipantID)

	assert.True(t, f.members.Leave(ctx, "r1", "B"))
	assert.False(t, f.members.Leave(ctx, "r1", "B"))
	_, err = f.rooms.GetRoom(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	roster, err := f.members.Join(ctx, "r1", domain.Participant{ID: "C"}, c)
	require.NoError(t, err)
	assert.Empty(t, roster)

	page, _, err := f.chat.History(ctx, "r1", 10, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "before", page[0].Body)
	assert.Equal(t, "A", page[0].SenderID)
}

func TestDetachIgnoresReplacedConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	oldConn, newConn := &inbox{}, &inbox{}

	_, err := f.members.Join(ctx, "r1", domain.Participant{ID: "A"}, oldConn)
	require.NoError(t, err)
	_, err = f.members.Join(ctx, "r1", domain.Participant{ID: "A"}, newConn)
	require.NoError(t, err)

	assert.False(t, f.members.Detach(ctx, "r1", "A", oldConn))
	info, err := f.rooms.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ids(info.Participants))
}

func TestHistoryPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.members.Join(ctx, "r1", domain.Participant{ID: "A"}, &inbox{})
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		_, err := f.chat.Send(ctx, "r1", "A", nil, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	page, next, err := f.chat.History(ctx, "r1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, []int64{4, 5}, []int64{page[0].Seq, page[1].Seq})
	assert.Equal(t, int64(4), next)

	page, next, err = f.chat.History(ctx, "r1", 2, next)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, []int64{page[0].Seq, page[1].Seq})

	page, next, err = f.chat.History(ctx, "r1", 2, next)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(1), page[0].Seq)
	assert.Zero(t, next)
}

func TestListOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C"} {
		_, err := f.members.Join(ctx, "r1", domain.Participant{ID: id}, &inbox{})
		require.NoError(t, err)
	}
	others, err := f.members.ListOthers(ctx, "r1", "B")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "C"}, others)
	assert.NotContains(t, others, "B")
}
