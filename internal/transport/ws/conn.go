package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Dracko000/meet/internal/domain"
	"github.com/Dracko000/meet/internal/registry"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var (
	errConnClosed = errors.New("connection closed")
	errSendFull   = errors.New("send buffer full")
)

// wsConn is one client connection. Outbound messages go through a bounded
// queue drained by the write loop; a full queue drops the message for this
// connection only.
type wsConn struct {
	conn    *websocket.Conn
	send    chan []byte
	closed  chan struct{}
	once    sync.Once
	limiter *rate.Limiter

	// Current membership. Only the read loop touches these.
	roomID        string
	participantID string
}

var _ registry.Peer = (*wsConn)(nil)

func newWsConn(c *websocket.Conn, sendBuffer int, limiter *rate.Limiter) *wsConn {
	return &wsConn{
		conn:    c,
		send:    make(chan []byte, sendBuffer),
		closed:  make(chan struct{}),
		limiter: limiter,
	}
}

func (c *wsConn) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendFull
	}
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) DeliverSignal(sig domain.Signal) error {
	return c.Send(Message{
		Type: string(sig.Kind),
		Payload: RelayedSignalPayload{
			RoomID:  sig.RoomID,
			FromID:  sig.FromID,
			Payload: sig.Payload,
		},
	})
}

func (c *wsConn) DeliverChat(msg domain.ChatMessage) error {
	return c.Send(Message{Type: TypeChat, Payload: chatPayload(msg)})
}

func (c *wsConn) DeliverPresence(ev domain.PresenceEvent) error {
	typ := TypePeerLeft
	if ev.Joined {
		typ = TypePeerJoined
	}
	return c.Send(Message{
		Type: typ,
		Payload: PeerEventPayload{
			RoomID:        ev.RoomID,
			ParticipantID: ev.ParticipantID,
			DisplayName:   ev.DisplayName,
		},
	})
}

func chatPayload(m domain.ChatMessage) ChatPayload {
	return ChatPayload{
		RoomID:   m.RoomID,
		Seq:      m.Seq,
		SenderID: m.SenderID,
		Body:     m.Body,
		TSUnixMs: m.CreatedAt.UnixMilli(),
	}
}

func participantItems(ps []domain.Participant) []ParticipantItem {
	items := make([]ParticipantItem, 0, len(ps))
	for _, p := range ps {
		items = append(items, ParticipantItem{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			JoinedAt:      p.JoinedAt.Unix(),
		})
	}
	return items
}

func writeDeadline(d time.Duration) time.Time { return time.Now().Add(d) }
