// Package ws is the connection gateway: it decodes client envelopes,
// dispatches them to the broker services and encodes the results.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Dracko000/meet/internal/domain"
	"github.com/Dracko000/meet/internal/metrics"
	"github.com/Dracko000/meet/internal/registry"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type MemberSvc interface {
	Join(ctx context.Context, roomID string, p domain.Participant, peer registry.Peer) ([]domain.Participant, error)
	Detach(ctx context.Context, roomID, participantID string, peer registry.Peer) bool
}

type ChatSvc interface {
	Send(ctx context.Context, roomID, senderID string, via registry.Peer, body string) (domain.ChatMessage, error)
	History(ctx context.Context, roomID string, limit int, before int64) ([]domain.ChatMessage, int64, error)
	Relay(ctx context.Context, sig domain.Signal, via registry.Peer) error
}

const maxDisplayNameLen = 64

var validID = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

type Options struct {
	ReadLimit  int64
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
	RateLimit  float64 // inbound envelopes per second, 0 disables
	RateBurst  int

	CheckOrigin func(r *http.Request) bool
}

func (o *Options) setDefaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
	if o.CheckOrigin == nil {
		o.CheckOrigin = func(*http.Request) bool { return true }
	}
}

type Server struct {
	upgrader  websocket.Upgrader
	hub       *Hub
	memberSvc MemberSvc
	chatSvc   ChatSvc
	metrics   *metrics.Metrics
	opts      Options
}

func NewServer(member MemberSvc, chat ChatSvc, m *metrics.Metrics, opts Options) *Server {
	opts.setDefaults()
	return &Server{
		hub:       NewHub(),
		memberSvc: member,
		chatSvc:   chat,
		metrics:   m,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
}

// WS endpoint: GET /ws
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if s.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst)
	}
	c := newWsConn(conn, s.opts.SendBuffer, limiter)

	s.hub.Add(c)
	s.metrics.ConnOpened()
	defer func() {
		s.hub.Remove(c)
		s.metrics.ConnClosed()
	}()

	go s.writeLoop(c)
	s.readLoop(context.WithoutCancel(r.Context()), c)

	_ = c.Close()
	if c.roomID != "" {
		// abrupt or not, a closed transport is a leave
		s.memberSvc.Detach(context.Background(), c.roomID, c.participantID, c)
		slog.Debug("ws detached", "room", c.roomID, "participant", c.participantID)
	}
}

// Shutdown closes all open connections.
func (s *Server) Shutdown() {
	s.hub.CloseAll()
}

func (s *Server) Connections() int { return s.hub.Len() }

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	c.conn.SetReadLimit(s.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("ws read failed", "room", c.roomID, "participant", c.participantID, "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))

		if !c.limiter.Allow() {
			s.replyError(c, "", domain.ErrRateLimited)
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			s.replyError(c, "", fmt.Errorf("%w: malformed envelope", domain.ErrInvalidRequest))
			continue
		}
		if err := s.dispatch(ctx, c, env); err != nil {
			s.replyError(c, env.Type, err)
		}
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.opts.PongWait * 9 / 10)
	defer ticker.Stop()
	defer func() { _ = c.Close() }()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(writeDeadline(s.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, writeDeadline(s.opts.WriteWait)); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, c *wsConn, env Envelope) error {
	switch env.Type {
	case TypeJoin:
		var p JoinPayload
		if err := decode(env.Payload, &p); err != nil {
			return err
		}
		return s.handleJoin(ctx, c, p)

	case TypeLeave:
		var p LeavePayload
		if err := decode(env.Payload, &p); err != nil {
			return err
		}
		return s.handleLeave(ctx, c, p)

	case TypeOffer, TypeAnswer, TypeCandidate:
		var p SignalPayload
		if err := decode(env.Payload, &p); err != nil {
			return err
		}
		from, err := membership(c, p.RoomID)
		if err != nil {
			return err
		}
		if err := checkID("to_id", p.ToID); err != nil {
			return err
		}
		if len(p.Payload) == 0 || string(p.Payload) == "null" {
			return fmt.Errorf("%w: payload is required", domain.ErrInvalidRequest)
		}
		return s.chatSvc.Relay(ctx, domain.Signal{
			Kind:    domain.SignalKind(env.Type),
			RoomID:  p.RoomID,
			FromID:  from,
			ToID:    p.ToID,
			Payload: p.Payload,
		}, c)

	case TypeChatSend:
		var p ChatSendPayload
		if err := decode(env.Payload, &p); err != nil {
			return err
		}
		from, err := membership(c, p.RoomID)
		if err != nil {
			return err
		}
		msg, err := s.chatSvc.Send(ctx, p.RoomID, from, c, p.Body)
		if err != nil {
			return err
		}
		return c.Send(Message{
			Type: TypeChatAck,
			Payload: ChatAckPayload{
				RoomID:   msg.RoomID,
				Seq:      msg.Seq,
				TSUnixMs: msg.CreatedAt.UnixMilli(),
			},
		})

	case TypeHistoryRequest:
		var p HistoryRequestPayload
		if err := decode(env.Payload, &p); err != nil {
			return err
		}
		if err := checkID("room_id", p.RoomID); err != nil {
			return err
		}
		if p.Limit < 0 || p.Before < 0 {
			return fmt.Errorf("%w: limit and before must not be negative", domain.ErrInvalidRequest)
		}
		msgs, next, err := s.chatSvc.History(ctx, p.RoomID, p.Limit, p.Before)
		if err != nil {
			return err
		}
		out := make([]ChatPayload, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, chatPayload(m))
		}
		return c.Send(Message{
			Type:    TypeHistory,
			Payload: HistoryPayload{RoomID: p.RoomID, Messages: out, NextBefore: next},
		})

	default:
		return fmt.Errorf("%w: unknown message type %q", domain.ErrInvalidRequest, env.Type)
	}
}

func (s *Server) handleJoin(ctx context.Context, c *wsConn, p JoinPayload) error {
	if err := checkID("room_id", p.RoomID); err != nil {
		return err
	}
	pid := p.ParticipantID
	if pid == "" {
		pid = c.participantID
	}
	if pid == "" {
		pid = uuid.NewString()
	}
	if err := checkID("participant_id", pid); err != nil {
		return err
	}
	name := strings.TrimSpace(p.DisplayName)
	if utf8.RuneCountInString(name) > maxDisplayNameLen {
		return fmt.Errorf("%w: display_name longer than %d characters", domain.ErrInvalidRequest, maxDisplayNameLen)
	}

	// One membership per connection. A new identity in the same room drops
	// the old one first so it is not in the roster; a move to another room
	// keeps the current membership until the new join succeeds.
	if c.roomID == p.RoomID && c.participantID != pid {
		s.memberSvc.Detach(ctx, c.roomID, c.participantID, c)
		c.roomID, c.participantID = "", ""
	}
	roster, err := s.memberSvc.Join(ctx, p.RoomID, domain.Participant{ID: pid, DisplayName: name}, c)
	if err != nil {
		return err
	}
	if c.roomID != "" && c.roomID != p.RoomID {
		s.memberSvc.Detach(ctx, c.roomID, c.participantID, c)
	}
	c.roomID, c.participantID = p.RoomID, pid

	return c.Send(Message{
		Type: TypeJoined,
		Payload: JoinedPayload{
			RoomID:        p.RoomID,
			ParticipantID: pid,
			Roster:        participantItems(roster),
		},
	})
}

// handleLeave is idempotent: leaving a room the connection is not in is
// confirmed like any other leave.
func (s *Server) handleLeave(ctx context.Context, c *wsConn, p LeavePayload) error {
	if err := checkID("room_id", p.RoomID); err != nil {
		return err
	}
	pid := c.participantID
	if p.ParticipantID != "" && c.participantID != "" && p.ParticipantID != c.participantID {
		return fmt.Errorf("%w: cannot leave on behalf of another participant", domain.ErrInvalidRequest)
	}
	if pid == "" {
		pid = p.ParticipantID
	}

	if c.roomID == p.RoomID {
		s.memberSvc.Detach(ctx, c.roomID, c.participantID, c)
		c.roomID, c.participantID = "", ""
	}

	return c.Send(Message{
		Type:    TypeLeft,
		Payload: LeftPayload{RoomID: p.RoomID, ParticipantID: pid},
	})
}

func (s *Server) replyError(c *wsConn, typ string, err error) {
	kind := domain.KindOf(err)
	s.metrics.Error(string(kind))

	msg := err.Error()
	if kind == domain.KindInternal {
		slog.Error("ws request failed", "type", typ, "room", c.roomID, "participant", c.participantID, "err", err)
		msg = "internal error"
	}
	if sendErr := c.Send(Message{
		Type:    TypeError,
		Payload: ErrorPayload{Kind: string(kind), Message: msg, Type: typ},
	}); sendErr != nil {
		slog.Debug("ws error reply dropped", "type", typ, "err", sendErr)
	}
}

// membership returns the caller's participant id if the connection is in
// roomID.
func membership(c *wsConn, roomID string) (string, error) {
	if err := checkID("room_id", roomID); err != nil {
		return "", err
	}
	if c.roomID != roomID {
		return "", domain.ErrNotInRoom
	}
	return c.participantID, nil
}

func checkID(field, v string) error {
	if !validID.MatchString(v) {
		return fmt.Errorf("%w: invalid %s", domain.ErrInvalidRequest, field)
	}
	return nil
}

// --- helpers ---

func decode(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", domain.ErrInvalidRequest)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return fmt.Errorf("%w: malformed payload", domain.ErrInvalidRequest)
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}
