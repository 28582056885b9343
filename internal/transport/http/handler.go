package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dracko000/meet/internal/domain"
	"github.com/Dracko000/meet/internal/history"
	"github.com/Dracko000/meet/internal/logger"
	"github.com/Dracko000/meet/internal/service"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	roomSvc   *service.RoomService
	chatSvc   *service.ChatService
	clientCfg ClientConfig
}

func NewHandler(room *service.RoomService, chat *service.ChatService, clientCfg ClientConfig) *Handler {
	return &Handler{
		roomSvc:   room,
		chatSvc:   chat,
		clientCfg: clientCfg,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindResourceExhausted:
		return http.StatusTooManyRequests
	case domain.KindPersistenceFailure:
		return http.StatusServiceUnavailable
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("handler."+op, "err", err)
		if kind == domain.KindInternal {
			msg = "internal error"
		}
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: string(kind)})
}

// POST /rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := h.roomSvc.CreateRoom(r.Context())
	if err != nil {
		h.writeError(w, r, "CreateRoom", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateRoomResponse{RoomID: id})
}

// GET /rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomSvc.GetRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "GetRoom", err)
		return
	}
	writeJSON(w, http.StatusOK, RoomResponse{
		RoomID:       room.ID,
		CreatedAt:    room.CreatedAt,
		Participants: participantItems(room.Participants),
	})
}

// GET /rooms/{id}/participants
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	parts, err := h.roomSvc.ListParticipants(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "GetParticipants", err)
		return
	}
	writeJSON(w, http.StatusOK, ParticipantsResponse{Items: participantItems(parts)})
}

// GET /rooms/{id}/chat?limit=&cursor=
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.writeError(w, r, "GetChatHistory", fmt.Errorf("%w: invalid limit", domain.ErrInvalidRequest))
			return
		}
		limit = n
	}

	var before int64
	cur, err := history.DecodeCursor(r.URL.Query().Get("cursor"))
	switch {
	case err != nil:
		h.writeError(w, r, "GetChatHistory", fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
		return
	case cur != nil && cur.RoomID != roomID:
		h.writeError(w, r, "GetChatHistory", fmt.Errorf("%w: %w: cursor belongs to another room", domain.ErrInvalidRequest, history.ErrInvalidCursor))
		return
	case cur != nil:
		before = cur.Before
	}

	msgs, next, err := h.chatSvc.History(r.Context(), roomID, limit, before)
	if err != nil {
		h.writeError(w, r, "GetChatHistory", err)
		return
	}

	resp := ChatHistoryResponse{Items: make([]ChatMessageItem, 0, len(msgs))}
	for _, m := range msgs {
		resp.Items = append(resp.Items, ChatMessageItem{
			Seq:       m.Seq,
			SenderID:  m.SenderID,
			Body:      m.Body,
			CreatedAt: m.CreatedAt,
		})
	}
	if next > 0 {
		resp.NextCursor, err = history.EncodeCursor(history.Cursor{RoomID: roomID, Before: next})
		if err != nil {
			h.writeError(w, r, "GetChatHistory", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /config
func (h *Handler) GetClientConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.clientCfg)
}

func participantItems(ps []domain.Participant) []ParticipantItem {
	items := make([]ParticipantItem, 0, len(ps))
	for _, p := range ps {
		items = append(items, ParticipantItem{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			JoinedAt:      p.JoinedAt,
		})
	}
	return items
}

