package grpcx

import (
	"context"
	"math"
	"time"

	"github.com/Dracko000/meet/internal/domain"
	"github.com/Dracko000/meet/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Server struct {
	roomSvc *service.RoomService
	chatSvc *service.ChatService
}

var _ RoomsServer = (*Server)(nil)

func NewServer(roomSvc *service.RoomService, chatSvc *service.ChatService) *Server {
	return &Server{roomSvc: roomSvc, chatSvc: chatSvc}
}

func Register(grpcServer *grpc.Server, s *Server) {
	RegisterRoomsServer(grpcServer, s)
}

func (s *Server) CreateRoom(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	id, err := s.roomSvc.CreateRoom(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(id), nil
}

func (s *Server) GetRoom(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "room id is required")
	}
	room, err := s.roomSvc.GetRoom(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	parts := make([]any, 0, len(room.Participants))
	for _, p := range room.Participants {
		parts = append(parts, map[string]any{
			"participant_id": p.ID,
			"display_name":   p.DisplayName,
			"joined_at":      p.JoinedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	out, err := structpb.NewStruct(map[string]any{
		"room_id":      room.ID,
		"created_at":   room.CreatedAt.UTC().Format(time.RFC3339Nano),
		"participants": parts,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// History takes {room_id, limit?, before?}.
func (s *Server) History(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	roomID := fields["room_id"].GetStringValue()
	if roomID == "" {
		return nil, status.Error(codes.InvalidArgument, "room_id is required")
	}
	limit, ok := wholeNumber(fields["limit"])
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "limit must be a non-negative integer")
	}
	before, ok := wholeNumber(fields["before"])
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "before must be a non-negative integer")
	}

	msgs, next, err := s.chatSvc.History(ctx, roomID, int(limit), before)
	if err != nil {
		return nil, toStatus(err)
	}

	items := make([]any, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, map[string]any{
			"seq":        m.Seq,
			"sender_id":  m.SenderID,
			"body":       m.Body,
			"created_at": m.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	out, err := structpb.NewStruct(map[string]any{
		"room_id":     roomID,
		"messages":    items,
		"next_before": next,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// wholeNumber reads an optional non-negative integer field.
func wholeNumber(v *structpb.Value) (int64, bool) {
	if v == nil {
		return 0, true
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return 0, true
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range
	if !isNum || n.NumberValue < 0 || n.NumberValue >= float64(math.MaxInt64) || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, false
	}
	return int64(n.NumberValue), true
}

func toStatus(err error) error {
	var code codes.Code
	switch domain.KindOf(err) {
	case domain.KindInvalidRequest:
		code = codes.InvalidArgument
	case domain.KindNotFound:
		code = codes.NotFound
	case domain.KindResourceExhausted:
		code = codes.ResourceExhausted
	case domain.KindPersistenceFailure:
		code = codes.Unavailable
	case domain.KindUnauthorized:
		code = codes.Unauthenticated
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
