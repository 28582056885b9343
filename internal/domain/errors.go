package domain

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrRoomNotFound   = errors.New("room not found")
	ErrTargetNotFound = errors.New("target participant not in room")
	ErrNotInRoom      = errors.New("participant not in room")
	ErrRegistryFull   = errors.New("room registry is at capacity")
	ErrRoomFull       = errors.New("room is full")
	ErrRateLimited    = errors.New("too many requests")
	ErrPersistence    = errors.New("chat history unavailable")
	ErrUnauthorized   = errors.New("unauthorized")
)

// Kind is the error class reported to clients.
type Kind string

const (
	KindInvalidRequest     Kind = "invalid_request"
	KindNotFound           Kind = "not_found"
	KindResourceExhausted  Kind = "resource_exhausted"
	KindPersistenceFailure Kind = "persistence_failure"
	KindUnauthorized       Kind = "unauthorized"
	KindInternal           Kind = "internal"
)

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrNotInRoom):
		return KindInvalidRequest
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrTargetNotFound):
		return KindNotFound
	case errors.Is(err, ErrRegistryFull), errors.Is(err, ErrRoomFull), errors.Is(err, ErrRateLimited):
		return KindResourceExhausted
	case errors.Is(err, ErrPersistence):
		return KindPersistenceFailure
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}
