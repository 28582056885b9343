package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"invalid", fmt.Errorf("decode: %w", ErrInvalidRequest), KindInvalidRequest},
		{"not joined", ErrNotInRoom, KindInvalidRequest},
		{"room", ErrRoomNotFound, KindNotFound},
		{"target", fmt.Errorf("relay offer: %w", ErrTargetNotFound), KindNotFound},
		{"registry", ErrRegistryFull, KindResourceExhausted},
		{"room full", ErrRoomFull, KindResourceExhausted},
		{"rate", ErrRateLimited, KindResourceExhausted},
		{"store", fmt.Errorf("%w: %w", ErrPersistence, errors.New("conn refused")), KindPersistenceFailure},
		{"auth", ErrUnauthorized, KindUnauthorized},
		{"other", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}
