package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTrip(t *testing.T) {
	s, err := EncodeCursor(Cursor{RoomID: "r1", Before: 42})
	require.NoError(t, err)

	c, err := DecodeCursor(s)
	require.NoError(t, err)
	assert.Equal(t, "r1", c.RoomID)
	assert.Equal(t, int64(42), c.Before)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, c)

	for _, in := range []string{"%%%", "bm90LWpzb24", "eyJiZWZvcmUiOjB9"} {
		_, err := DecodeCursor(in)
		assert.ErrorIs(t, err, ErrInvalidCursor, in)
	}
}
