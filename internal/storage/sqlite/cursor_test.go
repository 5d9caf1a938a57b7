package sqlite

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/eqchat/internal/core"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC)

	token := encodeCursor(at, 917)
	createdAt, id, err := decodeCursor(token)

	require.NoError(t, err)
	assert.True(t, at.Equal(createdAt))
	assert.EqualValues(t, 917, id)
}

func TestDecodeCursorRejectsCorruptedTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%not-base64%%%"},
		{name: "base64 but not json", token: base64.RawURLEncoding.EncodeToString([]byte("hello"))},
		{name: "bad timestamp", token: base64.RawURLEncoding.EncodeToString([]byte(`{"last_created_at":"yesterday","last_id":"1"}`))},
		{name: "bad id", token: base64.RawURLEncoding.EncodeToString([]byte(`{"last_created_at":"2025-06-01T12:00:00Z","last_id":"abc"}`))},
		{name: "empty payload", token: base64.RawURLEncoding.EncodeToString([]byte(`{}`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decodeCursor(tt.token)
			require.ErrorIs(t, err, core.ErrInvalidCursor)
		})
	}
}
