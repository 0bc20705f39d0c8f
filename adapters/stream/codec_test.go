package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID     string    `msgpack:"id"`
	Amount int64     `msgpack:"amount"`
	At     time.Time `msgpack:"at"`
}

func TestEncodeDecodeMessage(t *testing.T) {
	t.Run("round trips a struct", func(t *testing.T) {
		in := payload{ID: "auction-1", Amount: 8700, At: time.Now().Truncate(time.Millisecond)}

		encoded, err := EncodeMessage(in)
		require.NoError(t, err)
		require.Contains(t, encoded, "data")

		out, err := DecodeMessage[payload](encoded)
		require.NoError(t, err)
		assert.Equal(t, in.ID, out.ID)
		assert.Equal(t, in.Amount, out.Amount)
		assert.True(t, in.At.Equal(out.At))
	})

	t.Run("rejects pointer types", func(t *testing.T) {
		_, err := EncodeMessage(&payload{})
		assert.ErrorIs(t, err, ErrPointerType)

		_, err = DecodeMessage[*payload](map[string]any{"data": ""})
		assert.ErrorIs(t, err, ErrPointerType)
	})

	t.Run("empty message decodes to zero value", func(t *testing.T) {
		out, err := DecodeMessage[payload](nil)
		require.NoError(t, err)
		assert.Zero(t, out.Amount)
	})

	t.Run("missing data field fails", func(t *testing.T) {
		_, err := DecodeMessage[payload](map[string]any{"other": 1})
		assert.Error(t, err)
	})

	t.Run("invalid base64 fails", func(t *testing.T) {
		_, err := DecodeMessage[payload](map[string]any{"data": "not base64!"})
		assert.Error(t, err)
	})
}
