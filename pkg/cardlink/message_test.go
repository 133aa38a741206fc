package cardlink

import (
	"bytes"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(n int) []byte {
	return lo.Times(n, func(i int) byte { return byte(i) })
}

func TestNewMessage_Frames(t *testing.T) {
	for _, tc := range []struct {
		size   int
		frames int
	}{
		{0, 1},
		{61, 1},
		{62, 2},
		{61 + 63, 2},
		{61 + 63 + 1, 3},
		{MaxPayload(64), 129},
	} {
		data := payload(tc.size)
		msg, err := NewMessage(InsPutContainer, data, 64)
		require.NoError(t, err)
		assert.Len(t, msg, tc.frames, "payload %d", tc.size)

		buf := bytes.NewBuffer(nil)
		n, err := msg.WriteTo(buf)
		require.NoError(t, err)
		assert.Equal(t, int64(64*tc.frames), n)

		frames := lo.Chunk(buf.Bytes(), 64)
		assert.Equal(t, byte(InsPutContainer)|INIT_FRAME_BIT, frames[0][0])
		for i, f := range frames[1:] {
			assert.Equal(t, byte(i), f[0])
		}

		got, err := ReadMessage(buf, 64)
		require.NoError(t, err)
		assert.Equal(t, InsPutContainer, got.Instruction())
		assert.Equal(t, data, got.Payload())
		assert.Zero(t, buf.Len())
	}
}

func TestNewMessage_Limits(t *testing.T) {
	_, err := NewMessage(InsMatch, payload(MaxPayload(64)+1), 64)
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	_, err = NewMessage(InsMatch, nil, 4)
	assert.ErrorIs(t, err, ErrInvalidReportSize)

	assert.Equal(t, 0xFFFF, MaxPayload(1024))
}

func TestReadMessage_ReportSizes(t *testing.T) {
	data := payload(300)
	for _, size := range []int{8, 32, 64, 65} {
		msg, err := NewMessage(InsMatch, data, size)
		require.NoError(t, err)

		buf := bytes.NewBuffer(nil)
		_, err = msg.WriteTo(buf)
		require.NoError(t, err)

		got, err := ReadMessage(buf, size)
		require.NoError(t, err)
		assert.Equal(t, data, got.Payload())
	}
}

func TestReadMessage_Errors(t *testing.T) {
	msg, err := NewMessage(InsMatch, payload(200), 64)
	require.NoError(t, err)
	buf := bytes.NewBuffer(nil)
	_, err = msg.WriteTo(buf)
	require.NoError(t, err)
	wire := buf.Bytes()

	_, err = ReadMessage(bytes.NewReader(wire[64:]), 64)
	assert.ErrorIs(t, err, ErrUnexpectedFrame)

	swapped := bytes.Clone(wire)
	swapped[64] = 1
	r := bytes.NewReader(swapped)
	_, err = ReadMessage(r, 64)
	assert.ErrorIs(t, err, ErrInvalidSequence)
	assert.Zero(t, r.Len())

	_, err = ReadMessage(bytes.NewReader(wire[:100]), 64)
	assert.Error(t, err)
}
