package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestHeaderRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := Header{
			MessageID: rapid.Uint32().Draw(t, "message_id"),
			FragIdx:   rapid.Uint16().Draw(t, "frag_idx"),
			N:         rapid.Uint16().Draw(t, "n"),
			K:         rapid.Uint16().Draw(t, "k"),
			PadLen:    rapid.Uint32().Draw(t, "padlen"),
			BlockIdx:  rapid.Uint32().Draw(t, "block_idx"),
			NumBlocks: rapid.Uint16().Draw(t, "num_blocks"),
		}

		buf := make([]byte, HeaderSize)
		h.Encode(buf)
		got := Decode(buf)
		require.Equal(t, h, got)
	})
}

func TestHeaderLittleEndianLayout(t *testing.T) {
	h := Header{
		MessageID: 0x01020304,
		FragIdx:   0x0506,
		N:         0x0708,
		K:         0x090a,
		PadLen:    0x0b0c0d0e,
		BlockIdx:  0x0f101112,
		NumBlocks: 0x1314,
	}
	buf := make([]byte, HeaderSize)
	h.Encode(buf)

	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf[0:4])
	require.Equal(t, []byte{0x06, 0x05}, buf[4:6])
	require.Equal(t, []byte{0x08, 0x07}, buf[6:8])
	require.Equal(t, []byte{0x0a, 0x09}, buf[8:10])
	require.Equal(t, []byte{0x0e, 0x0d, 0x0c, 0x0b}, buf[10:14])
	require.Equal(t, []byte{0x12, 0x11, 0x10, 0x0f}, buf[14:18])
	require.Equal(t, []byte{0x14, 0x13}, buf[18:20])
}
