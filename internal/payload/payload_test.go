package payload

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFrameDeframeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		image := rapid.SliceOfN(rapid.Byte(), 0, 4096).Draw(t, "image")
		// Metadata without trailing zero bytes round-trips exactly;
		// trailing zero bytes are indistinguishable from block padding,
		// so the generator avoids them to test the well-behaved case.
		metadata := rapid.SliceOfN(rapid.Uint8Range(1, 255), 0, 1024).Draw(t, "metadata")

		framed := Frame(image, metadata)
		gotImage, gotMetadata, err := Deframe(framed)
		require.NoError(t, err)
		require.Equal(t, image, gotImage)
		require.Equal(t, metadata, gotMetadata)
	})
}

func TestDeframeTruncated(t *testing.T) {
	_, _, err := Deframe([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrTruncatedPayload)
}

func TestDeframeImageLenOverrun(t *testing.T) {
	framed := Frame([]byte("ab"), []byte("cd"))
	// corrupt the length prefix to claim more bytes than exist
	framed[0] = 0xff
	_, _, err := Deframe(framed)
	require.ErrorIs(t, err, ErrTruncatedPayload)
}

func TestMinimalPayloadLayout(t *testing.T) {
	// the smallest interesting payload: 3 image bytes and an empty JSON
	// object, laid out as [u32 len][image][metadata]
	framed := Frame([]byte{0x01, 0x02, 0x03}, []byte("{}"))
	require.Equal(t, []byte{0x03, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03, 0x7B, 0x7D}, framed)

	image, metadata, err := Deframe(framed)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, image)
	require.Equal(t, "{}", string(metadata))
}
