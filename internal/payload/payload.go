// Package payload implements the Payload Framer and Payload Deframer: the
// pure byte-level concatenation/extraction of an image and a metadata
// document into and out of the single byte string that gets striped
// across FEC blocks.
package payload

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// LengthPrefixSize is the width of the leading image-length field.
const LengthPrefixSize = 4

// Frame concatenates image and metadata into the wire payload:
// u32_le(len(image)) ‖ image ‖ metadata. It performs no validation of
// either buffer's internal structure.
func Frame(image, metadata []byte) []byte {
	out := make([]byte, LengthPrefixSize+len(image)+len(metadata))
	binary.LittleEndian.PutUint32(out[0:LengthPrefixSize], uint32(len(image)))
	copy(out[LengthPrefixSize:], image)
	copy(out[LengthPrefixSize+len(image):], metadata)
	return out
}

// ErrTruncatedPayload is returned by Deframe when the reconstructed bytes
// are too short to contain even the length prefix, or the declared image
// length overruns the available bytes.
var ErrTruncatedPayload = errors.New("payload: truncated reconstructed payload")

// Deframe reverses Frame. It reads the leading length prefix, slices out
// the image bytes, and right-trims the remaining metadata bytes of the
// zero padding introduced by the terminal block. Both returned slices
// alias full. Trailing zero bytes that are part of legitimate metadata
// content are indistinguishable from padding and are stripped along
// with it.
func Deframe(full []byte) (image, metadata []byte, err error) {
	if len(full) < LengthPrefixSize {
		return nil, nil, errors.WithStack(ErrTruncatedPayload)
	}
	imageLen := int(binary.LittleEndian.Uint32(full[0:LengthPrefixSize]))
	if imageLen < 0 || LengthPrefixSize+imageLen > len(full) {
		return nil, nil, errors.WithStack(ErrTruncatedPayload)
	}
	image = full[LengthPrefixSize : LengthPrefixSize+imageLen]
	metadata = bytes.TrimRight(full[LengthPrefixSize+imageLen:], "\x00")
	return image, metadata, nil
}
