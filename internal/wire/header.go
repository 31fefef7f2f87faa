// Package wire defines the fixed binary header carried by every datagram of
// the FEC transport protocol.
package wire

import "encoding/binary"

// HeaderSize is the fixed, little-endian header prepended to every coded
// fragment before it is sent as a datagram.
const HeaderSize = 20

// Header is the decoded form of the 20-byte fragment header described in
// the wire format: message id, fragment position, code parameters, and
// block position, in that order.
type Header struct {
	MessageID uint32
	FragIdx   uint16
	N         uint16
	K         uint16
	PadLen    uint32
	BlockIdx  uint32
	NumBlocks uint16
}

// Encode writes h into the first HeaderSize bytes of dst. dst must be at
// least HeaderSize bytes long.
func (h Header) Encode(dst []byte) {
	_ = dst[HeaderSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], h.MessageID)
	binary.LittleEndian.PutUint16(dst[4:6], h.FragIdx)
	binary.LittleEndian.PutUint16(dst[6:8], h.N)
	binary.LittleEndian.PutUint16(dst[8:10], h.K)
	binary.LittleEndian.PutUint32(dst[10:14], h.PadLen)
	binary.LittleEndian.PutUint32(dst[14:18], h.BlockIdx)
	binary.LittleEndian.PutUint16(dst[18:20], h.NumBlocks)
}

// Decode parses the first HeaderSize bytes of src into a Header. src must
// be at least HeaderSize bytes long.
func Decode(src []byte) Header {
	_ = src[HeaderSize-1]
	return Header{
		MessageID: binary.LittleEndian.Uint32(src[0:4]),
		FragIdx:   binary.LittleEndian.Uint16(src[4:6]),
		N:         binary.LittleEndian.Uint16(src[6:8]),
		K:         binary.LittleEndian.Uint16(src[8:10]),
		PadLen:    binary.LittleEndian.Uint32(src[10:14]),
		BlockIdx:  binary.LittleEndian.Uint32(src[14:18]),
		NumBlocks: binary.LittleEndian.Uint16(src[18:20]),
	}
}
