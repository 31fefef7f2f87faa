// Package sinks defines the narrow function-shaped interfaces through
// which the protocol core exchanges opaque bytes with its external
// collaborators: JPEG encode/decode, JSON parse/emit, and file I/O.
// The core never calls
// into an image or JSON library directly; it only ever calls one of
// these four functions, so a test can substitute an in-memory stand-in
// and a production binary can substitute a real file or message-bus
// reader/writer without touching the protocol core.
package sinks

// ImageSource supplies the sender with the already-JPEG-encoded source
// image bytes.
type ImageSource func() ([]byte, error)

// MetadataSource supplies the sender with the compact UTF-8 JSON metadata
// document bytes.
type MetadataSource func() ([]byte, error)

// ImageSink receives the reconstructed JPEG image bytes on the receiver
// side. It is handed exactly the bytes the paired ImageSource returned on
// the sender side.
type ImageSink func([]byte) error

// MetadataSink receives the reconstructed, zero-trimmed UTF-8 JSON
// metadata bytes on the receiver side.
type MetadataSink func([]byte) error
