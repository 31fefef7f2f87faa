// Package fec implements the Block Encoder and Block Decoder: the
// erasure-coding core that turns K data fragments into N coded fragments
// and recovers the K data fragments from any K of the N.
//
// The decoder may be handed an arbitrary K-of-N subset that contains
// zero data shards, so it calls codec.Reconstruct (which rebuilds both
// data and parity shards) rather than the cheaper ReconstructData, and
// then reads back only the leading K (data) shards.
package fec

import (
	"github.com/klauspost/reedsolomon"

	"github.com/xtaci/fecbridge/internal/transporterr"
)

// BlockCoder encodes and decodes blocks for a fixed (K, N, fragmentSize)
// triple. A BlockCoder is safe for reuse across many blocks of the same
// message, but not for concurrent use by multiple goroutines; the
// receive loop that drives it is single-threaded.
type BlockCoder struct {
	k, n         int
	fragmentSize int
	codec        reedsolomon.Encoder
}

// NewBlockCoder constructs a BlockCoder for k data shards, n total shards,
// each fragmentSize bytes.
func NewBlockCoder(k, n, fragmentSize int) (*BlockCoder, error) {
	if k <= 0 || n <= k {
		return nil, transporterr.New(transporterr.KindInvalidCodeParameters, nil)
	}
	codec, err := reedsolomon.New(k, n-k)
	if err != nil {
		return nil, err
	}
	return &BlockCoder{k: k, n: n, fragmentSize: fragmentSize, codec: codec}, nil
}

// Encode splits a block of exactly K*fragmentSize bytes into K data
// fragments and appends N-K parity fragments, returning all N fragments
// of exactly fragmentSize bytes each in order.
func (c *BlockCoder) Encode(block []byte) ([][]byte, error) {
	if len(block) != c.k*c.fragmentSize {
		return nil, transporterr.New(transporterr.KindEncoderInvariantViolation, nil)
	}

	shards := make([][]byte, c.n)
	for i := 0; i < c.k; i++ {
		shards[i] = block[i*c.fragmentSize : (i+1)*c.fragmentSize]
	}
	for i := c.k; i < c.n; i++ {
		shards[i] = make([]byte, c.fragmentSize)
	}

	if err := c.codec.Encode(shards); err != nil {
		return nil, transporterr.New(transporterr.KindEncoderInvariantViolation, err)
	}

	for _, s := range shards {
		if len(s) != c.fragmentSize {
			return nil, transporterr.New(transporterr.KindEncoderInvariantViolation, nil)
		}
	}
	return shards, nil
}

// Fragment is one (index, data) pair handed to Decode.
type Fragment struct {
	Index int
	Data  []byte
}

// Decode recovers the original K*fragmentSize data block from any K of
// the N fragments, then trims padLen trailing zero bytes. fragments must
// contain exactly K entries with pairwise-distinct indices in [0, N).
func (c *BlockCoder) Decode(fragments []Fragment, padLen int) ([]byte, error) {
	if len(fragments) != c.k {
		return nil, transporterr.New(transporterr.KindBlockDecodeFailed, nil)
	}

	shards := make([][]byte, c.n)
	for _, f := range fragments {
		if f.Index < 0 || f.Index >= c.n {
			return nil, transporterr.New(transporterr.KindBlockDecodeFailed, nil)
		}
		if shards[f.Index] != nil {
			return nil, transporterr.New(transporterr.KindBlockDecodeFailed, nil)
		}
		if len(f.Data) != c.fragmentSize {
			return nil, transporterr.New(transporterr.KindBlockDecodeFailed, nil)
		}
		shards[f.Index] = f.Data
	}

	if err := c.codec.Reconstruct(shards); err != nil {
		return nil, transporterr.New(transporterr.KindBlockDecodeFailed, err)
	}

	blockPayloadSize := c.k * c.fragmentSize
	if padLen < 0 || padLen > blockPayloadSize {
		return nil, transporterr.New(transporterr.KindBlockDecodeFailed, nil)
	}

	data := make([]byte, 0, blockPayloadSize)
	for i := 0; i < c.k; i++ {
		data = append(data, shards[i]...)
	}
	return data[:blockPayloadSize-padLen], nil
}
