package transport

import (
	"net"
	"time"

	"github.com/xtaci/fecbridge/internal/codeparams"
	"github.com/xtaci/fecbridge/internal/fec"
	"github.com/xtaci/fecbridge/internal/payload"
	"github.com/xtaci/fecbridge/internal/wire"
)

// PacketSink is the narrow subset of net.Conn the emitter needs;
// satisfied directly by a *net.UDPConn dialed to its destination.
// Keeping this as an interface rather than a concrete *net.UDPConn
// keeps socket creation out of the protocol core.
type PacketSink interface {
	Write(p []byte) (n int, err error)
}

// EmitterConfig tunes the Datagram Emitter.
type EmitterConfig struct {
	FragmentSize     int
	TargetRedundancy float64
	MaxN             int
	MinK             int

	// InterPacketDelay paces consecutive datagrams so a fast sender does
	// not overrun the receiver's socket buffer. The reference value is
	// ~1ms; zero disables pacing entirely (useful in tests).
	InterPacketDelay time.Duration

	// DrainDelay is held after the final datagram of a message, before
	// Send returns, to give the kernel a chance to flush the socket
	// write queue. Zero disables it.
	DrainDelay time.Duration

	// Sleep, if set, replaces time.Sleep so tests can run without
	// actually waiting.
	Sleep func(time.Duration)
}

func (c EmitterConfig) withDefaults() EmitterConfig {
	if c.FragmentSize <= 0 {
		c.FragmentSize = codeparams.DefaultFragmentSize
	}
	if c.TargetRedundancy <= 0 {
		c.TargetRedundancy = codeparams.DefaultTargetRedundancy
	}
	if c.MaxN <= 0 {
		c.MaxN = codeparams.DefaultMaxN
	}
	if c.MinK <= 0 {
		c.MinK = codeparams.DefaultMinK
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	return c
}

// Emitter is the sender-side counterpart of the Reassembly Table: it
// frames a payload, selects code parameters, encodes each block, and
// writes one datagram per fragment to a PacketSink.
type Emitter struct {
	cfg    EmitterConfig
	coders map[coderKey]*fec.BlockCoder
}

// NewEmitter constructs an Emitter for the given configuration.
func NewEmitter(cfg EmitterConfig) *Emitter {
	return &Emitter{
		cfg:    cfg.withDefaults(),
		coders: make(map[coderKey]*fec.BlockCoder),
	}
}

// Send frames image and metadata into one payload, selects code
// parameters for it, and emits every fragment of every block as a
// single datagram on conn, pacing consecutive writes by
// InterPacketDelay. messageID identifies this message on the wire; the
// caller is responsible for picking one that is not already in flight.
// There are no retries and no feedback from the far side.
func (e *Emitter) Send(conn PacketSink, messageID uint32, image, metadata []byte) (codeparams.Params, error) {
	full := payload.Frame(image, metadata)

	params, err := codeparams.Select(len(full), e.cfg.FragmentSize, e.cfg.TargetRedundancy, e.cfg.MaxN, e.cfg.MinK)
	if err != nil {
		return codeparams.Params{}, err
	}

	coder, err := e.coderFor(params)
	if err != nil {
		return codeparams.Params{}, err
	}

	buf := make([]byte, wire.HeaderSize+params.FragmentSize)
	last := params.NumBlocks*params.N - 1
	sent := 0

	for b := 0; b < params.NumBlocks; b++ {
		start := b * params.BlockPayloadSize
		end := start + params.BlockPayloadSize
		var padLen int
		var block []byte
		if end <= len(full) {
			block = full[start:end]
		} else {
			block = make([]byte, params.BlockPayloadSize)
			if start < len(full) {
				copy(block, full[start:])
				padLen = params.BlockPayloadSize - (len(full) - start)
			} else {
				padLen = params.BlockPayloadSize
			}
		}

		fragments, err := coder.Encode(block)
		if err != nil {
			return codeparams.Params{}, err
		}

		h := wire.Header{
			N:         uint16(params.N),
			K:         uint16(params.K),
			PadLen:    uint32(padLen),
			BlockIdx:  uint32(b),
			NumBlocks: uint16(params.NumBlocks),
			MessageID: messageID,
		}

		for fragIdx, frag := range fragments {
			h.FragIdx = uint16(fragIdx)
			h.Encode(buf[:wire.HeaderSize])
			copy(buf[wire.HeaderSize:], frag)

			if _, err := conn.Write(buf); err != nil {
				return codeparams.Params{}, err
			}

			if sent != last && e.cfg.InterPacketDelay > 0 {
				e.cfg.Sleep(e.cfg.InterPacketDelay)
			}
			sent++
		}
	}

	if e.cfg.DrainDelay > 0 {
		e.cfg.Sleep(e.cfg.DrainDelay)
	}
	return params, nil
}

func (e *Emitter) coderFor(p codeparams.Params) (*fec.BlockCoder, error) {
	key := coderKey{k: p.K, n: p.N, fragmentSize: p.FragmentSize}
	if coder, ok := e.coders[key]; ok {
		return coder, nil
	}
	coder, err := fec.NewBlockCoder(p.K, p.N, p.FragmentSize)
	if err != nil {
		return nil, err
	}
	e.coders[key] = coder
	return coder, nil
}

var _ PacketSink = (*net.UDPConn)(nil)
