package transport

import (
	"net"

	"github.com/xtaci/fecbridge/internal/sinks"
	"github.com/xtaci/fecbridge/internal/transporterr"
	"github.com/xtaci/fecbridge/internal/wire"
)

func kindOf(err error) (string, bool) {
	k, ok := transporterr.KindOf(err)
	if !ok {
		return "", false
	}
	return k.String(), true
}

// EventLogger receives one call per datagram outcome, for the
// structured event trail (message open, block decode, message decode,
// drop/failure). Implementations are expected to be cheap; the
// receive loop calls this synchronously on its single goroutine.
type EventLogger interface {
	Received(messageID uint32)
	Dropped(messageID uint32, blockIdx uint32, kind string, err error)
	BlockDecoded(messageID uint32, blockIdx uint32)
	MessageOpened(messageID uint32, k, n, numBlocks int)
	MessageCompleted(messageID uint32, imageLen, metadataLen int)
	MessageStale(messageID uint32)
}

// noopLogger discards every event; used when no logger is supplied.
type noopLogger struct{}

func (noopLogger) Received(uint32)                       {}
func (noopLogger) Dropped(uint32, uint32, string, error) {}
func (noopLogger) BlockDecoded(uint32, uint32)           {}
func (noopLogger) MessageOpened(uint32, int, int, int)   {}
func (noopLogger) MessageCompleted(uint32, int, int)     {}
func (noopLogger) MessageStale(uint32)                   {}

// Receiver drives the Table with a live datagram source and dispatches
// completed messages to the sink interfaces.
type Receiver struct {
	Table    *Table
	Image    sinks.ImageSink
	Metadata sinks.MetadataSink
	Logger   EventLogger
}

// NewReceiver constructs a Receiver around an existing Table.
func NewReceiver(table *Table, image sinks.ImageSink, metadata sinks.MetadataSink, logger EventLogger) *Receiver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Receiver{
		Table:    table,
		Image:    image,
		Metadata: metadata,
		Logger:   logger,
	}
}

// HandleDatagram processes one already-read datagram and dispatches
// sinks on message completion. It returns a non-nil error only for
// the fatal class of failures (PayloadDeframeFailed with
// FatalOnDeframeError set); all other drop/failure kinds are logged
// and absorbed so the caller's receive loop can keep running.
func (r *Receiver) HandleDatagram(datagram []byte) error {
	res := r.Table.Ingest(datagram)
	r.Logger.Received(res.MessageID)

	switch res.Outcome {
	case OutcomeDropped:
		kind := "Unknown"
		if res.Err != nil {
			if k, ok := kindOf(res.Err); ok {
				kind = k
			}
		}
		r.Logger.Dropped(res.MessageID, res.BlockIdx, kind, res.Err)
		if isFatalDeframeFailure(res.Err) && r.Table.FatalOnDeframeError() {
			return res.Err
		}
		return nil
	case OutcomeStored:
		if res.NewMessage {
			r.Logger.MessageOpened(res.MessageID, res.K, res.N, res.NumBlocks)
		}
		return nil
	case OutcomeBlockDecoded:
		if res.NewMessage {
			r.Logger.MessageOpened(res.MessageID, res.K, res.N, res.NumBlocks)
		}
		r.Logger.BlockDecoded(res.MessageID, res.BlockIdx)
		return nil
	case OutcomeMessageCompleted:
		if res.NewMessage {
			r.Logger.MessageOpened(res.MessageID, res.K, res.N, res.NumBlocks)
		}
		r.Logger.BlockDecoded(res.MessageID, res.BlockIdx)
		r.Logger.MessageCompleted(res.MessageID, len(res.Image), len(res.Metadata))
		if err := r.dispatch(res); err != nil {
			tagged := transporterr.New(transporterr.KindPayloadDeframeFailed, err)
			r.Logger.Dropped(res.MessageID, res.BlockIdx, transporterr.KindPayloadDeframeFailed.String(), tagged)
			if r.Table.FatalOnDeframeError() {
				return tagged
			}
		}
		return nil
	}
	return nil
}

// dispatch hands the reconstructed pair to the sinks. A sink rejecting
// its bytes (image decode failure, metadata parse failure downstream)
// is the sink-side half of PayloadDeframeFailed; the message entry is
// already destroyed by the time dispatch runs.
func (r *Receiver) dispatch(res Result) error {
	if r.Image != nil {
		if err := r.Image(res.Image); err != nil {
			return err
		}
	}
	if r.Metadata != nil {
		if err := r.Metadata(res.Metadata); err != nil {
			return err
		}
	}
	return nil
}

// PacketSource is the narrow subset of net.PacketConn the receive loop
// needs; satisfied directly by *net.UDPConn. Modeling this as an
// interface (rather than depending on *net.UDPConn concretely) keeps
// socket creation out of the protocol core: the loop only ever calls
// ReadFrom.
type PacketSource interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
}

// Serve runs the unbounded receive loop: one ReadFrom per iteration,
// all table mutation happening between reads on a single goroutine. It
// returns when ReadFrom returns an error (including the socket being
// closed for shutdown), or when HandleDatagram reports a fatal error.
func (r *Receiver) Serve(conn PacketSource, fragmentSize int) error {
	// One spare byte so an oversize datagram reads as n > HeaderSize +
	// fragmentSize and fails the exact-length check, instead of being
	// truncated by ReadFrom into a datagram that looks well-formed.
	buf := make([]byte, wire.HeaderSize+fragmentSize+1)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		if err := r.HandleDatagram(buf[:n]); err != nil {
			return err
		}
	}
}

func isFatalDeframeFailure(err error) bool {
	k, ok := kindOf(err)
	return ok && k == "PayloadDeframeFailed"
}
