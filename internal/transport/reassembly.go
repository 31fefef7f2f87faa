// Package transport implements the Datagram Receiver, the Reassembly
// Table, and the Datagram Emitter: the stateful half of the protocol that
// tolerates loss, duplication, reordering, interleaving of messages, and
// cross-message contamination.
//
// The three-level message -> block -> slot lookup is modeled as explicit
// typed records (messageEntry, blockState) rather than a generic
// map[string]any tree.
package transport

import (
	"sync/atomic"
	"time"

	"github.com/xtaci/fecbridge/internal/codeparams"
	"github.com/xtaci/fecbridge/internal/fec"
	"github.com/xtaci/fecbridge/internal/payload"
	"github.com/xtaci/fecbridge/internal/transporterr"
	"github.com/xtaci/fecbridge/internal/wire"
)

// blockState is the per-block reassembly bookkeeping: a nullable
// fragment slot per index, the set of filled slots in arrival order, and
// the block's locked-in padlen.
type blockState struct {
	fragments [][]byte
	indices   []int
	padLen    uint32
}

func newBlockState(n int, padLen uint32) *blockState {
	return &blockState{
		fragments: make([][]byte, n),
		padLen:    padLen,
	}
}

// messageEntry is the per-message_id reassembly state: the locked-in code
// parameters, the in-progress per-block state, and the blocks that have
// already decoded.
type messageEntry struct {
	k, n, numBlocks int
	blocks          map[uint32]*blockState
	completeBlocks  map[uint32][]byte
	lastTouched     time.Time
}

// Config bounds and tunes the reassembly table's resource usage and
// decode policy. A zero FragmentSize falls back to the reference
// default; the zero value of every other field is described on the
// field itself.
type Config struct {
	FragmentSize int

	// MaxCompleted bounds the completion set. <= 0 means
	// unbounded, matching the reference's "keep everything" behavior.
	MaxCompleted int

	// StaleAfter evicts an in-flight message entry that has not
	// received a fragment in this long. <= 0 disables eviction,
	// matching the reference's "resident until exit" behavior.
	StaleAfter time.Duration

	// MaxOpenMessages caps the number of concurrently in-flight
	// message entries. <= 0 means unbounded. When the cap is hit, the
	// earliest-opened entry is evicted to admit a fragment for a new
	// message_id; later fragments for an open entry do not change its
	// place in that order.
	MaxOpenMessages int

	// FatalOnDeframeError controls whether PayloadDeframeFailed is
	// surfaced as a fatal error (true: the reference behavior, and
	// cmd/fecrecv's default) or downgraded to a per-message drop (false,
	// the zero value).
	FatalOnDeframeError bool

	// Now, if set, is used instead of time.Now for stale-entry
	// eviction, so tests can control the clock.
	Now func() time.Time

	// OnStale, if set, is called once per message_id evicted by the
	// StaleAfter policy, so the caller can log the eviction.
	OnStale func(messageID uint32)
}

// Table is the Reassembly Table: per-message, per-block buffers and
// bookkeeping for every in-flight message. It is not safe for
// concurrent use; the receiver is a single-threaded cooperative loop
// and all table mutations happen between datagram reads.
type Table struct {
	cfg        Config
	entries    map[uint32]*messageEntry
	entryOrder []uint32 // oldest-first, for MaxOpenMessages / StaleAfter sweeps
	completed  *completionSet
	coders     map[coderKey]*fec.BlockCoder
	now        func() time.Time

	// Atomic mirrors of len(entries) / completed.Len(), refreshed at the
	// end of every Ingest so diagnostic readers (signal handler, gauge
	// sampler) on other goroutines never touch the maps themselves.
	openGauge      atomic.Int64
	completedGauge atomic.Int64
}

type coderKey struct {
	k, n, fragmentSize int
}

// NewTable constructs an empty Reassembly Table.
func NewTable(cfg Config) *Table {
	if cfg.FragmentSize <= 0 {
		cfg.FragmentSize = codeparams.DefaultFragmentSize
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Table{
		cfg:       cfg,
		entries:   make(map[uint32]*messageEntry),
		completed: newCompletionSet(cfg.MaxCompleted),
		coders:    make(map[coderKey]*fec.BlockCoder),
		now:       now,
	}
}

// Outcome classifies what Ingest did with one datagram, for logging and
// metrics at the call site.
type Outcome int

const (
	// OutcomeDropped: the fragment was rejected; see the returned
	// error's Kind for why.
	OutcomeDropped Outcome = iota
	// OutcomeStored: the fragment was accepted into an in-progress
	// block.
	OutcomeStored
	// OutcomeBlockDecoded: this fragment was the K-th for its block,
	// and the block decoded successfully.
	OutcomeBlockDecoded
	// OutcomeMessageCompleted: this fragment completed the last
	// outstanding block of its message; Image/Metadata are populated.
	OutcomeMessageCompleted
)

// Result reports what happened to one ingested datagram.
type Result struct {
	Outcome    Outcome
	MessageID  uint32
	BlockIdx   uint32
	NewMessage bool // true the first time this message_id was seen
	K, N       int
	NumBlocks  int
	Image      []byte
	Metadata   []byte
	Err        error // populated when Outcome == OutcomeDropped, or deframe/decode failed fatally
}

// Ingest processes exactly one datagram through the full receive
// algorithm: length check, header parse, completion/parameter checks,
// slot store, block decode on the K-th fragment, and message assembly
// once every block has decoded. Ingest validates the datagram length
// itself and reports MalformedHeader if it does not hold.
func (t *Table) Ingest(datagram []byte) Result {
	defer func() {
		t.openGauge.Store(int64(len(t.entries)))
		t.completedGauge.Store(int64(t.completed.Len()))
	}()

	t.evictStale()
	t.compactEntryOrder()

	if len(datagram) != wire.HeaderSize+t.cfg.FragmentSize {
		return Result{Outcome: OutcomeDropped, Err: transporterr.New(transporterr.KindMalformedHeader, nil)}
	}

	h := wire.Decode(datagram)
	fragData := datagram[wire.HeaderSize:]

	// a message already delivered is not reopened while its id is
	// still held in the (possibly bounded) completion set
	if t.completed.Has(h.MessageID) {
		return Result{Outcome: OutcomeDropped, MessageID: h.MessageID, Err: transporterr.New(transporterr.KindAlreadyCompleted, nil)}
	}

	// K >= N can never decode
	if int(h.K) >= int(h.N) {
		return Result{Outcome: OutcomeDropped, MessageID: h.MessageID, Err: transporterr.New(transporterr.KindInvalidCodeParameters, nil)}
	}

	entry, existed := t.entries[h.MessageID]
	if !existed {
		// the first-seen fragment is the parameter authority
		entry = &messageEntry{
			k:              int(h.K),
			n:              int(h.N),
			numBlocks:      int(h.NumBlocks),
			blocks:         make(map[uint32]*blockState),
			completeBlocks: make(map[uint32][]byte),
		}
		t.entries[h.MessageID] = entry
		t.entryOrder = append(t.entryOrder, h.MessageID)
		t.enforceMaxOpenMessages()
	} else {
		// later fragments must agree with the locked-in parameters
		if entry.k != int(h.K) || entry.n != int(h.N) || entry.numBlocks != int(h.NumBlocks) {
			return Result{Outcome: OutcomeDropped, MessageID: h.MessageID, Err: transporterr.New(transporterr.KindInconsistentMessageParameters, nil)}
		}
	}
	entry.lastTouched = t.now()

	// nothing left to do for a block that has decoded
	if _, done := entry.completeBlocks[h.BlockIdx]; done {
		return Result{Outcome: OutcomeDropped, MessageID: h.MessageID, BlockIdx: h.BlockIdx, Err: transporterr.New(transporterr.KindCompletedBlock, nil)}
	}

	bs, blockExists := entry.blocks[h.BlockIdx]
	if !blockExists {
		// the first-seen fragment for this block locks in padlen
		bs = newBlockState(entry.n, h.PadLen)
		entry.blocks[h.BlockIdx] = bs
	} else if bs.padLen != h.PadLen {
		return Result{Outcome: OutcomeDropped, MessageID: h.MessageID, BlockIdx: h.BlockIdx, Err: transporterr.New(transporterr.KindInconsistentBlockParameters, nil)}
	}

	// duplicate slot
	idx := int(h.FragIdx)
	if idx < 0 || idx >= entry.n {
		return Result{Outcome: OutcomeDropped, MessageID: h.MessageID, BlockIdx: h.BlockIdx, Err: transporterr.New(transporterr.KindMalformedHeader, nil)}
	}
	if bs.fragments[idx] != nil {
		return Result{Outcome: OutcomeDropped, MessageID: h.MessageID, BlockIdx: h.BlockIdx, Err: transporterr.New(transporterr.KindDuplicateFragment, nil)}
	}

	// store the fragment
	stored := make([]byte, len(fragData))
	copy(stored, fragData)
	bs.fragments[idx] = stored
	bs.indices = append(bs.indices, idx)

	result := Result{
		Outcome:    OutcomeStored,
		MessageID:  h.MessageID,
		BlockIdx:   h.BlockIdx,
		NewMessage: !existed,
		K:          entry.k,
		N:          entry.n,
		NumBlocks:  entry.numBlocks,
	}

	// attempt decode exactly once, on first crossing of K
	if len(bs.indices) == entry.k {
		decoded, err := t.decodeBlock(entry, bs)
		if err != nil {
			delete(t.entries, h.MessageID)
			return Result{Outcome: OutcomeDropped, MessageID: h.MessageID, BlockIdx: h.BlockIdx, Err: transporterr.New(transporterr.KindBlockDecodeFailed, err)}
		}
		entry.completeBlocks[h.BlockIdx] = decoded
		delete(entry.blocks, h.BlockIdx)
		result.Outcome = OutcomeBlockDecoded

		// message complete?
		if len(entry.completeBlocks) == entry.numBlocks {
			full := make([]byte, 0, entry.numBlocks*entry.k*t.cfg.FragmentSize)
			for b := uint32(0); b < uint32(entry.numBlocks); b++ {
				full = append(full, entry.completeBlocks[b]...)
			}

			image, metadata, derr := payload.Deframe(full)
			delete(t.entries, h.MessageID)
			if derr != nil {
				t.completed.Add(h.MessageID)
				tagged := transporterr.New(transporterr.KindPayloadDeframeFailed, derr)
				return Result{Outcome: OutcomeDropped, MessageID: h.MessageID, BlockIdx: h.BlockIdx, Err: tagged}
			}

			t.completed.Add(h.MessageID)
			result.Outcome = OutcomeMessageCompleted
			result.Image = image
			result.Metadata = metadata
		}
	}

	return result
}

func (t *Table) decodeBlock(entry *messageEntry, bs *blockState) ([]byte, error) {
	key := coderKey{k: entry.k, n: entry.n, fragmentSize: t.cfg.FragmentSize}
	coder, ok := t.coders[key]
	if !ok {
		var err error
		coder, err = fec.NewBlockCoder(entry.k, entry.n, t.cfg.FragmentSize)
		if err != nil {
			return nil, err
		}
		t.coders[key] = coder
	}

	fragments := make([]fec.Fragment, 0, len(bs.indices))
	for _, idx := range bs.indices {
		fragments = append(fragments, fec.Fragment{Index: idx, Data: bs.fragments[idx]})
	}
	return coder.Decode(fragments, int(bs.padLen))
}

// compactEntryOrder drops ids of already-removed entries (completed,
// decode-failed, evicted) from the order slice once they outnumber the
// live ones, so the slice stays proportional to the open-entry count
// even when both eviction policies are disabled.
func (t *Table) compactEntryOrder() {
	if len(t.entryOrder) <= 2*len(t.entries)+16 {
		return
	}
	kept := t.entryOrder[:0]
	for _, id := range t.entryOrder {
		if _, ok := t.entries[id]; ok {
			kept = append(kept, id)
		}
	}
	t.entryOrder = kept
}

// enforceMaxOpenMessages evicts the oldest-opened message entry until
// the open-entry count is within bounds. Called right after a new entry
// is admitted.
func (t *Table) enforceMaxOpenMessages() {
	if t.cfg.MaxOpenMessages <= 0 {
		return
	}
	for len(t.entries) > t.cfg.MaxOpenMessages && len(t.entryOrder) > 0 {
		oldest := t.entryOrder[0]
		t.entryOrder = t.entryOrder[1:]
		delete(t.entries, oldest)
	}
}

// evictStale drops in-flight message entries that have not been touched
// within StaleAfter.
func (t *Table) evictStale() {
	if t.cfg.StaleAfter <= 0 || len(t.entries) == 0 {
		return
	}
	now := t.now()
	cutoff := now.Add(-t.cfg.StaleAfter)

	kept := t.entryOrder[:0]
	for _, id := range t.entryOrder {
		entry, ok := t.entries[id]
		if !ok {
			continue
		}
		if entry.lastTouched.Before(cutoff) {
			delete(t.entries, id)
			if t.cfg.OnStale != nil {
				t.cfg.OnStale(id)
			}
			continue
		}
		kept = append(kept, id)
	}
	t.entryOrder = kept
}

// OpenMessageCount reports the number of in-flight message entries as of
// the last Ingest. Unlike the rest of the Table it is safe to call from
// another goroutine, for diagnostics/metrics.
func (t *Table) OpenMessageCount() int { return int(t.openGauge.Load()) }

// CompletedCount reports the number of ids held in the completion set as
// of the last Ingest. Safe to call from another goroutine.
func (t *Table) CompletedCount() int { return int(t.completedGauge.Load()) }

// FatalOnDeframeError reports the configured policy for
// PayloadDeframeFailed: whether the receive loop should terminate
// the process or merely drop the message.
func (t *Table) FatalOnDeframeError() bool { return t.cfg.FatalOnDeframeError }
