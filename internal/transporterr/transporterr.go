// Package transporterr gives every drop/failure kind in the transport a
// typed tag instead of a bare string or a panic: decode failure becomes
// a tagged result variant inspected in exactly one place (the receive
// loop), rather than ad-hoc string matching scattered through the
// reassembly code.
package transporterr

import "github.com/pkg/errors"

// Kind tags the category of a transport-level error so a single call
// site (the receive loop) can decide drop-vs-destroy-vs-terminate without
// string matching.
type Kind int

const (
	// KindMalformedHeader: datagram length is not 20+fragment_size, or
	// frag_idx is outside [0, N).
	KindMalformedHeader Kind = iota
	// KindInvalidCodeParameters: K >= N in the fragment header.
	KindInvalidCodeParameters
	// KindInconsistentMessageParameters: K/N/num_blocks disagree with
	// the entry's locked-in parameters.
	KindInconsistentMessageParameters
	// KindInconsistentBlockParameters: padlen disagrees with the
	// block's locked-in padlen.
	KindInconsistentBlockParameters
	// KindDuplicateFragment: the fragment slot is already filled.
	KindDuplicateFragment
	// KindBlockDecodeFailed: the erasure code could not reconstruct
	// the block from the supplied K fragments.
	KindBlockDecodeFailed
	// KindPayloadDeframeFailed: the reconstructed payload's declared
	// image length overruns the buffer, or a downstream sink rejected
	// the bytes it was handed.
	KindPayloadDeframeFailed
	// KindAlreadyCompleted: message_id is in the completion set.
	KindAlreadyCompleted
	// KindCompletedBlock: block_idx already decoded for this message.
	KindCompletedBlock
	// KindParameterSearchFailed: the code parameter selector found no
	// (K, N) candidate satisfying the configured bounds.
	KindParameterSearchFailed
	// KindEncoderInvariantViolation: the block encoder produced a shard
	// count or shard length inconsistent with (K, N, fragment_size).
	KindEncoderInvariantViolation
	// KindPayloadTooLargeForCode: the selected N exceeds max_n.
	KindPayloadTooLargeForCode
)

// String renders the Kind's canonical wire-protocol name, for logging.
func (k Kind) String() string {
	switch k {
	case KindMalformedHeader:
		return "MalformedHeader"
	case KindInvalidCodeParameters:
		return "InvalidCodeParameters"
	case KindInconsistentMessageParameters:
		return "InconsistentMessageParameters"
	case KindInconsistentBlockParameters:
		return "InconsistentBlockParameters"
	case KindDuplicateFragment:
		return "DuplicateFragment"
	case KindBlockDecodeFailed:
		return "BlockDecodeFailed"
	case KindPayloadDeframeFailed:
		return "PayloadDeframeFailed"
	case KindAlreadyCompleted:
		return "AlreadyCompleted"
	case KindCompletedBlock:
		return "CompletedBlock"
	case KindParameterSearchFailed:
		return "ParameterSearchFailed"
	case KindEncoderInvariantViolation:
		return "EncoderInvariantViolation"
	case KindPayloadTooLargeForCode:
		return "PayloadTooLargeForCode"
	default:
		return "Unknown"
	}
}

// taggedError wraps an underlying cause with a Kind so callers can branch
// on category with errors.As while errors.Is/Unwrap still reach the cause.
type taggedError struct {
	kind  Kind
	cause error
}

func (e *taggedError) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return e.kind.String() + ": " + e.cause.Error()
}

func (e *taggedError) Unwrap() error { return e.cause }

// New tags cause (or a bare message if cause is nil) with kind.
func New(kind Kind, cause error) error {
	return errors.WithStack(&taggedError{kind: kind, cause: cause})
}

// KindOf extracts the Kind from err, if err (or something it wraps) is a
// tagged error. The second return is false for untagged errors.
func KindOf(err error) (Kind, bool) {
	var tagged *taggedError
	if errors.As(err, &tagged) {
		return tagged.kind, true
	}
	return 0, false
}

// Is reports whether err is tagged with kind.
func Is(err error, kind Kind) bool {
	got, ok := KindOf(err)
	return ok && got == kind
}
