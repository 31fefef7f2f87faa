// Package codeparams implements the Code Parameter Selector: choosing
// (K, N, num_blocks, block_payload_size) for a payload of a given length.
package codeparams

import (
	"github.com/pkg/errors"
)

// Reference defaults, identical at both ends of the link.
const (
	DefaultFragmentSize     = 1024
	DefaultTargetRedundancy = 0.25
	DefaultMaxN             = 256
	DefaultMinK             = 16
)

// ErrParameterSearchFailed is returned when no (K, N) candidate in
// [min_k, max_n) satisfies N <= max_n.
var ErrParameterSearchFailed = errors.New("codeparams: no code parameters satisfy the given bounds")

// Params is the selected code configuration for one message.
type Params struct {
	K                 int
	N                 int
	NumBlocks         int
	FragmentSize      int
	BlockPayloadSize  int
	TotalEncodedBytes int
	Efficiency        float64
}

// Select searches K in [minK, maxN) for the candidate N = K + floor(K *
// targetRedundancy) that maximizes payload_len / (num_blocks * N *
// fragment_size), the candidates being restricted to N <= maxN. Where
// floor(K * targetRedundancy) is zero, N is raised to K + 1. Ties are
// broken in favor of the larger K.
func Select(payloadLen, fragmentSize int, targetRedundancy float64, maxN, minK int) (Params, error) {
	if fragmentSize <= 0 {
		return Params{}, errors.New("codeparams: fragmentSize must be positive")
	}
	if minK <= 0 {
		return Params{}, errors.New("codeparams: minK must be positive")
	}

	var best Params
	found := false

	for k := minK; k < maxN; k++ {
		n := k + int(float64(k)*targetRedundancy)
		if n <= k {
			n = k + 1
		}
		if n > maxN {
			continue
		}

		blockPayloadSize := k * fragmentSize
		numBlocks := ceilDiv(payloadLen, blockPayloadSize)
		if numBlocks < 1 {
			numBlocks = 1
		}
		totalBytes := numBlocks * n * fragmentSize
		efficiency := float64(payloadLen) / float64(totalBytes)

		candidate := Params{
			K:                 k,
			N:                 n,
			NumBlocks:         numBlocks,
			FragmentSize:      fragmentSize,
			BlockPayloadSize:  blockPayloadSize,
			TotalEncodedBytes: totalBytes,
			Efficiency:        efficiency,
		}

		if !found {
			best = candidate
			found = true
			continue
		}

		if candidate.Efficiency > best.Efficiency ||
			(candidate.Efficiency == best.Efficiency && candidate.K > best.K) {
			best = candidate
		}
	}

	if !found {
		return Params{}, errors.WithStack(ErrParameterSearchFailed)
	}
	return best, nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
