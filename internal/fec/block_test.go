package fec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBlockEncodeDecodeRoundTrip(t *testing.T) {
	// any K of the N fragments, in any order, recover the block's data
	// portion bit-exactly
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.IntRange(2, 20).Draw(t, "k")
		extra := rapid.IntRange(1, 10).Draw(t, "extra")
		n := k + extra
		fragmentSize := rapid.IntRange(1, 64).Draw(t, "fragment_size")
		padLen := rapid.IntRange(0, k*fragmentSize-1).Draw(t, "padlen")

		coder, err := NewBlockCoder(k, n, fragmentSize)
		require.NoError(t, err)

		block := make([]byte, k*fragmentSize)
		_, _ = rand.New(rand.NewSource(int64(k*1000+n))).Read(block)
		// zero the pad region, matching how the sender pads the last block
		for i := len(block) - padLen; i < len(block); i++ {
			block[i] = 0
		}

		fragments, err := coder.Encode(block)
		require.NoError(t, err)
		require.Len(t, fragments, n)
		for _, f := range fragments {
			require.Len(t, f, fragmentSize)
		}

		// pick a random K-subset of indices, in a random order
		perm := rapid.Permutation(indexRange(n)).Draw(t, "perm")
		chosen := perm[:k]

		subset := make([]Fragment, 0, k)
		for _, idx := range chosen {
			subset = append(subset, Fragment{Index: idx, Data: fragments[idx]})
		}

		got, err := coder.Decode(subset, padLen)
		require.NoError(t, err)
		require.Equal(t, block[:len(block)-padLen], got)
	})
}

func indexRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestBlockDecodeRejectsWrongFragmentCount(t *testing.T) {
	coder, err := NewBlockCoder(4, 6, 8)
	require.NoError(t, err)
	_, err = coder.Decode([]Fragment{{Index: 0, Data: make([]byte, 8)}}, 0)
	require.Error(t, err)
}

func TestBlockDecodeRejectsDuplicateIndices(t *testing.T) {
	coder, err := NewBlockCoder(2, 4, 8)
	require.NoError(t, err)
	frag := make([]byte, 8)
	_, err = coder.Decode([]Fragment{{Index: 0, Data: frag}, {Index: 0, Data: frag}}, 0)
	require.Error(t, err)
}

func TestNewBlockCoderRejectsKGreaterOrEqualN(t *testing.T) {
	_, err := NewBlockCoder(4, 4, 8)
	require.Error(t, err)
	_, err = NewBlockCoder(5, 4, 8)
	require.Error(t, err)
}
