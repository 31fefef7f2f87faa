package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompletionSetBasics(t *testing.T) {
	s := newCompletionSet(0)
	require.False(t, s.Has(1))
	s.Add(1)
	require.True(t, s.Has(1))
	require.Equal(t, 1, s.Len())
}

func TestCompletionSetUnboundedWhenZero(t *testing.T) {
	s := newCompletionSet(0)
	for i := uint32(0); i < 1000; i++ {
		s.Add(i)
	}
	require.Equal(t, 1000, s.Len())
	require.True(t, s.Has(0))
	require.True(t, s.Has(999))
}

func TestCompletionSetEvictsOldestWhenFull(t *testing.T) {
	s := newCompletionSet(3)
	s.Add(1)
	s.Add(2)
	s.Add(3)
	require.Equal(t, 3, s.Len())

	s.Add(4)
	require.Equal(t, 3, s.Len())
	require.False(t, s.Has(1), "oldest entry should have been evicted")
	require.True(t, s.Has(2))
	require.True(t, s.Has(3))
	require.True(t, s.Has(4))
}

func TestCompletionSetReAddRefreshesRecency(t *testing.T) {
	s := newCompletionSet(2)
	s.Add(1)
	s.Add(2)
	s.Add(1) // touch 1 again, making 2 the least-recently-used
	s.Add(3)

	require.True(t, s.Has(1))
	require.False(t, s.Has(2), "2 should have been evicted as the least recently touched")
	require.True(t, s.Has(3))
}
