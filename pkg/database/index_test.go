package database

import (
	"math"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"
)

func TestIndexCodecBounds(t *testing.T) {
	require.Equal(t, int64(math.MinInt64), EncodeIndex(0))
	require.Equal(t, GenesisSentinel, EncodeIndex(0))
	require.Equal(t, int64(math.MaxInt64), EncodeIndex(math.MaxUint64))
	require.Equal(t, int64(-1), EncodeIndex(1<<63-1))
	require.Equal(t, int64(0), EncodeIndex(1<<63))

	require.Equal(t, uint64(0), DecodeIndex(math.MinInt64))
	require.Equal(t, uint64(math.MaxUint64), DecodeIndex(math.MaxInt64))
}

func TestIndexCodecRoundTrip(t *testing.T) {
	roundTrip := func(u uint64) bool {
		return DecodeIndex(EncodeIndex(u)) == u
	}
	require.NoError(t, quick.Check(roundTrip, nil))

	inverse := func(i int64) bool {
		return EncodeIndex(DecodeIndex(i)) == i
	}
	require.NoError(t, quick.Check(inverse, nil))
}

func TestIndexCodecPreservesOrder(t *testing.T) {
	ordered := func(a, b uint64) bool {
		return (a < b) == (EncodeIndex(a) < EncodeIndex(b))
	}
	require.NoError(t, quick.Check(ordered, nil))

	// neighbours step by one in both domains, across the sign boundary too
	for _, u := range []uint64{0, 1, 1<<63 - 1, 1 << 63, math.MaxUint64 - 1} {
		require.Equal(t, EncodeIndex(u)+1, EncodeIndex(u+1))
	}
}
