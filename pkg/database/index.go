package database

import "math"

// The store keeps uint64 protocol indices in signed BIGINT columns. Flipping
// the top bit maps [0, 2^64) onto [MinInt64, MaxInt64] monotonically, so
// ordering, MIN/MAX and +1/-1 stepping work directly on the stored values.

const signBit = uint64(1) << 63

// GenesisSentinel is the encoded form of index 0. Nothing precedes it.
const GenesisSentinel int64 = math.MinInt64

func EncodeIndex(u uint64) int64 {
	return int64(u ^ signBit)
}

func DecodeIndex(i int64) uint64 {
	return uint64(i) ^ signBit
}
