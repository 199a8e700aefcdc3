package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		chainID   uint32
		timestamp uint64
		number    uint64
	}{
		{"zeros", 0, 0, 0},
		{"typical", 1, 1_700_000_000, 18_000_000},
		{"max values", ^uint32(0), maxUint64, maxUint64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := encodeKey(tt.chainID, tt.timestamp, tt.number)
			require.Len(t, key, KeyLen)

			chainID, timestamp, number := decodeKey(key)
			assert.Equal(t, tt.chainID, chainID)
			assert.Equal(t, tt.timestamp, timestamp)
			assert.Equal(t, tt.number, number)
		})
	}
}

func TestKeyOrderingMatchesNumericOrdering(t *testing.T) {
	lower := encodeKey(1, 100, 5)
	higher := encodeKey(1, 100, 6)
	assert.Less(t, string(lower), string(higher))

	acrossTimestamp := encodeKey(1, 101, 0)
	assert.Less(t, string(higher), string(acrossTimestamp))

	acrossChain := encodeKey(2, 0, 0)
	assert.Less(t, string(acrossTimestamp), string(acrossChain))
}

func TestSuccessorIsStrictlyGreater(t *testing.T) {
	k := encodeKey(1, 100, 5)
	s := successor(k)
	assert.Greater(t, string(s), string(k))
	assert.True(t, len(s) == len(k)+1)
}

func TestChainBounds(t *testing.T) {
	lower := chainLowerBound(5)
	assert.Equal(t, encodeKey(5, 0, 0), lower)

	upper := chainUpperBound(5)
	assert.Equal(t, encodeKey(6, 0, 0), upper)

	assert.Nil(t, chainUpperBound(^uint32(0)))
}
