package store

import "encoding/binary"

// KeyLen is the fixed width of a block-store key: chain_id(4) || timestamp(8) || number(8).
const KeyLen = 4 + 8 + 8

// maxUint64 is the all-ones 8-byte upper bound used to close out a timestamp band.
const maxUint64 = ^uint64(0)

// encodeKey produces the big-endian 20-byte key for (chainID, timestamp, number).
// Big-endian byte order makes lexicographic key order equal numeric
// (chain_id, timestamp, number) order, which is what lets every directional
// query below resolve to a single bounded range scan.
func encodeKey(chainID uint32, timestamp, number uint64) []byte {
	k := make([]byte, KeyLen)
	binary.BigEndian.PutUint32(k[0:4], chainID)
	binary.BigEndian.PutUint64(k[4:12], timestamp)
	binary.BigEndian.PutUint64(k[12:20], number)
	return k
}

// decodeKey is the inverse of encodeKey.
func decodeKey(k []byte) (chainID uint32, timestamp, number uint64) {
	chainID = binary.BigEndian.Uint32(k[0:4])
	timestamp = binary.BigEndian.Uint64(k[4:12])
	number = binary.BigEndian.Uint64(k[12:20])
	return
}

// successor returns the lexicographically smallest key strictly greater than
// k, by appending a zero byte. Used to turn an inclusive bound into pebble's
// exclusive-upper-bound convention without needing to increment a fixed-width
// integer (and without special-casing carry/overflow).
func successor(k []byte) []byte {
	s := make([]byte, len(k)+1)
	copy(s, k)
	return s
}

// chainLowerBound returns the first possible key for chainID.
func chainLowerBound(chainID uint32) []byte {
	return encodeKey(chainID, 0, 0)
}

// chainUpperBound returns the exclusive upper bound one past the last
// possible key for chainID (i.e. the lower bound of chainID+1), or nil if
// chainID is the maximum possible value and the bound is the end of keyspace.
func chainUpperBound(chainID uint32) []byte {
	if chainID == ^uint32(0) {
		return nil
	}
	return encodeKey(chainID+1, 0, 0)
}
