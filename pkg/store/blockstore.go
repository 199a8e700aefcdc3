package store

import (
	"fmt"

	"github.com/cockroachdb/pebble/v2"
	"go.uber.org/zap"

	"github.com/prettyirrelevant/kizami/pkg/kizamierr"
)

// Direction selects which side of a timestamp a lookup resolves to.
type Direction int

const (
	Before Direction = iota
	After
)

// Record is a single (chain, number, timestamp) triple ready to be persisted.
type Record struct {
	ChainID   uint32
	Number    uint64
	Timestamp uint64
}

// Block is a decoded hit returned by Find.
type Block struct {
	Number    uint64
	Timestamp uint64
}

// BlockStore is the ordered, persistent (chain_id, timestamp, number)
// keyspace described in spec §4.C. It is backed by a single pebble
// instance shared by every chain's ingestion task and the HTTP lookup path;
// writes are disjoint by chain_id key prefix so no cross-chain coordination
// is required.
type BlockStore struct {
	db     *pebble.DB
	logger *zap.Logger
}

// OpenBlockStore opens (creating if absent) the block keyspace at dir.
func OpenBlockStore(dir string, logger *zap.Logger) (*BlockStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: open block store: %w", kizamierr.ErrStorage, err)
	}
	return &BlockStore{db: db, logger: logger}, nil
}

// Close releases the underlying pebble handle.
func (s *BlockStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close block store: %w", kizamierr.ErrStorage, err)
	}
	return nil
}

// PutBatch atomically writes every record's key with an empty value.
// Re-inserting an existing (chain_id, number) key is a no-op: the upstream
// invariant guarantees an existing key's timestamp never changes, so Set
// is always idempotent here and duplicate keys within or across calls
// collapse without any value-update logic.
func (s *BlockStore) PutBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, r := range records {
		key := encodeKey(r.ChainID, r.Timestamp, r.Number)
		if err := batch.Set(key, nil, nil); err != nil {
			return fmt.Errorf("%w: stage batch entry: %w", kizamierr.ErrStorage, err)
		}
	}

	if err := s.db.Apply(batch, pebble.Sync); err != nil {
		return fmt.Errorf("%w: apply batch: %w", kizamierr.ErrStorage, err)
	}
	return nil
}

// Find performs exactly one bounded range scan and returns the block
// satisfying (chainID, timestamp, direction, inclusive) per the table in
// spec §4.C, or kizamierr.ErrNotFound.
func (s *BlockStore) Find(chainID uint32, timestamp uint64, direction Direction, inclusive bool) (Block, error) {
	lower, upper, pickLast := bounds(chainID, timestamp, direction, inclusive)
	if lower == nil && upper == nil && !pickLast {
		// Only the after/exclusive, timestamp==maxUint64 case produces this:
		// there is no timestamp greater than the maximum representable value.
		return Block{}, kizamierr.ErrNotFound
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return Block{}, fmt.Errorf("%w: open iterator: %w", kizamierr.ErrStorage, err)
	}
	defer iter.Close()

	var valid bool
	if pickLast {
		valid = iter.Last()
	} else {
		valid = iter.First()
	}
	if !valid {
		if err := iter.Error(); err != nil {
			return Block{}, fmt.Errorf("%w: scan: %w", kizamierr.ErrStorage, err)
		}
		return Block{}, kizamierr.ErrNotFound
	}

	_, ts, number := decodeKey(iter.Key())
	return Block{Number: number, Timestamp: ts}, nil
}

// bounds implements the four-row table in spec §4.C. pickLast is true for
// "before" queries (Find positions the iterator at the greatest key in the
// range with Last) and false for "after" queries (Find takes the smallest
// key with First). Both directions use an ascending [lower, upper) range.
func bounds(chainID uint32, timestamp uint64, direction Direction, inclusive bool) (lower, upper []byte, pickLast bool) {
	switch {
	case direction == Before && inclusive:
		// [C‖0‖0, C‖T‖MAX], pick last.
		return chainLowerBound(chainID), successor(encodeKey(chainID, timestamp, maxUint64)), true

	case direction == Before && !inclusive:
		// [C‖0‖0, C‖T‖0), pick last.
		return chainLowerBound(chainID), encodeKey(chainID, timestamp, 0), true

	case direction == After && inclusive:
		// [C‖T‖0, C+1‖0‖0), pick first.
		return encodeKey(chainID, timestamp, 0), chainUpperBound(chainID), false

	default: // After && !inclusive
		// [C‖T+1‖0, C+1‖0‖0), pick first.
		if timestamp == maxUint64 {
			return nil, nil, false
		}
		return encodeKey(chainID, timestamp+1, 0), chainUpperBound(chainID), false
	}
}
