package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble/v2"
	"go.uber.org/zap"

	"github.com/prettyirrelevant/kizami/pkg/kizamierr"
)

// Cursor is a chain's last durably-persisted block number and when it was
// last advanced.
type Cursor struct {
	Slug          string
	LastBlock     int64
	UpdatedAtSecs int64
}

// CursorStore is the persistent slug -> (last_block, updated_at_secs)
// mapping described in spec §4.D. Opened as its own pebble instance so the
// block keyspace's on-disk layout never has to share a namespace with it.
type CursorStore struct {
	db     *pebble.DB
	logger *zap.Logger
}

// OpenCursorStore opens (creating if absent) the cursor keyspace at dir.
func OpenCursorStore(dir string, logger *zap.Logger) (*CursorStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: open cursor store: %w", kizamierr.ErrStorage, err)
	}
	return &CursorStore{db: db, logger: logger}, nil
}

// Close releases the underlying pebble handle.
func (s *CursorStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close cursor store: %w", kizamierr.ErrStorage, err)
	}
	return nil
}

// Get returns the cursor for slug, or kizamierr.ErrNotFound if it has never
// been ingested.
func (s *CursorStore) Get(slug string) (Cursor, error) {
	val, closer, err := s.db.Get([]byte(slug))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Cursor{}, kizamierr.ErrNotFound
		}
		return Cursor{}, fmt.Errorf("%w: get cursor: %w", kizamierr.ErrStorage, err)
	}
	defer closer.Close()

	if len(val) != 16 {
		return Cursor{}, fmt.Errorf("%w: corrupt cursor value for %q", kizamierr.ErrStorage, slug)
	}
	lastBlock := int64(binary.BigEndian.Uint64(val[0:8]))
	updatedAt := int64(binary.BigEndian.Uint64(val[8:16]))
	return Cursor{Slug: slug, LastBlock: lastBlock, UpdatedAtSecs: updatedAt}, nil
}

// Put unconditionally writes (lastBlock, updatedAtSecs) for slug. The store
// does not enforce monotonicity — callers (the ingestion engine) must only
// ever advance a cursor.
func (s *CursorStore) Put(slug string, lastBlock, updatedAtSecs int64) error {
	val := make([]byte, 16)
	binary.BigEndian.PutUint64(val[0:8], uint64(lastBlock))
	binary.BigEndian.PutUint64(val[8:16], uint64(updatedAtSecs))

	if err := s.db.Set([]byte(slug), val, pebble.Sync); err != nil {
		return fmt.Errorf("%w: put cursor: %w", kizamierr.ErrStorage, err)
	}
	return nil
}

// Snapshot returns every persisted cursor, used at startup to rehydrate the
// progress map.
func (s *CursorStore) Snapshot() ([]Cursor, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: open snapshot iterator: %w", kizamierr.ErrStorage, err)
	}
	defer iter.Close()

	var out []Cursor
	for valid := iter.First(); valid; valid = iter.Next() {
		slug := string(iter.Key())
		val := iter.Value()
		if len(val) != 16 {
			continue
		}
		out = append(out, Cursor{
			Slug:          slug,
			LastBlock:     int64(binary.BigEndian.Uint64(val[0:8])),
			UpdatedAtSecs: int64(binary.BigEndian.Uint64(val[8:16])),
		})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: snapshot scan: %w", kizamierr.ErrStorage, err)
	}
	return out, nil
}
