// Package progress holds the process-wide (cursor, head) snapshot per
// chain: a read-through cache in front of the cursor store that gives the
// HTTP lookup path O(1) access to indexedUpTo without touching persistent
// storage (spec §4.E).
package progress

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/prettyirrelevant/kizami/pkg/registry"
	"github.com/prettyirrelevant/kizami/pkg/store"
)

// Entry is the in-memory snapshot for one chain.
type Entry struct {
	ChainID       uint32
	Cursor        uint64
	Head          uint64
	HeadFetchedAt time.Time
}

// Map is a concurrent chain_id -> Entry map. It is never authoritative:
// it must be rebuildable from the cursor store at any time, and on any
// ambiguity the persistent cursor wins.
type Map struct {
	entries *xsync.Map[uint32, Entry]
	ready   atomic.Bool
}

// New returns an empty progress map.
func New() *Map {
	return &Map{entries: xsync.NewMap[uint32, Entry]()}
}

// LoadFrom populates the map from a cursor-store snapshot, setting
// cursor == head == last_block for every registered chain that has a
// persisted cursor. Chains with no persisted cursor are left unpopulated;
// Read reports them as absent and the lookup service treats that as
// indexedUpTo == 0.
func (m *Map) LoadFrom(cursors []store.Cursor, chains []registry.Descriptor) {
	bySlug := make(map[string]store.Cursor, len(cursors))
	for _, c := range cursors {
		bySlug[c.Slug] = c
	}

	now := time.Now()
	for _, chain := range chains {
		cur, ok := bySlug[chain.Slug]
		if !ok || cur.LastBlock <= 0 {
			continue
		}
		last := uint64(cur.LastBlock)
		m.entries.Store(chain.ChainID, Entry{
			ChainID:       chain.ChainID,
			Cursor:        last,
			Head:          last,
			HeadFetchedAt: now,
		})
	}
	m.ready.Store(true)
}

// Read returns the current (cursor, head) for chainID, or false if the
// chain has never been ingested (or this process has not rehydrated yet).
func (m *Map) Read(chainID uint32) (Entry, bool) {
	return m.entries.Load(chainID)
}

// UpdateCursor monotonically advances chainID's cursor. A lower value than
// the one already published is ignored, so a stale or out-of-order caller
// can never move indexedUpTo backwards.
func (m *Map) UpdateCursor(chainID uint32, newCursor uint64) {
	m.entries.Compute(chainID, func(old Entry, loaded bool) (Entry, xsync.ComputeOp) {
		if !loaded {
			return Entry{ChainID: chainID, Cursor: newCursor}, xsync.UpdateOp
		}
		if newCursor > old.Cursor {
			old.Cursor = newCursor
		}
		return old, xsync.UpdateOp
	})
}

// UpdateHead monotonically advances chainID's head; at always overwrites,
// since it records "as of when we last successfully probed", independent
// of whether the numeric head value changed.
func (m *Map) UpdateHead(chainID uint32, newHead uint64, at time.Time) {
	m.entries.Compute(chainID, func(old Entry, loaded bool) (Entry, xsync.ComputeOp) {
		if !loaded {
			return Entry{ChainID: chainID, Head: newHead, HeadFetchedAt: at}, xsync.UpdateOp
		}
		if newHead > old.Head {
			old.Head = newHead
		}
		old.HeadFetchedAt = at
		return old, xsync.UpdateOp
	})
}

// Snapshot returns every populated entry, used by the /v1/indexing-status
// endpoint.
func (m *Map) Snapshot() []Entry {
	out := make([]Entry, 0, m.entries.Size())
	m.entries.Range(func(_ uint32, v Entry) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Ready reports whether LoadFrom has completed at least once. The HTTP
// layer returns 503 until this is true, regardless of how many chains
// actually had a persisted cursor to rehydrate.
func (m *Map) Ready() bool {
	return m.ready.Load()
}
