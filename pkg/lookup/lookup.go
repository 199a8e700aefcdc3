// Package lookup implements spec §4.G: translating
// (chainId, timestamp, direction, inclusivity) into a single bounded range
// scan plus an in-memory progress read, with no other I/O.
package lookup

import (
	"errors"

	"github.com/prettyirrelevant/kizami/pkg/kizamierr"
	"github.com/prettyirrelevant/kizami/pkg/progress"
	"github.com/prettyirrelevant/kizami/pkg/registry"
	"github.com/prettyirrelevant/kizami/pkg/store"
)

// Response is the shape returned to the HTTP layer on a hit.
type Response struct {
	Number      uint64
	Timestamp   uint64
	IndexedUpTo uint64
}

// Service ties the block store and progress map together.
type Service struct {
	blocks   *store.BlockStore
	progress *progress.Map
}

// New returns a ready Service.
func New(blocks *store.BlockStore, prog *progress.Map) *Service {
	return &Service{blocks: blocks, progress: prog}
}

// Lookup resolves one query. It returns kizamierr.ErrUnknownChain,
// kizamierr.ErrNotFound, a kizamierr.ErrStorage-wrapped error from the
// range scan, or a populated Response.
func (s *Service) Lookup(chainID uint32, timestamp uint64, direction store.Direction, inclusive bool) (Response, error) {
	if _, err := registry.Get(chainID); err != nil {
		return Response{}, kizamierr.ErrUnknownChain
	}

	block, err := s.blocks.Find(chainID, timestamp, direction, inclusive)
	if err != nil {
		if errors.Is(err, kizamierr.ErrNotFound) {
			return Response{}, kizamierr.ErrNotFound
		}
		return Response{}, err
	}

	var indexedUpTo uint64
	if entry, ok := s.progress.Read(chainID); ok {
		indexedUpTo = entry.Cursor
	}

	return Response{Number: block.Number, Timestamp: block.Timestamp, IndexedUpTo: indexedUpTo}, nil
}
