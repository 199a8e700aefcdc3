package store

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/prettyirrelevant/kizami/pkg/retry"
)

// Stores bundles the block and cursor keyspaces opened under one data
// directory, mirroring the teacher's NewBasicDbs pattern of handing the
// application a single bundle of ready-to-use store handles at startup.
type Stores struct {
	Blocks  *BlockStore
	Cursors *CursorStore
}

// Open opens both keyspaces under dataDir, retrying with backoff the way
// the teacher retries its ClickHouse connection at startup — local disk
// opens rarely fail, but a concurrently-starting sibling process holding a
// stale lock file is exactly the transient condition backoff exists for.
func Open(ctx context.Context, dataDir string, logger *zap.Logger) (*Stores, error) {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = 3
	cfg.InitialDelay = 500 * time.Millisecond
	cfg.MaxDelay = 5 * time.Second

	var blocks *BlockStore
	var cursors *CursorStore

	err := retry.WithBackoff(ctx, cfg, logger, "open_block_store", func() error {
		b, err := OpenBlockStore(filepath.Join(dataDir, "blocks"), logger)
		if err != nil {
			return err
		}
		blocks = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = retry.WithBackoff(ctx, cfg, logger, "open_cursor_store", func() error {
		c, err := OpenCursorStore(filepath.Join(dataDir, "cursors"), logger)
		if err != nil {
			return err
		}
		cursors = c
		return nil
	})
	if err != nil {
		_ = blocks.Close()
		return nil, err
	}

	return &Stores{Blocks: blocks, Cursors: cursors}, nil
}

// Close releases both underlying pebble handles.
func (s *Stores) Close() error {
	blocksErr := s.Blocks.Close()
	cursorsErr := s.Cursors.Close()
	if blocksErr != nil {
		return blocksErr
	}
	return cursorsErr
}
