package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/prettyirrelevant/kizami/pkg/kizamierr"
)

func newTestBlockStore(t *testing.T) *BlockStore {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "blocks")
	s, err := OpenBlockStore(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fixture chain 1 blocks: (number, timestamp)
// 1 -> 100, 2 -> 200, 3 -> 300, 4 -> 300 (tie), 5 -> 400
func seedFixture(t *testing.T, s *BlockStore) {
	t.Helper()
	require.NoError(t, s.PutBatch([]Record{
		{ChainID: 1, Number: 1, Timestamp: 100},
		{ChainID: 1, Number: 2, Timestamp: 200},
		{ChainID: 1, Number: 3, Timestamp: 300},
		{ChainID: 1, Number: 4, Timestamp: 300},
		{ChainID: 1, Number: 5, Timestamp: 400},
	}))
}

func TestFindBeforeExclusive(t *testing.T) {
	s := newTestBlockStore(t)
	seedFixture(t, s)

	block, err := s.Find(1, 300, Before, false)
	require.NoError(t, err)
	require.Equal(t, uint64(2), block.Number)
	require.Equal(t, uint64(200), block.Timestamp)
}

func TestFindBeforeInclusive(t *testing.T) {
	s := newTestBlockStore(t)
	seedFixture(t, s)

	// Two blocks tie at timestamp 300; inclusive+before picks the greatest number.
	block, err := s.Find(1, 300, Before, true)
	require.NoError(t, err)
	require.Equal(t, uint64(4), block.Number)
	require.Equal(t, uint64(300), block.Timestamp)
}

func TestFindAfterExclusive(t *testing.T) {
	s := newTestBlockStore(t)
	seedFixture(t, s)

	block, err := s.Find(1, 300, After, false)
	require.NoError(t, err)
	require.Equal(t, uint64(5), block.Number)
	require.Equal(t, uint64(400), block.Timestamp)
}

func TestFindAfterInclusive(t *testing.T) {
	s := newTestBlockStore(t)
	seedFixture(t, s)

	// Two blocks tie at timestamp 300; inclusive+after picks the smallest number.
	block, err := s.Find(1, 300, After, true)
	require.NoError(t, err)
	require.Equal(t, uint64(3), block.Number)
	require.Equal(t, uint64(300), block.Timestamp)
}

func TestFindNoMatch(t *testing.T) {
	s := newTestBlockStore(t)
	seedFixture(t, s)

	_, err := s.Find(1, 100, Before, false)
	require.ErrorIs(t, err, kizamierr.ErrNotFound)
}

func TestFindAfterExclusiveMaxTimestampHasNoSuccessor(t *testing.T) {
	s := newTestBlockStore(t)
	seedFixture(t, s)

	_, err := s.Find(1, maxUint64, After, false)
	require.ErrorIs(t, err, kizamierr.ErrNotFound)
}

func TestFindIsolatesChains(t *testing.T) {
	s := newTestBlockStore(t)
	seedFixture(t, s)
	require.NoError(t, s.PutBatch([]Record{
		{ChainID: 2, Number: 1, Timestamp: 50},
	}))

	_, err := s.Find(2, 300, Before, true)
	require.NoError(t, err)

	_, err = s.Find(2, 40, Before, false)
	require.ErrorIs(t, err, kizamierr.ErrNotFound)
}

func TestPutBatchIsIdempotent(t *testing.T) {
	s := newTestBlockStore(t)
	seedFixture(t, s)
	seedFixture(t, s) // re-insert same records; must not change anything

	block, err := s.Find(1, 1000, Before, false)
	require.NoError(t, err)
	require.Equal(t, uint64(5), block.Number)
}
