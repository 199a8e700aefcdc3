package ingest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/prettyirrelevant/kizami/pkg/metrics"
	"github.com/prettyirrelevant/kizami/pkg/progress"
	"github.com/prettyirrelevant/kizami/pkg/registry"
	"github.com/prettyirrelevant/kizami/pkg/sqdclient"
	"github.com/prettyirrelevant/kizami/pkg/store"
)

func newTestEngine(t *testing.T, head uint64, rows []sqdclient.Row) (*Engine, *store.BlockStore, *store.CursorStore, *progress.Map) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/head") {
			_, _ = fmt.Fprintf(w, "%d", head)
			return
		}
		for _, row := range rows {
			_, _ = fmt.Fprintf(w, `{"number":%d,"timestamp":%d}`+"\n", row.Number, row.Timestamp)
		}
	}))
	t.Cleanup(srv.Close)

	logger := zaptest.NewLogger(t)
	dir := t.TempDir()

	blocks, err := store.OpenBlockStore(filepath.Join(dir, "blocks"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = blocks.Close() })

	cursors, err := store.OpenCursorStore(filepath.Join(dir, "cursors"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cursors.Close() })

	prog := progress.New()
	prog.LoadFrom(nil, registry.List())

	m := metrics.New()
	sqd := sqdclient.New(sqdclient.Opts{BaseURL: srv.URL})

	engine := New(sqd, blocks, cursors, prog, m, logger, Config{BatchSize: 1000, IntervalSecs: 60})
	return engine, blocks, cursors, prog
}

func TestRunCycleAdvancesCursorAndPersistsBatch(t *testing.T) {
	chain := registry.Descriptor{ChainID: 1, Slug: "ethereum-mainnet", Name: "Ethereum Mainnet"}
	rows := []sqdclient.Row{
		{Number: 1, Timestamp: 100},
		{Number: 2, Timestamp: 200},
	}
	engine, blocks, cursors, prog := newTestEngine(t, 2, rows)

	engine.runCycle(t.Context(), chain)

	cur, err := cursors.Get(chain.Slug)
	require.NoError(t, err)
	require.Equal(t, int64(2), cur.LastBlock)

	entry, ok := prog.Read(chain.ChainID)
	require.True(t, ok)
	require.Equal(t, uint64(2), entry.Cursor)

	block, err := blocks.Find(chain.ChainID, 150, store.Before, false)
	require.NoError(t, err)
	require.Equal(t, uint64(1), block.Number)
}

func TestRunCycleCaughtUpDoesNotAdvance(t *testing.T) {
	chain := registry.Descriptor{ChainID: 1, Slug: "ethereum-mainnet", Name: "Ethereum Mainnet"}
	engine, _, cursors, _ := newTestEngine(t, 0, nil)

	engine.runCycle(t.Context(), chain)

	_, err := cursors.Get(chain.Slug)
	require.Error(t, err, "caught-up cycle must not write a cursor")
}

func TestRunCycleCapsBatchAtConfiguredSize(t *testing.T) {
	chain := registry.Descriptor{ChainID: 1, Slug: "ethereum-mainnet", Name: "Ethereum Mainnet"}
	rows := []sqdclient.Row{{Number: 1, Timestamp: 100}}
	engine, _, cursors, _ := newTestEngine(t, 5000, rows)
	engine.batchSize = 10

	engine.runCycle(t.Context(), chain)

	cur, err := cursors.Get(chain.Slug)
	require.NoError(t, err)
	require.Equal(t, int64(10), cur.LastBlock)
}
