// Package ingest implements the per-chain ingestion loop from spec §4.F:
// cursor -> head -> batch -> persist -> advance, run independently for
// every registered chain.
package ingest

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/prettyirrelevant/kizami/pkg/metrics"
	"github.com/prettyirrelevant/kizami/pkg/progress"
	"github.com/prettyirrelevant/kizami/pkg/registry"
	"github.com/prettyirrelevant/kizami/pkg/sqdclient"
	"github.com/prettyirrelevant/kizami/pkg/store"
)

// Engine runs one scheduled cycle per registered chain.
type Engine struct {
	sqd      *sqdclient.Client
	blocks   *store.BlockStore
	cursors  *store.CursorStore
	progress *progress.Map
	metrics  *metrics.Metrics
	logger   *zap.Logger

	batchSize    uint64
	intervalSecs int
	pool         pond.Pool
	states       *stateTracker
}

// Config tunes the engine.
type Config struct {
	BatchSize    uint64
	IntervalSecs int
}

// New builds an Engine ready to Start.
func New(sqd *sqdclient.Client, blocks *store.BlockStore, cursors *store.CursorStore, prog *progress.Map, m *metrics.Metrics, logger *zap.Logger, cfg Config) *Engine {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 50_000
	}
	if cfg.IntervalSecs <= 0 {
		cfg.IntervalSecs = 60
	}

	chains := registry.List()
	ids := make([]uint32, len(chains))
	for i, c := range chains {
		ids[i] = c.ChainID
	}

	return &Engine{
		sqd:          sqd,
		blocks:       blocks,
		cursors:      cursors,
		progress:     prog,
		metrics:      m,
		logger:       logger,
		batchSize:    cfg.BatchSize,
		intervalSecs: cfg.IntervalSecs,
		states:       newStateTracker(ids),
	}
}

// State reports a chain's current cycle state. It is not included in the
// /v1/indexing-status response.
func (e *Engine) State(chainID uint32) CycleState {
	return e.states.get(chainID)
}

// Start spawns one pooled task per registered chain (pool sized to the
// chain count, so no chain ever waits on another's goroutine), each task
// running its own single-entry cron.Cron with an "@every <interval>s" job
// wrapped in cron.DelayIfStillRunning — giving the spec's "sleep relative
// to cycle start; if a cycle overran, the next begins immediately"
// semantics without a hand-rolled ticker-drift loop. A task exits, and its
// private scheduler drains, the moment ctx is canceled.
func (e *Engine) Start(ctx context.Context) error {
	chains := registry.List()
	e.pool = pond.NewPool(len(chains))

	for _, chain := range chains {
		chain := chain
		e.pool.Submit(func() {
			e.runChainScheduler(ctx, chain)
		})
	}

	return nil
}

// runChainScheduler owns one chain's private scheduler for the lifetime of
// the pooled task: start it, block until ctx is canceled, then stop it.
func (e *Engine) runChainScheduler(ctx context.Context, chain registry.Descriptor) {
	cronLogger := zapCronLogger{logger: e.logger.With(zap.String("chain", chain.Slug))}
	c := cron.New(cron.WithChain(cron.DelayIfStillRunning(cronLogger), cron.Recover(cronLogger)))

	if _, err := c.AddFunc(everySpec(e.intervalSecs), func() {
		e.runCycle(ctx, chain)
	}); err != nil {
		e.logger.Error("failed to schedule chain", zap.String("chain", chain.Slug), zap.Error(err))
		return
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
}

// Stop waits for every chain's pooled task to finish its current cycle and
// exit, bounded by ctx's deadline. The tasks themselves already react to
// the cancellation of the context passed to Start; this only bounds how
// long the supervisor waits for that drain to complete.
func (e *Engine) Stop(ctx context.Context) {
	if e.pool == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		e.pool.StopAndWait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func everySpec(intervalSecs int) string {
	return "@every " + time.Duration(intervalSecs*int(time.Second)).String()
}

// runCycle executes one full Idle -> Probing -> Streaming -> Persisting ->
// Publishing -> Idle cycle for chain, per spec §4.F. Any failure path
// returns to Idle without having written the cursor store or advanced the
// progress map's cursor; a head from a successful probe is published to the
// progress map as soon as it is read, even if the cycle later fails.
func (e *Engine) runCycle(ctx context.Context, chain registry.Descriptor) {
	start := time.Now()
	chainLabel := chain.Slug
	logger := e.logger.With(zap.String("chain", chain.Slug), zap.Uint32("chain_id", chain.ChainID))

	status := "ok"
	defer func() {
		e.states.set(chain.ChainID, StateIdle)
		e.metrics.IngestCyclesTotal.WithLabelValues(chainLabel, status).Inc()
		e.metrics.IngestCycleDuration.WithLabelValues(chainLabel).Observe(time.Since(start).Seconds())
	}()

	// 1. Warm cursor from the progress map (hydrated at startup by the supervisor).
	entry, _ := e.progress.Read(chain.ChainID)
	cursor := entry.Cursor

	// 2. Probe head. On failure, keep the previously known head; if there is
	// none, skip this cycle entirely.
	e.states.set(chain.ChainID, StateProbing)
	head, err := e.sqd.Head(ctx, chain.Slug)
	if err != nil {
		if entry.Head == 0 {
			logger.Warn("head probe failed with no prior head known, skipping cycle", zap.Error(err))
			status = "no_head"
			return
		}
		logger.Warn("head probe failed, keeping prior head", zap.Uint64("prior_head", entry.Head), zap.Error(err))
		head = entry.Head
	} else {
		e.progress.UpdateHead(chain.ChainID, head, time.Now())
	}

	// 3. Compute gap.
	if head <= cursor {
		status = "caught_up"
		return
	}

	// 4. Batch window.
	from := cursor + 1
	to := cursor + e.batchSize
	if to > head {
		to = head
	}

	// 5. Stream blocks into a bounded in-memory buffer.
	e.states.set(chain.ChainID, StateStreaming)
	buffer := make([]store.Record, 0, to-from+1)
	streamErr := e.sqd.Stream(ctx, chain.Slug, from, to, func(row sqdclient.Row) error {
		buffer = append(buffer, store.Record{ChainID: chain.ChainID, Number: row.Number, Timestamp: row.Timestamp})
		return nil
	})
	if streamErr != nil {
		logger.Warn("stream failed, discarding partial batch", zap.Error(streamErr))
		status = "stream_error"
		return
	}

	// 6. Persist, then advance the cursor. Cursor only moves after the
	// batch is durably written (the progress-first invariant).
	e.states.set(chain.ChainID, StatePersisting)
	if err := e.blocks.PutBatch(buffer); err != nil {
		logger.Error("persist batch failed, cursor not advanced", zap.Error(err))
		status = "storage_error"
		return
	}
	e.metrics.IngestBlocksTotal.WithLabelValues(chainLabel).Add(float64(len(buffer)))

	now := time.Now().Unix()
	if err := e.cursors.Put(chain.Slug, int64(to), now); err != nil {
		// Persistence succeeded but the cursor write failed: the next
		// cycle re-reads the old cursor and re-ingests the same range,
		// which is safe because block writes are idempotent.
		logger.Error("cursor advance failed, will re-ingest same range next cycle", zap.Error(err))
		status = "storage_error"
		return
	}

	// 7. Publish.
	e.states.set(chain.ChainID, StatePublishing)
	e.progress.UpdateCursor(chain.ChainID, to)
	e.progress.UpdateHead(chain.ChainID, head, time.Now())

	logger.Info("ingestion cycle complete",
		zap.Uint64("from", from), zap.Uint64("to", to),
		zap.Int("records", len(buffer)), zap.Duration("took", time.Since(start)))
}
