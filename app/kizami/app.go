// Package kizami wires together the stores, the ingestion engine, the
// lookup service and the HTTP server into one process, mirroring the
// teacher's app/indexer Initialize/Start/Stop split between wiring and
// lifecycle.
package kizami

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/prettyirrelevant/kizami/app/kizami/controller"
	"github.com/prettyirrelevant/kizami/app/kizami/types"
	"github.com/prettyirrelevant/kizami/pkg/ingest"
	"github.com/prettyirrelevant/kizami/pkg/logging"
	"github.com/prettyirrelevant/kizami/pkg/lookup"
	"github.com/prettyirrelevant/kizami/pkg/metrics"
	"github.com/prettyirrelevant/kizami/pkg/progress"
	"github.com/prettyirrelevant/kizami/pkg/registry"
	"github.com/prettyirrelevant/kizami/pkg/sqdclient"
	"github.com/prettyirrelevant/kizami/pkg/store"
	"github.com/prettyirrelevant/kizami/pkg/utils"
)

// Initialize opens the stores, rehydrates the progress map, and builds the
// ingestion engine and HTTP server. The returned App is ready to Start.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}

	dataDir := utils.Env("DATA_DIR", "./data")
	stores, err := store.Open(ctx, dataDir, logger)
	if err != nil {
		logger.Fatal("unable to open stores", zap.Error(err))
	}

	prog := progress.New()
	cursors, err := stores.Cursors.Snapshot()
	if err != nil {
		logger.Fatal("unable to read cursor snapshot", zap.Error(err))
	}
	prog.LoadFrom(cursors, registry.List())

	m := metrics.New()

	sqd := sqdclient.New(sqdclient.Opts{})

	engineCfg := ingest.Config{
		BatchSize:    uint64(utils.EnvInt("INGEST_BATCH_SIZE", 50_000)),
		IntervalSecs: utils.EnvInt("INGEST_INTERVAL_SECS", 60),
	}
	engine := ingest.New(sqd, stores.Blocks, stores.Cursors, prog, m, logger, engineCfg)

	lookupSvc := lookup.New(stores.Blocks, prog)

	app := &types.App{
		Stores:   stores,
		Progress: prog,
		Lookup:   lookupSvc,
		Engine:   engine,
		Metrics:  m,
		Logger:   logger,
	}

	ctl := controller.NewController(app)
	router := ctl.NewRouter()

	port := utils.Env("PORT", "8080")
	app.Server = &http.Server{
		Addr:              ":" + port,
		Handler:           controller.WithCORS(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("kizami initialized",
		zap.String("data_dir", dataDir),
		zap.Int("chains", len(registry.List())),
		zap.String("port", port),
		zap.Uint64("batch_size", engineCfg.BatchSize),
		zap.Int("interval_secs", engineCfg.IntervalSecs),
	)

	return app
}
