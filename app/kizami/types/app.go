// Package types holds the application container shared by the HTTP
// controllers and the supervisor, mirroring the teacher's app/query/types
// split between wiring (types.App) and behavior (controller.Controller).
package types

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/prettyirrelevant/kizami/pkg/ingest"
	"github.com/prettyirrelevant/kizami/pkg/lookup"
	"github.com/prettyirrelevant/kizami/pkg/metrics"
	"github.com/prettyirrelevant/kizami/pkg/progress"
	"github.com/prettyirrelevant/kizami/pkg/store"
)

// App is the process-wide set of singletons: one store handle, one
// progress map, one ingestion engine, one HTTP server (spec §9).
type App struct {
	Stores   *store.Stores
	Progress *progress.Map
	Lookup   *lookup.Service
	Engine   *ingest.Engine
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Server   *http.Server
}

// Start starts the ingestion engine and the HTTP server, then blocks until
// ctx is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Engine.Start(ctx); err != nil {
		a.Logger.Fatal("unable to start ingestion engine", zap.Error(err))
	}
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("http server stopped unexpectedly", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.Stop()
}

// Stop drains the ingestion engine (between cycles, or at the next safe
// cancellation point), shuts the HTTP server down with a bounded grace
// period, then closes the stores.
func (a *App) Stop() {
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.Engine.Stop(stopCtx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("http server shutdown error", zap.Error(err))
	}

	if err := a.Stores.Close(); err != nil {
		a.Logger.Error("failed to close stores", zap.Error(err))
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
