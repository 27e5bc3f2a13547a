package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/loadstone/loadstone/internal/ctxlog"
	"github.com/loadstone/loadstone/internal/watch"
)

// Run executes the engine lifecycle: optional metrics listener, the full
// load pipeline, then either returns (one-shot mode) or blocks watching
// for manifest changes until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.MetricsPort > 0 {
		go a.serveMetrics(ctx, a.config.MetricsPort)
	}

	if err := a.LoadAll(ctx); err != nil {
		return err
	}

	if !a.config.Watch {
		a.logger.Debug("App.Run method finished.")
		return nil
	}

	watcher := watch.New(a.config.ModsPath, a.reloadByDir)
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch mode failed: %w", err)
	}
	a.UnloadAll(context.WithoutCancel(ctx))
	return nil
}

// serveMetrics exposes the Prometheus collectors until ctx is cancelled.
func (a *App) serveMetrics(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	a.logger.Info("Metrics listener started.", "port", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("Metrics listener failed.", "error", err)
	}
}
