package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"taskbench/evaluation/results"
	"taskbench/evaluation/verification"
	"taskbench/internal/async"
	"taskbench/internal/config"
	"taskbench/internal/shared/logging"
)

const shutdownTimeout = 10 * time.Second

// RunServer serves the read-only API until ctx is done, then shuts down
// gracefully.
func RunServer(ctx context.Context, cfg config.Config, logger logging.Logger) error {
	logger = logging.OrNop(logger)
	logger.Info("starting (port=%d, tasks_root=%s)", cfg.Server.Port, cfg.TasksRoot)

	// Phase 1: discover every service
	catalog, err := NewCatalog(cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("init catalog: %w", err)
	}
	logger.Info("catalog ready (%d services)", len(catalog.Services()))

	// Phase 2: results store
	store, err := results.NewStore(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("init results store: %w", err)
	}

	// Phase 3: wire HTTP router
	verification.DefaultMetrics()
	router := NewRouter(RouterDeps{
		Catalog:  catalog,
		Store:    store,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logging.Named(logger, "http"),
	}, RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Debug:          cfg.LogLevel == "debug",
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Phase 4: graceful shutdown
	errCh := make(chan error, 1)
	async.Go(logger, "http-server", func() {
		defer close(errCh)
		logger.Info("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	select {
	case <-ctx.Done():
		logger.Info("shutting down: %v", context.Cause(ctx))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}
