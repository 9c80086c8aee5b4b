package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vyrodovalexey/edgegw/internal/config"
	"github.com/vyrodovalexey/edgegw/internal/observability"
)

// shutdownTimeout bounds the graceful shutdown.
const shutdownTimeout = 30 * time.Second

// run starts the gateway and blocks until ctx is done, a termination
// signal arrives or the metrics server fails. It then shuts everything
// down.
func run(ctx context.Context, app *application, configPath string, logger observability.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.gateway.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if app.adminServer != nil {
		g.Go(func() error {
			return serveAdmin(app.adminServer, logger)
		})
	}

	watcher := startConfigWatcher(gctx, app, configPath, logger)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return shutdown(app, watcher, logger)
	})

	return g.Wait()
}

// startConfigWatcher starts the configuration watcher. A watcher that
// cannot start is logged and skipped; the gateway keeps its config.
func startConfigWatcher(
	ctx context.Context,
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Watcher {
	if configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(configPath, func(newCfg *config.GatewayConfig) {
		logger.Info("configuration changed, reloading")
		if reloadErr := app.gateway.Reload(newCfg); reloadErr != nil {
			logger.Error("failed to reload configuration", observability.Error(reloadErr))
		}
	},
		config.WithLogger(logger),
		config.WithErrorFunc(func(err error) {
			logger.Warn("configuration rejected", observability.Error(err))
		}),
	)
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
		_ = watcher.Stop()
		return nil
	}

	return watcher
}

// shutdown stops every component, reporting the first error.
func shutdown(app *application, watcher *config.Watcher, logger observability.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			logger.Warn("failed to stop config watcher", observability.Error(err))
		}
	}

	if app.adminServer != nil {
		logger.Info("stopping metrics server")
		if err := app.adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop metrics server gracefully", observability.Error(err))
			keep(err)
		}
	}

	if err := app.gateway.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop gateway gracefully", observability.Error(err))
		keep(err)
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
		keep(err)
	}

	logger.Info("gateway stopped")

	return firstErr
}
