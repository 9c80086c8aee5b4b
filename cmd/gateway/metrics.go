package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vyrodovalexey/edgegw/internal/config"
	"github.com/vyrodovalexey/edgegw/internal/gateway"
	"github.com/vyrodovalexey/edgegw/internal/health"
	"github.com/vyrodovalexey/edgegw/internal/observability"
)

// newAdminServer builds the metrics server. It also answers health checks
// and lists circuit breakers.
func newAdminServer(cfg config.MetricsConfig, gw *gateway.Gateway, metrics *observability.Metrics) *http.Server {
	path := cfg.Path
	if path == "" {
		path = config.DefaultMetricsPath
	}

	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	gw.HealthChecker().Register(mux)
	mux.Handle("/breakers", health.BreakersHandler(gw.Breakers()))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// serveAdmin runs the metrics server until it is shut down.
func serveAdmin(server *http.Server, logger observability.Logger) error {
	logger.Info("starting metrics server",
		observability.String("address", server.Addr),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
