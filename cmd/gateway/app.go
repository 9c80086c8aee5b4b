package main

import (
	"fmt"
	"net/http"

	"github.com/vyrodovalexey/edgegw/internal/config"
	"github.com/vyrodovalexey/edgegw/internal/gateway"
	"github.com/vyrodovalexey/edgegw/internal/observability"
)

// application holds all application components.
type application struct {
	gateway     *gateway.Gateway
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	config      *config.GatewayConfig
	adminServer *http.Server
}

// newApplication initializes all application components.
func newApplication(cfg *config.GatewayConfig, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("edgegw")
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer, err := initTracer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	gw, err := gateway.New(cfg,
		gateway.WithLogger(logger),
		gateway.WithMetrics(metrics),
		gateway.WithTracer(tracer),
		gateway.WithVersion(version),
	)
	if err != nil {
		return nil, err
	}

	app := &application{
		gateway: gw,
		metrics: metrics,
		tracer:  tracer,
		config:  cfg,
	}

	if cfg.Spec.Observability.Metrics.Enabled {
		app.adminServer = newAdminServer(cfg.Spec.Observability.Metrics, gw, metrics)
	}

	return app, nil
}

// initTracer initializes the tracer.
func initTracer(cfg *config.GatewayConfig) (*observability.Tracer, error) {
	t := cfg.Spec.Observability.Tracing

	serviceName := t.ServiceName
	if serviceName == "" {
		serviceName = observability.DefaultServiceName
	}

	return observability.NewTracer(observability.TracerConfig{
		ServiceName:  serviceName,
		OTLPEndpoint: t.OTLPEndpoint,
		SamplingRate: t.SamplingRate,
		Enabled:      t.Enabled,
	})
}
