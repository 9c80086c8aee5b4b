// Package observability provides logging, metrics, and tracing
// functionality for the edge gateway.
//
// # Logging
//
// The Logger interface wraps zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer func() { _ = logger.Sync() }()
//
//	logger.WithContext(ctx).Info("request dispatched",
//	    observability.String("route", "cars"),
//	)
//
// # Metrics
//
// Prometheus metrics for the dispatch pipeline, served together with
// the default registry:
//
//	metrics := observability.NewMetrics("edgegw")
//	mux.Handle("/metrics", metrics.Handler())
//
// # Tracing
//
// OpenTelemetry tracing with an OTLP gRPC exporter:
//
//	tracer, err := observability.NewTracer(observability.TracerConfig{
//	    Enabled: true, ServiceName: "edgegw", OTLPEndpoint: "localhost:4317",
//	})
//	defer func() { _ = tracer.Shutdown(ctx) }()
package observability
