package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/edgegw/internal/auth"
	"github.com/vyrodovalexey/edgegw/internal/backend"
	"github.com/vyrodovalexey/edgegw/internal/cache"
	"github.com/vyrodovalexey/edgegw/internal/circuitbreaker"
	"github.com/vyrodovalexey/edgegw/internal/config"
	"github.com/vyrodovalexey/edgegw/internal/dispatcher"
	"github.com/vyrodovalexey/edgegw/internal/fallback"
	"github.com/vyrodovalexey/edgegw/internal/health"
	"github.com/vyrodovalexey/edgegw/internal/middleware"
	"github.com/vyrodovalexey/edgegw/internal/observability"
	"github.com/vyrodovalexey/edgegw/internal/router"
)

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// DefaultShutdownTimeout bounds Stop when the caller's context has no
// deadline.
const DefaultShutdownTimeout = 30 * time.Second

// Gateway is the edge gateway.
type Gateway struct {
	config  *config.GatewayConfig
	logger  observability.Logger
	tracer  *observability.Tracer
	metrics *observability.Metrics
	version string

	client      *http.Client
	services    *backend.Registry
	tokenCache  cache.Cache
	breakers    *circuitbreaker.Registry
	breakerOpts []circuitbreaker.Option
	fallbacks   *fallback.Handler
	dispatcher  *dispatcher.Dispatcher
	engine      atomic.Pointer[gin.Engine]
	handler     http.Handler
	listener    *Listener

	state     atomic.Int32
	startTime time.Time
	mu        sync.RWMutex

	shutdownTimeout time.Duration
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer *observability.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = tracer
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = metrics
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(version string) Option {
	return func(g *Gateway) {
		g.version = version
	}
}

// WithBreakerOptions adds options applied to every circuit breaker.
func WithBreakerOptions(opts ...circuitbreaker.Option) Option {
	return func(g *Gateway) {
		g.breakerOpts = append(g.breakerOpts, opts...)
	}
}

// WithShutdownTimeout sets the shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.shutdownTimeout = timeout
	}
}

// New fills defaults into cfg, validates it and builds the dispatch pipeline. The gateway does
// not listen until Start.
func New(cfg *config.GatewayConfig, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	g := &Gateway{
		config:          cfg,
		logger:          observability.NopLogger(),
		tracer:          observability.NopTracer(),
		version:         "dev",
		shutdownTimeout: DefaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = observability.NewMetrics("")
	}

	cfg.ApplyDefaults()
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := g.build(cfg); err != nil {
		g.release()
		return nil, err
	}

	g.state.Store(int32(StateStopped))

	return g, nil
}

// build wires every pipeline component from cfg.
func (g *Gateway) build(cfg *config.GatewayConfig) error {
	spec := cfg.Spec

	g.client = backend.NewClient(context.Background(), backend.ClientConfig{
		Timeout:         spec.Forwarding.Timeout.Duration(),
		IdleConnTimeout: spec.Forwarding.IdleConnTimeout.Duration(),
	})

	services, err := backend.NewRegistry(spec.Services)
	if err != nil {
		return fmt.Errorf("failed to load services: %w", err)
	}
	g.services = services

	table, err := router.NewTableFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to load routes: %w", err)
	}

	checker, err := g.tokenChecker(spec.Auth)
	if err != nil {
		return err
	}

	breakerOpts := append([]circuitbreaker.Option{
		circuitbreaker.WithStateChangeFunc(func(name string, _, to circuitbreaker.State) {
			g.metrics.SetCircuitBreakerState(name, int(to))
		}),
	}, g.breakerOpts...)
	g.breakers = circuitbreaker.NewRegistry(g.logger, breakerOpts...)
	g.breakers.Sync(table.BreakerPolicies())

	g.fallbacks = fallback.NewHandler(spec.Fallbacks, g.logger)

	forwarder := backend.NewHTTPForwarder(g.client, g.services,
		backend.WithForwarderLogger(g.logger),
		backend.WithForwarderTracer(g.tracer),
	)

	g.dispatcher = dispatcher.New(table, auth.NewGate(checker, g.logger), forwarder, g.fallbacks,
		dispatcher.WithBreakers(g.breakers),
		dispatcher.WithMetrics(g.metrics),
		dispatcher.WithLogger(g.logger),
	)

	engine, err := newEngine(spec.Fallbacks, g.fallbacks, g.dispatcher, g.logger)
	if err != nil {
		return err
	}
	g.engine.Store(engine)

	g.handler = middleware.Chain(
		middleware.Recovery(g.logger),
		middleware.RequestID(),
		observability.TracingMiddleware(g.tracer),
		observability.MetricsMiddleware(g.metrics),
		middleware.Logging(g.logger),
		middleware.BodyLimit(spec.Listener.MaxRequestBodySize, g.logger),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.engine.Load().ServeHTTP(w, r)
	}))

	g.listener = NewListener(spec.Listener, g.handler, WithListenerLogger(g.logger))

	return nil
}

// tokenChecker builds the remote validator, wrapped in the token cache
// when one is enabled.
func (g *Gateway) tokenChecker(cfg config.AuthConfig) (auth.TokenChecker, error) {
	authMetrics := auth.NewMetricsWithRegisterer("edgegw", g.metrics.Registry())

	validator := auth.NewRemoteValidator(cfg.ValidateURL,
		auth.WithHTTPClient(g.client),
		auth.WithTimeout(cfg.Timeout.Duration()),
		auth.WithValidField(cfg.ValidField),
		auth.WithValidatorLogger(g.logger),
		auth.WithValidatorTracer(g.tracer),
		auth.WithValidatorMetrics(authMetrics),
	)

	if !cfg.Cache.Enabled {
		return validator, nil
	}

	store, err := cache.New(cfg.Cache, g.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}
	g.tokenCache = store

	return auth.NewCachingValidator(validator, store, cfg.Cache.TTL.Duration(), g.logger, authMetrics), nil
}

// Start starts the gateway.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return errors.New("gateway is not in stopped state")
	}

	cfg := g.Config()
	g.logger.Info("starting gateway",
		observability.String("name", cfg.Metadata.Name),
	)

	if err := g.listener.Start(ctx); err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to start listener %s: %w", g.listener.Name(), err)
	}

	g.mu.Lock()
	g.startTime = time.Now()
	g.mu.Unlock()
	g.state.Store(int32(StateRunning))

	g.logger.Info("gateway started",
		observability.String("name", cfg.Metadata.Name),
		observability.String("address", g.listener.Addr().String()),
		observability.Int("routes", g.dispatcher.Table().Len()),
	)

	return nil
}

// Stop stops the gateway gracefully and releases its clients.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return errors.New("gateway is not running")
	}

	g.logger.Info("stopping gateway",
		observability.String("name", g.Config().Metadata.Name),
	)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.shutdownTimeout)
		defer cancel()
	}

	err := g.listener.Stop(ctx)
	if err != nil {
		g.logger.Error("failed to stop listener",
			observability.String("name", g.listener.Name()),
			observability.Error(err),
		)
	}

	g.release()
	g.state.Store(int32(StateStopped))

	g.logger.Info("gateway stopped")

	return err
}

// release closes the backend client and the token cache.
func (g *Gateway) release() {
	if g.client != nil {
		if err := backend.CloseClient(g.client); err != nil {
			g.logger.Warn("failed to close backend client", observability.Error(err))
		}
	}
	if g.tokenCache != nil {
		if err := g.tokenCache.Close(); err != nil {
			g.logger.Warn("failed to close token cache", observability.Error(err))
		}
	}
}

// Reload applies a new configuration. Routes, services and fallbacks
// change immediately; breakers whose policy changed restart closed and
// breakers of removed routes are dropped.
// Listener and auth changes need a restart. On error the running
// configuration is kept.
func (g *Gateway) Reload(cfg *config.GatewayConfig) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cfg == nil {
		return errors.New("configuration is required")
	}

	g.logger.Info("reloading gateway configuration",
		observability.String("name", cfg.Metadata.Name),
	)

	cfg.ApplyDefaults()
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	table, err := router.NewTableFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to load routes: %w", err)
	}

	engine, err := newEngine(cfg.Spec.Fallbacks, g.fallbacks, g.dispatcher, g.logger)
	if err != nil {
		return err
	}

	if err := g.services.Update(cfg.Spec.Services); err != nil {
		return fmt.Errorf("failed to load services: %w", err)
	}
	g.fallbacks.Update(cfg.Spec.Fallbacks)
	g.dispatcher.SwapTable(table)
	g.engine.Store(engine)

	for _, key := range g.breakers.Sync(table.BreakerPolicies()) {
		g.metrics.DeleteCircuitBreakerState(key)
	}

	if cfg.Spec.Listener != g.config.Spec.Listener || cfg.Spec.Auth != g.config.Spec.Auth {
		g.logger.Warn("listener and auth changes take effect after restart")
	}

	g.config = cfg

	g.logger.Info("gateway configuration reloaded",
		observability.String("name", cfg.Metadata.Name),
		observability.Int("routes", table.Len()),
	)

	return nil
}

// HealthChecker returns a checker wired to the gateway's breakers and
// token cache.
func (g *Gateway) HealthChecker() *health.Checker {
	checker := health.NewChecker(g.version)
	checker.RegisterCheck("circuit_breakers", health.BreakerCheck(g.breakers))
	if g.tokenCache != nil {
		checker.RegisterCheck("token_cache", health.CacheCheck(g.tokenCache))
	}
	return checker
}

// State returns the current gateway state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning returns true if the gateway is running.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Uptime returns the gateway uptime.
func (g *Gateway) Uptime() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.startTime.IsZero() {
		return 0
	}
	return time.Since(g.startTime)
}

// Config returns the current configuration.
func (g *Gateway) Config() *config.GatewayConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.config
}

// Handler returns the full inbound handler including middleware.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Engine returns the gin engine serving the current configuration.
func (g *Gateway) Engine() *gin.Engine {
	return g.engine.Load()
}

// Listener returns the inbound listener.
func (g *Gateway) Listener() *Listener {
	return g.listener
}

// Breakers returns the circuit breaker registry.
func (g *Gateway) Breakers() *circuitbreaker.Registry {
	return g.breakers
}

// Metrics returns the gateway metrics.
func (g *Gateway) Metrics() *observability.Metrics {
	return g.metrics
}
