package dispatcher

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/edgegw/internal/auth"
	"github.com/vyrodovalexey/edgegw/internal/backend"
	"github.com/vyrodovalexey/edgegw/internal/circuitbreaker"
	"github.com/vyrodovalexey/edgegw/internal/fallback"
	"github.com/vyrodovalexey/edgegw/internal/observability"
	"github.com/vyrodovalexey/edgegw/internal/router"
	"github.com/vyrodovalexey/edgegw/internal/util"
)

// Request outcome label values.
const (
	OutcomeForwarded    = "forwarded"
	OutcomeNotFound     = "not_found"
	OutcomeUnauthorized = "unauthorized"
	OutcomeFallback     = "fallback"
	OutcomeBadGateway   = "bad_gateway"
	OutcomeAbandoned    = "abandoned"
)

// Fallback reason label values.
const (
	ReasonShortCircuit   = "short_circuit"
	ReasonBackendFailure = "backend_failure"
)

// Dispatcher runs the edge pipeline for each inbound request: route
// match, authentication, then the backend call guarded by the route's
// circuit breaker with a fallback on failure.
type Dispatcher struct {
	table     atomic.Pointer[router.Table]
	gate      *auth.Gate
	breakers  *circuitbreaker.Registry
	forwarder backend.Forwarder
	fallback  fallback.Responder
	metrics   *observability.Metrics
	logger    observability.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBreakers sets the breaker registry.
func WithBreakers(reg *circuitbreaker.Registry) Option {
	return func(d *Dispatcher) {
		d.breakers = reg
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a dispatcher serving table.
func New(
	table *router.Table,
	gate *auth.Gate,
	forwarder backend.Forwarder,
	responder fallback.Responder,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		gate:      gate,
		forwarder: forwarder,
		fallback:  responder,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.breakers == nil {
		d.breakers = circuitbreaker.NewRegistry(d.logger)
	}
	d.table.Store(table)
	return d
}

// SwapTable replaces the route table. Requests already matched keep the
// route they matched.
func (d *Dispatcher) SwapTable(table *router.Table) {
	d.table.Store(table)
}

// Table returns the current route table.
func (d *Dispatcher) Table() *router.Table {
	return d.table.Load()
}

// Breakers returns the breaker registry.
func (d *Dispatcher) Breakers() *circuitbreaker.Registry {
	return d.breakers
}

// ServeHTTP implements http.Handler. Every failure is answered with a
// well-formed response.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := d.logger.WithContext(ctx)

	route, err := d.table.Load().Match(r.URL.Path)
	if err != nil {
		log.Debug("no route matched",
			observability.String("method", r.Method),
			observability.String("path", r.URL.Path),
		)
		util.WriteJSONError(w, http.StatusNotFound, "not found",
			util.NewRouteNotFoundError(r.Method, r.URL.Path).Error())
		d.recordRequest("", OutcomeNotFound, start)
		return
	}

	ctx = util.ContextWithRoute(ctx, route.Name)
	ctx = util.ContextWithBackend(ctx, route.Target)
	r = r.WithContext(ctx)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("http.route", route.Name))
	log = log.With(observability.String("route", route.Name))

	outcome := d.gate.Apply(r, route)
	d.recordAuth(outcome)
	if !outcome.Authorized() {
		if outcome.Cause != nil {
			log.Warn("token validation failed",
				observability.String("outcome", outcome.Kind.String()),
				observability.Error(outcome.Cause),
			)
		} else {
			log.Debug("request rejected",
				observability.String("outcome", outcome.Kind.String()),
			)
		}
		util.WriteJSONError(w, http.StatusUnauthorized, "unauthorized", outcome.Reason)
		d.recordRequest(route.Name, OutcomeUnauthorized, start)
		return
	}

	if route.Breaker == nil {
		d.forwardDirect(w, r, route, log, start)
		return
	}
	d.forwardGuarded(w, r, route, log, start)
}

// forwardDirect copies the backend response through, whatever its status.
func (d *Dispatcher) forwardDirect(
	w http.ResponseWriter,
	r *http.Request,
	route *router.Route,
	log observability.Logger,
	start time.Time,
) {
	resp, err := d.forwarder.Forward(r.Context(), r, route.Target)
	if err != nil {
		if abandoned(r.Context(), err) {
			d.recordRequest(route.Name, OutcomeAbandoned, start)
			return
		}
		log.Error("backend call failed", observability.Error(err))
		util.WriteJSONError(w, http.StatusBadGateway, "bad gateway",
			"The upstream service did not respond")
		d.recordRequest(route.Name, OutcomeBadGateway, start)
		return
	}

	d.writeBackend(w, resp, log)
	d.recordRequest(route.Name, OutcomeForwarded, start)
}

// forwardGuarded runs the backend call through the route's breaker. A
// transport error or a status of 500 or above is a backend failure: it
// counts against the breaker and is answered with the route's fallback.
// Any lower status, 4xx included, is a success and is copied through
// unchanged.
func (d *Dispatcher) forwardGuarded(
	w http.ResponseWriter,
	r *http.Request,
	route *router.Route,
	log observability.Logger,
	start time.Time,
) {
	breaker := d.breakers.GetOrCreate(route.BreakerKey(), *route.Breaker)

	var resp *http.Response
	err := breaker.Execute(r.Context(), func(ctx context.Context) error {
		res, err := d.forwarder.Forward(ctx, r, route.Target)
		if err != nil {
			return err
		}
		if res.StatusCode >= http.StatusInternalServerError {
			backend.DiscardResponse(res)
			return util.NewBackendErrorWithCause(route.Target, "server error",
				util.NewServerError(res.StatusCode))
		}
		resp = res
		return nil
	})

	if err == nil {
		d.writeBackend(w, resp, log)
		d.recordRequest(route.Name, OutcomeForwarded, start)
		return
	}

	if abandoned(r.Context(), err) {
		d.recordRequest(route.Name, OutcomeAbandoned, start)
		return
	}

	reason := ReasonBackendFailure
	if circuitbreaker.IsShortCircuit(err) {
		reason = ReasonShortCircuit
		log.Debug("circuit breaker short-circuited request",
			observability.String("breaker", breaker.Name()),
		)
	} else {
		log.Warn("backend call failed, serving fallback",
			observability.String("breaker", breaker.Name()),
			observability.Error(err),
		)
	}

	if d.metrics != nil {
		d.metrics.RecordFallback(route.Name, reason)
	}
	d.fallback.Respond(w, r, route.FallbackPath())
	d.recordRequest(route.Name, OutcomeFallback, start)
}

func (d *Dispatcher) writeBackend(w http.ResponseWriter, resp *http.Response, log observability.Logger) {
	if err := backend.WriteResponse(w, resp); err != nil {
		log.Debug("failed to copy backend response", observability.Error(err))
	}
}

// abandoned reports whether err only reflects the client going away.
func abandoned(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, context.Canceled)
}

func (d *Dispatcher) recordAuth(outcome auth.Outcome) {
	if d.metrics != nil {
		d.metrics.RecordAuthOutcome(outcome.Kind.String())
	}
}

func (d *Dispatcher) recordRequest(route, outcome string, start time.Time) {
	if d.metrics != nil {
		d.metrics.RecordRequest(route, outcome, time.Since(start))
	}
}
