// Package circuitbreaker provides per-route circuit breakers for the
// edge gateway.
//
// A breaker is closed while its backend is healthy, opens after a run
// of consecutive failures (or a failure ratio over a sampling window),
// rejects calls while open, and after the open duration admits a small
// number of half-open trial calls that decide whether it closes again.
//
// Two engines implement the same Breaker interface: the native
// CircuitBreaker, which reads time from an injected clockwork.Clock,
// and GoBreaker, built on github.com/sony/gobreaker. Policy.Engine
// selects one.
//
// # Usage
//
//	reg := circuitbreaker.NewRegistry(logger)
//	b := reg.GetOrCreate(circuitbreaker.Key("cars", "gateway-cb"), policy)
//	err := b.Execute(ctx, func(ctx context.Context) error {
//	    return callBackend(ctx)
//	})
//	if circuitbreaker.IsShortCircuit(err) {
//	    // serve the fallback
//	}
package circuitbreaker
