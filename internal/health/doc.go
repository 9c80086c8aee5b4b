// Package health provides health check and readiness endpoints
// for the edge gateway.
//
// Readiness aggregates registered checks: an open circuit breaker makes
// the gateway degraded, an unreachable token cache makes it unhealthy.
//
// # Usage
//
//	checker := health.NewChecker(version)
//	checker.RegisterCheck("circuit_breakers", health.BreakerCheck(registry))
//
//	mux := http.NewServeMux()
//	checker.Register(mux)
//	mux.Handle("/breakers", health.BreakersHandler(registry))
package health
