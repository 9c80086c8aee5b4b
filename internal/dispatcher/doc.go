// Package dispatcher implements the edge request pipeline.
//
// For each request the Dispatcher matches a route, applies the
// authentication gate, and forwards the request to the route's target.
// Routes with a circuit breaker forward through it; a short-circuit or a
// failed backend call (transport error or 5xx) is answered with the
// route's fallback instead of an error.
package dispatcher
