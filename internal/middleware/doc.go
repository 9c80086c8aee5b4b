// Package middleware provides the HTTP middleware wrapped around the
// edge dispatcher.
//
// # Middleware Components
//
//   - RequestID: request identifier propagation
//   - Recovery: panic recovery with a JSON 500 response
//   - Logging: structured access logging
//   - BodyLimit: request body size limiting
//
// # Usage
//
// Middleware functions follow the standard Go pattern and compose with
// Chain, outermost first:
//
//	handler := middleware.Chain(
//	    middleware.Recovery(logger),
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	)(dispatcher)
package middleware
