// Package util provides utility functions and types for the
// edge gateway.
//
// This package contains shared utilities used across the gateway
// including context helpers, error types and HTTP utilities.
//
// # Context Helpers
//
// Context utilities for request-scoped data:
//
//	ctx = util.ContextWithRoute(ctx, "cars")
//	route := util.RouteFromContext(ctx)
//
// # Error Types
//
// Structured error types for consistent error handling:
//
//   - RouteNotFoundError: no route pattern matched the request path
//   - BackendError: a forwarded call failed
//   - TimeoutError: an outbound call exceeded its deadline
//   - ServerError: backend answered with a 5xx status code
//   - Common sentinel errors: ErrNotFound, ErrTimeout, etc.
//
// # HTTP Utilities
//
// JSON error bodies and a response writer wrapper for status capture:
//
//	util.WriteJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
package util
