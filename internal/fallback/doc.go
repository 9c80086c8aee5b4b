// Package fallback serves the canned degraded responses returned when a
// route's backend is unavailable.
package fallback
