// Package gateway assembles the edge gateway: it builds the dispatch
// pipeline from configuration, serves it on the configured listener and
// applies configuration reloads.
package gateway
