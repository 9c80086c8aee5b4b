// Package router provides the edge gateway route table.
//
// A route pattern is either an exact path or a prefix followed by "/**".
// Lookups pick the longest matching literal prefix; an exact pattern
// beats a wildcard of the same length and registration order breaks the
// remaining ties, unless the table was built in strict mode, where
// duplicate patterns are rejected up front.
//
// Tables are immutable. A configuration reload builds a new table and
// the dispatcher swaps it in atomically.
//
// # Usage
//
//	table, err := router.NewTableFromConfig(cfg)
//	if err != nil {
//	    return err
//	}
//
//	route, err := table.Match("/api/v1/cars/42")
//	if errors.Is(err, util.ErrNotFound) {
//	    // 404
//	}
package router
