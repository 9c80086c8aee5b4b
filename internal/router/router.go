package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vyrodovalexey/edgegw/internal/circuitbreaker"
	"github.com/vyrodovalexey/edgegw/internal/util"
)

// wildcardSuffix marks a trailing-wildcard pattern.
const wildcardSuffix = "**"

// genericFallbackPrefix is used for breaker-guarded routes without a
// configured fallback path.
const genericFallbackPrefix = "/fallback/"

// Route is an immutable route descriptor.
type Route struct {
	Name string

	// Pattern is either an exact path or a prefix ending in "/**".
	Pattern string

	// Target is the opaque backend key, e.g. lb://car-microservice.
	Target string

	RequiresAuth bool

	// Breaker is nil when the route is not guarded by a circuit breaker.
	Breaker *circuitbreaker.Policy

	// Fallback is the local path served when the breaker short-circuits
	// or the backend fails.
	Fallback string
}

// FallbackPath returns the configured fallback path, or the generic
// /fallback/<name> path when none is set.
func (r *Route) FallbackPath() string {
	if r.Fallback != "" {
		return r.Fallback
	}
	return genericFallbackPrefix + r.Name
}

// BreakerKey returns the registry key of the route's breaker, or "" when
// the route has none.
func (r *Route) BreakerKey() string {
	if r.Breaker == nil {
		return ""
	}
	return circuitbreaker.Key(r.Name, r.Breaker.Name)
}

// IsWildcard reports whether the route pattern ends in "/**".
func (r *Route) IsWildcard() bool {
	return strings.HasSuffix(r.Pattern, wildcardSuffix)
}

// literal is the part of the pattern before the wildcard.
func (r *Route) literal() string {
	return strings.TrimSuffix(r.Pattern, wildcardSuffix)
}

// matchLen returns the number of path bytes the route accounts for, or
// -1 when it does not match.
func (r *Route) matchLen(path string) int {
	lit := r.literal()
	if !r.IsWildcard() {
		if path == lit {
			return len(lit)
		}
		return -1
	}
	if strings.HasPrefix(path, lit) {
		return len(lit)
	}
	// /api/v1/cars also matches /api/v1/cars/**.
	if bare := strings.TrimSuffix(lit, "/"); bare != "" && path == bare {
		return len(bare)
	}
	return -1
}

func (r *Route) validate() error {
	field := fmt.Sprintf("route %q", r.Name)
	switch {
	case r.Name == "":
		return util.NewConfigError("route", "name is required")
	case !strings.HasPrefix(r.Pattern, "/"):
		return util.NewConfigError(field, fmt.Sprintf("pattern %q must start with /", r.Pattern))
	case strings.Contains(r.literal(), "*"):
		return util.NewConfigError(field, fmt.Sprintf("pattern %q may only end in /**", r.Pattern))
	case r.IsWildcard() && !strings.HasSuffix(r.literal(), "/"):
		return util.NewConfigError(field, fmt.Sprintf("pattern %q may only end in /**", r.Pattern))
	case r.Target == "":
		return util.NewConfigError(field, "target is required")
	}
	return nil
}

// Table is an immutable route table. A Table is never modified after
// NewTable returns, so lookups need no locking; reloads build a new one.
type Table struct {
	routes []*Route
	byName map[string]*Route
}

// Option configures table construction.
type Option func(*tableOptions)

type tableOptions struct {
	strict bool
}

// WithStrict makes two routes with the same literal prefix a
// construction error instead of resolving them in registration order.
func WithStrict(strict bool) Option {
	return func(o *tableOptions) {
		o.strict = strict
	}
}

// NewTable validates routes and builds a table. The input order is the
// registration order used to break ties.
func NewTable(routes []Route, opts ...Option) (*Table, error) {
	var o tableOptions
	for _, opt := range opts {
		opt(&o)
	}

	t := &Table{
		routes: make([]*Route, 0, len(routes)),
		byName: make(map[string]*Route, len(routes)),
	}
	seen := make(map[string]string, len(routes))

	for i := range routes {
		r := routes[i]
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, exists := t.byName[r.Name]; exists {
			return nil, util.NewConfigError(fmt.Sprintf("route %q", r.Name), "duplicate route name")
		}
		if prev, exists := seen[r.Pattern]; exists && o.strict {
			return nil, util.NewConfigError(fmt.Sprintf("route %q", r.Name),
				fmt.Sprintf("pattern %q is already registered by route %q", r.Pattern, prev))
		}
		if _, exists := seen[r.Pattern]; !exists {
			seen[r.Pattern] = r.Name
		}

		t.routes = append(t.routes, &r)
		t.byName[r.Name] = &r
	}

	// Longest literal first, exact before wildcard; the stable sort keeps
	// registration order among equals.
	sort.SliceStable(t.routes, func(i, j int) bool {
		li, lj := len(t.routes[i].literal()), len(t.routes[j].literal())
		if li != lj {
			return li > lj
		}
		return !t.routes[i].IsWildcard() && t.routes[j].IsWildcard()
	})

	recordTableSize(len(t.routes))
	return t, nil
}

// Match returns the route for path. The route with the longest matching
// literal wins; an exact pattern beats a wildcard of the same length and
// the earlier registration wins remaining ties. The error is a
// *util.RouteNotFoundError when nothing matches.
func (t *Table) Match(path string) (*Route, error) {
	var (
		best    *Route
		bestLen = -1
	)
	for _, r := range t.routes {
		n := r.matchLen(path)
		if n < 0 {
			continue
		}
		if n > bestLen || (n == bestLen && !r.IsWildcard() && best.IsWildcard()) {
			best, bestLen = r, n
		}
	}

	if best == nil {
		recordLookup(lookupMiss)
		return nil, util.NewRouteNotFoundError("", path)
	}
	recordLookup(lookupHit)
	return best, nil
}

// Route returns a route by name.
func (t *Table) Route(name string) (*Route, bool) {
	r, ok := t.byName[name]
	return r, ok
}

// Routes returns the routes in match-priority order.
func (t *Table) Routes() []*Route {
	out := make([]*Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Len returns the number of routes.
func (t *Table) Len() int {
	return len(t.routes)
}

// BreakerPolicies returns the breaker policy of every guarded route,
// keyed by Route.BreakerKey.
func (t *Table) BreakerPolicies() map[string]circuitbreaker.Policy {
	out := make(map[string]circuitbreaker.Policy)
	for _, r := range t.routes {
		if r.Breaker != nil {
			out[r.BreakerKey()] = *r.Breaker
		}
	}
	return out
}
