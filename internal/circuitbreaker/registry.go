package circuitbreaker

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/vyrodovalexey/edgegw/internal/observability"
)

// Key returns the registry key of the breaker guarding route under the
// named policy.
func Key(route, policy string) string {
	return route + "/" + policy
}

// Registry owns the breakers of a gateway. Breakers are created lazily
// on first use and shared by every request of the same route.
//
// Once Sync has run, the synced policies are authoritative: a request
// still carrying a policy from an older route table gets the breaker of
// the current policy, and keys no longer configured are never stored
// again.
type Registry struct {
	breakers sync.Map
	policies atomic.Pointer[map[string]Policy]
	opts     []Option
	logger   observability.Logger
}

// NewRegistry creates an empty registry. opts are applied to every
// breaker it creates.
func NewRegistry(logger observability.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Registry{
		opts:   append([]Option{WithLogger(logger)}, opts...),
		logger: logger,
	}
}

// Get returns the breaker stored under key, if any.
func (r *Registry) Get(key string) (Breaker, bool) {
	v, ok := r.breakers.Load(key)
	if !ok {
		return nil, false
	}
	return v.(Breaker), true
}

// GetOrCreate returns the breaker for key, creating it with policy on
// first use. A stored breaker whose policy differs from policy, as after
// a configuration reload, is replaced by a fresh closed breaker.
func (r *Registry) GetOrCreate(key string, policy Policy) Breaker {
	want := policy.normalized()

	if synced := r.policies.Load(); synced != nil {
		current, ok := (*synced)[key]
		if !ok {
			// The route was removed by a reload while this request was in
			// flight. It gets a private breaker that is never stored.
			return New(key, want, r.opts...)
		}
		want = current
	}

	for {
		v, ok := r.breakers.Load(key)
		if !ok {
			b := New(key, want, r.opts...)
			actual, loaded := r.breakers.LoadOrStore(key, b)
			if !loaded {
				r.logger.Debug("created circuit breaker",
					observability.String("breaker", key),
					observability.String("engine", string(want.Engine)),
				)
			}
			return actual.(Breaker)
		}

		current := v.(Breaker)
		if current.Policy() == want {
			return current
		}

		b := New(key, want, r.opts...)
		if r.breakers.CompareAndSwap(key, current, b) {
			r.logger.Info("replaced circuit breaker after policy change",
				observability.String("breaker", key),
				observability.String("policy", want.Name),
			)
			return b
		}
	}
}

// Sync makes policies, keyed like GetOrCreate, the authoritative set.
// Breakers whose key is gone are removed, breakers whose policy changed
// are dropped and recreated closed on next use. It returns the keys of
// every dropped breaker, sorted.
func (r *Registry) Sync(policies map[string]Policy) []string {
	want := make(map[string]Policy, len(policies))
	for key, p := range policies {
		want[key] = p.normalized()
	}
	r.policies.Store(&want)

	var dropped []string
	r.breakers.Range(func(k, v interface{}) bool {
		key := k.(string)
		p, ok := want[key]
		switch {
		case !ok:
			if r.breakers.CompareAndDelete(key, v) {
				r.logger.Info("removed circuit breaker of deleted route",
					observability.String("breaker", key),
				)
				dropped = append(dropped, key)
			}
		case v.(Breaker).Policy() != p:
			if r.breakers.CompareAndDelete(key, v) {
				r.logger.Info("reset circuit breaker after policy change",
					observability.String("breaker", key),
					observability.String("policy", p.Name),
				)
				dropped = append(dropped, key)
			}
		}
		return true
	})
	sort.Strings(dropped)

	return dropped
}

// Snapshot describes one breaker for health and debug endpoints.
type Snapshot struct {
	Name   string `json:"name"`
	Policy string `json:"policy"`
	Engine Engine `json:"engine"`
	State  State  `json:"state"`
}

// Snapshot reports every breaker sorted by name.
func (r *Registry) Snapshot() []Snapshot {
	var out []Snapshot
	r.breakers.Range(func(_, v interface{}) bool {
		b := v.(Breaker)
		p := b.Policy()
		out = append(out, Snapshot{
			Name:   b.Name(),
			Policy: p.Name,
			Engine: p.Engine,
			State:  b.State(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Open returns the names of breakers currently open.
func (r *Registry) Open() []string {
	var names []string
	for _, s := range r.Snapshot() {
		if s.State == StateOpen {
			names = append(names, s.Name)
		}
	}
	return names
}

// Len returns the number of breakers in the registry.
func (r *Registry) Len() int {
	n := 0
	r.breakers.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
