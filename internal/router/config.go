package router

import (
	"fmt"

	"github.com/vyrodovalexey/edgegw/internal/circuitbreaker"
	"github.com/vyrodovalexey/edgegw/internal/config"
	"github.com/vyrodovalexey/edgegw/internal/util"
)

// RoutesFromConfig converts configured routes, resolving breaker
// references to policies.
func RoutesFromConfig(cfg *config.GatewayConfig) ([]Route, error) {
	routes := make([]Route, 0, len(cfg.Spec.Routes))

	for i, rc := range cfg.Spec.Routes {
		r := Route{
			Name:         rc.Name,
			Pattern:      rc.Path,
			Target:       rc.Target,
			RequiresAuth: rc.RequiresAuth,
			Fallback:     rc.Fallback,
		}

		if rc.CircuitBreaker != "" {
			cb, ok := cfg.BreakerByName(rc.CircuitBreaker)
			if !ok {
				return nil, util.NewConfigError(
					fmt.Sprintf("spec.routes[%d].circuitBreaker", i),
					fmt.Sprintf("unknown circuit breaker %q", rc.CircuitBreaker),
				)
			}
			policy := circuitbreaker.PolicyFromConfig(cb)
			r.Breaker = &policy
		}

		routes = append(routes, r)
	}

	return routes, nil
}

// NewTableFromConfig builds the route table described by cfg.
func NewTableFromConfig(cfg *config.GatewayConfig) (*Table, error) {
	routes, err := RoutesFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewTable(routes, WithStrict(cfg.Spec.Routing.Strict))
}
