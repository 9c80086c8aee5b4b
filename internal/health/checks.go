package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/edgegw/internal/cache"
	"github.com/vyrodovalexey/edgegw/internal/circuitbreaker"
	"github.com/vyrodovalexey/edgegw/internal/util"
)

// healthCheckKey is looked up by CacheCheck; it is never written.
const healthCheckKey = "edgegw:health:check"

// BreakerCheck reports degraded while any breaker in reg is open.
func BreakerCheck(reg *circuitbreaker.Registry) CheckFunc {
	return func(context.Context) Check {
		open := reg.Open()
		if len(open) == 0 {
			return Check{Status: StatusHealthy}
		}
		return Check{
			Status:  StatusDegraded,
			Message: "open circuit breakers: " + strings.Join(open, ", "),
		}
	}
}

// CacheCheck reports the token cache unhealthy when a lookup fails for
// any reason other than a miss.
func CacheCheck(c cache.Cache) CheckFunc {
	return func(ctx context.Context) Check {
		_, err := c.Get(ctx, healthCheckKey)
		if err == nil || errors.Is(err, cache.ErrCacheMiss) {
			return Check{Status: StatusHealthy}
		}
		return Check{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("token cache unavailable: %v", err),
		}
	}
}

// BreakersResponse lists the breakers of the gateway.
type BreakersResponse struct {
	Breakers []circuitbreaker.Snapshot `json:"breakers"`
}

// BreakersHandler serves a JSON snapshot of every breaker in reg.
func BreakersHandler(reg *circuitbreaker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snapshot := reg.Snapshot()
		if snapshot == nil {
			snapshot = []circuitbreaker.Snapshot{}
		}
		util.WriteJSON(w, http.StatusOK, BreakersResponse{Breakers: snapshot})
	}
}
