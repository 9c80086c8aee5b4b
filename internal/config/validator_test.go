package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/edgegw/internal/util"
)

func validConfig() *GatewayConfig {
	cfg := DefaultConfig()
	cfg.Spec.Auth.ValidateURL = "http://localhost:8081/api/v1/auth/validate"
	cfg.Spec.Services = []ServiceConfig{{Name: "car-microservice", Instances: []string{"localhost:8080"}}}
	cfg.Spec.Fallbacks = []FallbackConfig{{Path: "/api/v1/fallback/cars", Resource: "cars", Status: 200}}
	cfg.Spec.Routes = []RouteConfig{
		{
			Name:           "cars",
			Path:           "/api/v1/cars/**",
			Target:         "lb://car-microservice",
			RequiresAuth:   true,
			CircuitBreaker: "gateway-cb",
			Fallback:       "/api/v1/fallback/cars",
		},
		{Name: "auth", Path: "/api/v1/auth/**", Target: "http://localhost:8081"},
	}
	return cfg
}

func TestValidateConfig_Valid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateConfig(validConfig()))
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	assert.Error(t, ValidateConfig(nil))
}

func TestValidateConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(cfg *GatewayConfig)
		field  string
	}{
		{
			name:   "bad listener port",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Listener.Port = 70000 },
			field:  "spec.listener.port",
		},
		{
			name:   "negative body limit",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Listener.MaxRequestBodySize = -1 },
			field:  "spec.listener.maxRequestBodySize",
		},
		{
			name:   "unknown breaker reference",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Routes[0].CircuitBreaker = "missing-cb" },
			field:  "spec.routes[0].circuitBreaker",
		},
		{
			name:   "unknown lb service",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Routes[0].Target = "lb://nowhere" },
			field:  "spec.routes[0].target",
		},
		{
			name:   "unsupported scheme",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Routes[1].Target = "ftp://files" },
			field:  "spec.routes[1].target",
		},
		{
			name:   "duplicate route name",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Routes[1].Name = "cars" },
			field:  "spec.routes[1].name",
		},
		{
			name:   "relative path",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Routes[0].Path = "api/v1/cars/**" },
			field:  "spec.routes[0].path",
		},
		{
			name:   "auth route without validate url",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Auth.ValidateURL = "" },
			field:  "spec.routes[0].requiresAuth",
		},
		{
			name:   "bad cache type",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Auth.Cache.Type = "memcached" },
			field:  "spec.auth.cache.type",
		},
		{
			name: "redis cache without address",
			mutate: func(cfg *GatewayConfig) {
				cfg.Spec.Auth.Cache = TokenCacheConfig{Enabled: true, Type: CacheTypeRedis, TTL: Duration(1)}
			},
			field: "spec.auth.cache.redis.address",
		},
		{
			name:   "negative failure threshold",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.CircuitBreakers[0].FailureThreshold = -1 },
			field:  "spec.circuitBreakers[0].failureThreshold",
		},
		{
			name:   "zero half-open trials",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.CircuitBreakers[0].HalfOpenTrialCount = 0 },
			field:  "spec.circuitBreakers[0].halfOpenTrialCount",
		},
		{
			name:   "failure ratio above one",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.CircuitBreakers[0].FailureRatio = 1.5 },
			field:  "spec.circuitBreakers[0].failureRatio",
		},
		{
			name:   "unknown engine",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.CircuitBreakers[0].Engine = "hystrix" },
			field:  "spec.circuitBreakers[0].engine",
		},
		{
			name:   "service without instances",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Services[0].Instances = nil },
			field:  "spec.services[0].instances",
		},
		{
			name:   "fallback bad status",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Fallbacks[0].Status = 42 },
			field:  "spec.fallbacks[0].status",
		},
		{
			name:   "fallback path with wildcard",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Fallbacks[0].Path = "/fallback/:resource" },
			field:  "spec.fallbacks[0].path",
		},
		{
			name: "duplicate fallback path",
			mutate: func(cfg *GatewayConfig) {
				cfg.Spec.Fallbacks = append(cfg.Spec.Fallbacks, cfg.Spec.Fallbacks[0])
			},
			field: "spec.fallbacks[1].path",
		},
		{
			name:   "metrics port clashes with listener",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Observability.Metrics.Port = cfg.Spec.Listener.Port },
			field:  "spec.observability.metrics.port",
		},
		{
			name:   "no routes",
			mutate: func(cfg *GatewayConfig) { cfg.Spec.Routes = nil },
			field:  "spec.routes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, util.ErrConfigInvalid))

			var verr *util.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestValidateConfig_ReportsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Spec.Listener.Port = -1
	cfg.Spec.Routes[0].CircuitBreaker = "missing"
	cfg.Spec.CircuitBreakers[0].OpenDuration = -1

	var verr *util.ValidationError
	require.True(t, errors.As(ValidateConfig(cfg), &verr))
	assert.Len(t, verr.Fields, 3)
}
