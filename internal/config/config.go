package config

import "time"

// Default values applied to fields left empty in the configuration file.
const (
	DefaultListenerName      = "http"
	DefaultBind              = "0.0.0.0"
	DefaultPort              = 8090
	DefaultReadTimeout       = 30 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultMaxBodySize       = 10 << 20

	DefaultAuthTimeout     = 5 * time.Second
	DefaultValidField      = "valid"
	DefaultCacheTTL        = 30 * time.Second
	DefaultCacheMaxEntries = 10000
	DefaultCacheKeyPrefix  = "edgegw:token:"

	DefaultFailureThreshold   = 5
	DefaultOpenDuration       = 30 * time.Second
	DefaultHalfOpenTrialCount = 3

	DefaultForwardTimeout  = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second

	DefaultFallbackStatus = 200

	DefaultMetricsPort  = 9090
	DefaultMetricsPath  = "/metrics"
	DefaultServiceName  = "edgegw"
	DefaultSamplingRate = 1.0
)

// Token cache backends.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Circuit breaker engines.
const (
	EngineNative    = "native"
	EngineGoBreaker = "gobreaker"
)

// GatewayConfig is the root of the gateway configuration file.
type GatewayConfig struct {
	APIVersion string      `yaml:"apiVersion" json:"apiVersion"`
	Kind       string      `yaml:"kind" json:"kind"`
	Metadata   Metadata    `yaml:"metadata" json:"metadata"`
	Spec       GatewaySpec `yaml:"spec" json:"spec"`
}

// Metadata identifies the gateway instance.
type Metadata struct {
	Name   string            `yaml:"name" json:"name"`
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// GatewaySpec holds the gateway behaviour.
type GatewaySpec struct {
	Listener        Listener               `yaml:"listener" json:"listener"`
	Routing         RoutingConfig          `yaml:"routing" json:"routing"`
	Auth            AuthConfig             `yaml:"auth" json:"auth"`
	CircuitBreakers []CircuitBreakerConfig `yaml:"circuitBreakers,omitempty" json:"circuitBreakers,omitempty"`
	Services        []ServiceConfig        `yaml:"services,omitempty" json:"services,omitempty"`
	Forwarding      ForwardingConfig       `yaml:"forwarding" json:"forwarding"`
	Fallbacks       []FallbackConfig       `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty"`
	Routes          []RouteConfig          `yaml:"routes" json:"routes"`
	Observability   ObservabilityConfig    `yaml:"observability" json:"observability"`
}

// Listener is the inbound HTTP listener.
type Listener struct {
	Name     string           `yaml:"name" json:"name"`
	Bind     string           `yaml:"bind,omitempty" json:"bind,omitempty"`
	Port     int              `yaml:"port" json:"port"`
	Timeouts ListenerTimeouts `yaml:"timeouts,omitempty" json:"timeouts,omitempty"`

	// MaxRequestBodySize caps inbound request bodies in bytes.
	MaxRequestBodySize int64 `yaml:"maxRequestBodySize,omitempty" json:"maxRequestBodySize,omitempty"`
}

// ListenerTimeouts contains http.Server timeouts.
type ListenerTimeouts struct {
	Read       Duration `yaml:"read,omitempty" json:"read,omitempty"`
	ReadHeader Duration `yaml:"readHeader,omitempty" json:"readHeader,omitempty"`
	Write      Duration `yaml:"write,omitempty" json:"write,omitempty"`
	Idle       Duration `yaml:"idle,omitempty" json:"idle,omitempty"`
}

// RoutingConfig controls route table construction.
type RoutingConfig struct {
	// Strict rejects route sets where two patterns share the same
	// literal prefix instead of letting the first one win.
	Strict bool `yaml:"strict" json:"strict"`
}

// AuthConfig configures the remote token validation call.
type AuthConfig struct {
	ValidateURL string           `yaml:"validateURL" json:"validateURL"`
	Timeout     Duration         `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	ValidField  string           `yaml:"validField,omitempty" json:"validField,omitempty"`
	Cache       TokenCacheConfig `yaml:"cache,omitempty" json:"cache,omitempty"`
}

// TokenCacheConfig configures caching of successful validation results.
type TokenCacheConfig struct {
	Enabled    bool             `yaml:"enabled" json:"enabled"`
	Type       string           `yaml:"type,omitempty" json:"type,omitempty"`
	TTL        Duration         `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	MaxEntries int              `yaml:"maxEntries,omitempty" json:"maxEntries,omitempty"`
	Redis      RedisCacheConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// RedisCacheConfig addresses the Redis server backing the token cache.
type RedisCacheConfig struct {
	Address   string `yaml:"address" json:"address"`
	Password  string `yaml:"password,omitempty" json:"-"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
}

// CircuitBreakerConfig is a named breaker policy referenced by routes.
type CircuitBreakerConfig struct {
	Name               string   `yaml:"name" json:"name"`
	FailureThreshold   int      `yaml:"failureThreshold,omitempty" json:"failureThreshold,omitempty"`
	FailureRatio       float64  `yaml:"failureRatio,omitempty" json:"failureRatio,omitempty"`
	MinRequests        int      `yaml:"minRequests,omitempty" json:"minRequests,omitempty"`
	SamplingDuration   Duration `yaml:"samplingDuration,omitempty" json:"samplingDuration,omitempty"`
	OpenDuration       Duration `yaml:"openDuration,omitempty" json:"openDuration,omitempty"`
	HalfOpenTrialCount int      `yaml:"halfOpenTrialCount,omitempty" json:"halfOpenTrialCount,omitempty"`
	Engine             string   `yaml:"engine,omitempty" json:"engine,omitempty"`
}

// ServiceConfig lists the instances behind an lb:// target.
type ServiceConfig struct {
	Name      string   `yaml:"name" json:"name"`
	Instances []string `yaml:"instances" json:"instances"`
}

// ForwardingConfig tunes the backend HTTP client.
type ForwardingConfig struct {
	Timeout         Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	IdleConnTimeout Duration `yaml:"idleConnTimeout,omitempty" json:"idleConnTimeout,omitempty"`
}

// FallbackConfig describes a locally served fallback endpoint.
type FallbackConfig struct {
	Path     string `yaml:"path" json:"path"`
	Resource string `yaml:"resource" json:"resource"`
	Status   int    `yaml:"status,omitempty" json:"status,omitempty"`
	Message  string `yaml:"message,omitempty" json:"message,omitempty"`
}

// RouteConfig is one entry of the route table.
type RouteConfig struct {
	Name           string `yaml:"name" json:"name"`
	Path           string `yaml:"path" json:"path"`
	Target         string `yaml:"target" json:"target"`
	RequiresAuth   bool   `yaml:"requiresAuth" json:"requiresAuth"`
	CircuitBreaker string `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
	Fallback       string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// ObservabilityConfig groups metrics and tracing settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// MetricsConfig configures the metrics and health server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port,omitempty" json:"port,omitempty"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// DefaultConfig returns a configuration with every default applied and
// no routes.
func DefaultConfig() *GatewayConfig {
	cfg := &GatewayConfig{
		APIVersion: "edgegw.io/v1",
		Kind:       "Gateway",
		Metadata:   Metadata{Name: "edgegw"},
		Spec: GatewaySpec{
			CircuitBreakers: []CircuitBreakerConfig{{Name: "gateway-cb"}},
			Observability: ObservabilityConfig{
				Metrics: MetricsConfig{Enabled: true},
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Negative
// values are left alone so validation can report them.
func (c *GatewayConfig) ApplyDefaults() {
	s := &c.Spec

	if s.Listener.Name == "" {
		s.Listener.Name = DefaultListenerName
	}
	if s.Listener.Bind == "" {
		s.Listener.Bind = DefaultBind
	}
	if s.Listener.Port == 0 {
		s.Listener.Port = DefaultPort
	}
	if s.Listener.MaxRequestBodySize == 0 {
		s.Listener.MaxRequestBodySize = DefaultMaxBodySize
	}

	if s.Auth.Timeout == 0 {
		s.Auth.Timeout = Duration(DefaultAuthTimeout)
	}
	if s.Auth.ValidField == "" {
		s.Auth.ValidField = DefaultValidField
	}
	if s.Auth.Cache.Type == "" {
		s.Auth.Cache.Type = CacheTypeMemory
	}
	if s.Auth.Cache.TTL == 0 {
		s.Auth.Cache.TTL = Duration(DefaultCacheTTL)
	}
	if s.Auth.Cache.MaxEntries == 0 {
		s.Auth.Cache.MaxEntries = DefaultCacheMaxEntries
	}
	if s.Auth.Cache.Redis.KeyPrefix == "" {
		s.Auth.Cache.Redis.KeyPrefix = DefaultCacheKeyPrefix
	}

	for i := range s.CircuitBreakers {
		cb := &s.CircuitBreakers[i]
		if cb.FailureThreshold == 0 {
			cb.FailureThreshold = DefaultFailureThreshold
		}
		if cb.OpenDuration == 0 {
			cb.OpenDuration = Duration(DefaultOpenDuration)
		}
		if cb.HalfOpenTrialCount == 0 {
			cb.HalfOpenTrialCount = DefaultHalfOpenTrialCount
		}
		if cb.Engine == "" {
			cb.Engine = EngineNative
		}
	}

	if s.Forwarding.Timeout == 0 {
		s.Forwarding.Timeout = Duration(DefaultForwardTimeout)
	}
	if s.Forwarding.IdleConnTimeout == 0 {
		s.Forwarding.IdleConnTimeout = Duration(DefaultIdleConnTimeout)
	}

	for i := range s.Fallbacks {
		if s.Fallbacks[i].Status == 0 {
			s.Fallbacks[i].Status = DefaultFallbackStatus
		}
	}

	if s.Observability.Metrics.Port == 0 {
		s.Observability.Metrics.Port = DefaultMetricsPort
	}
	if s.Observability.Metrics.Path == "" {
		s.Observability.Metrics.Path = DefaultMetricsPath
	}
	if s.Observability.Tracing.ServiceName == "" {
		s.Observability.Tracing.ServiceName = DefaultServiceName
	}
	if s.Observability.Tracing.SamplingRate == 0 {
		s.Observability.Tracing.SamplingRate = DefaultSamplingRate
	}
}

// BreakerByName returns the named breaker policy, if any.
func (c *GatewayConfig) BreakerByName(name string) (CircuitBreakerConfig, bool) {
	for _, cb := range c.Spec.CircuitBreakers {
		if cb.Name == name {
			return cb, true
		}
	}
	return CircuitBreakerConfig{}, false
}

// EffectiveRead returns the read timeout or its default.
func (t ListenerTimeouts) EffectiveRead() time.Duration {
	return orDefault(t.Read, DefaultReadTimeout)
}

// EffectiveReadHeader returns the read header timeout or its default.
func (t ListenerTimeouts) EffectiveReadHeader() time.Duration {
	return orDefault(t.ReadHeader, DefaultReadHeaderTimeout)
}

// EffectiveWrite returns the write timeout or its default.
func (t ListenerTimeouts) EffectiveWrite() time.Duration {
	return orDefault(t.Write, DefaultWriteTimeout)
}

// EffectiveIdle returns the idle timeout or its default.
func (t ListenerTimeouts) EffectiveIdle() time.Duration {
	return orDefault(t.Idle, DefaultIdleTimeout)
}

func orDefault(d Duration, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d.Duration()
}
