package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/edgegw/internal/util"
)

// Target schemes accepted in route targets.
const (
	SchemeLB    = "lb"
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// ValidateConfig checks cfg and reports every problem at once in a
// *util.ValidationError keyed by field path.
func ValidateConfig(cfg *GatewayConfig) error {
	verr := util.NewValidationError("invalid gateway configuration")

	if cfg == nil {
		verr.AddField("", "configuration is nil")
		return verr
	}

	if cfg.Kind != "" && cfg.Kind != "Gateway" {
		verr.AddField("kind", "kind must be 'Gateway'")
	}

	v := &validator{cfg: cfg, err: verr}
	v.validateListener()
	v.validateAuth()
	v.validateBreakers()
	v.validateServices()
	v.validateFallbacks()
	v.validateRoutes()
	v.validateObservability()

	if verr.HasErrors() {
		return verr
	}
	return nil
}

type validator struct {
	cfg *GatewayConfig
	err *util.ValidationError
}

func (v *validator) add(field, format string, args ...interface{}) {
	v.err.AddField(field, fmt.Sprintf(format, args...))
}

func (v *validator) validateListener() {
	l := v.cfg.Spec.Listener
	if err := validatePort(l.Port); err != nil {
		v.add("spec.listener.port", "%v", err)
	}
	if l.MaxRequestBodySize < 0 {
		v.add("spec.listener.maxRequestBodySize", "must not be negative")
	}
}

func (v *validator) validateAuth() {
	a := v.cfg.Spec.Auth

	if a.Timeout <= 0 {
		v.add("spec.auth.timeout", "must be positive")
	}
	if a.ValidateURL != "" {
		if u, err := url.Parse(a.ValidateURL); err != nil || u.Scheme == "" || u.Host == "" {
			v.add("spec.auth.validateURL", "must be an absolute URL")
		}
	}

	c := a.Cache
	switch c.Type {
	case CacheTypeMemory:
	case CacheTypeRedis:
		if c.Enabled && c.Redis.Address == "" {
			v.add("spec.auth.cache.redis.address", "required for redis cache")
		}
	default:
		v.add("spec.auth.cache.type", "unknown cache type %q", c.Type)
	}
	if c.TTL < 0 {
		v.add("spec.auth.cache.ttl", "must not be negative")
	}
	if c.MaxEntries < 0 {
		v.add("spec.auth.cache.maxEntries", "must not be negative")
	}
}

func (v *validator) validateBreakers() {
	seen := make(map[string]bool)
	for i, cb := range v.cfg.Spec.CircuitBreakers {
		prefix := fmt.Sprintf("spec.circuitBreakers[%d]", i)

		if cb.Name == "" {
			v.add(prefix+".name", "required")
		} else if seen[cb.Name] {
			v.add(prefix+".name", "duplicate breaker %q", cb.Name)
		}
		seen[cb.Name] = true

		if cb.FailureThreshold <= 0 {
			v.add(prefix+".failureThreshold", "must be positive")
		}
		if cb.OpenDuration <= 0 {
			v.add(prefix+".openDuration", "must be positive")
		}
		if cb.HalfOpenTrialCount <= 0 {
			v.add(prefix+".halfOpenTrialCount", "must be positive")
		}
		if cb.FailureRatio < 0 || cb.FailureRatio > 1 {
			v.add(prefix+".failureRatio", "must be between 0 and 1")
		}
		if cb.MinRequests < 0 {
			v.add(prefix+".minRequests", "must not be negative")
		}
		if cb.SamplingDuration < 0 {
			v.add(prefix+".samplingDuration", "must not be negative")
		}
		if cb.Engine != EngineNative && cb.Engine != EngineGoBreaker {
			v.add(prefix+".engine", "unknown engine %q", cb.Engine)
		}
	}
}

func (v *validator) validateServices() {
	seen := make(map[string]bool)
	for i, svc := range v.cfg.Spec.Services {
		prefix := fmt.Sprintf("spec.services[%d]", i)
		if svc.Name == "" {
			v.add(prefix+".name", "required")
		} else if seen[svc.Name] {
			v.add(prefix+".name", "duplicate service %q", svc.Name)
		}
		seen[svc.Name] = true

		if len(svc.Instances) == 0 {
			v.add(prefix+".instances", "at least one instance is required")
		}
	}
}

func (v *validator) validateFallbacks() {
	paths := make(map[string]bool, len(v.cfg.Spec.Fallbacks))
	for i, fb := range v.cfg.Spec.Fallbacks {
		prefix := fmt.Sprintf("spec.fallbacks[%d]", i)
		switch {
		case !strings.HasPrefix(fb.Path, "/"):
			v.add(prefix+".path", "must start with /")
		case strings.ContainsAny(fb.Path, ":*"):
			v.add(prefix+".path", "must be a literal path")
		case paths[fb.Path]:
			v.add(prefix+".path", "duplicate fallback %q", fb.Path)
		}
		paths[fb.Path] = true
		if fb.Status < 100 || fb.Status > 599 {
			v.add(prefix+".status", "invalid HTTP status %d", fb.Status)
		}
	}
}

func (v *validator) validateRoutes() {
	spec := &v.cfg.Spec
	if len(spec.Routes) == 0 {
		v.add("spec.routes", "at least one route is required")
		return
	}

	services := make(map[string]bool, len(spec.Services))
	for _, svc := range spec.Services {
		services[svc.Name] = true
	}

	names := make(map[string]bool, len(spec.Routes))
	for i, r := range spec.Routes {
		prefix := fmt.Sprintf("spec.routes[%d]", i)

		if r.Name == "" {
			v.add(prefix+".name", "required")
		} else if names[r.Name] {
			v.add(prefix+".name", "duplicate route %q", r.Name)
		}
		names[r.Name] = true

		if !strings.HasPrefix(r.Path, "/") {
			v.add(prefix+".path", "must start with /")
		}

		v.validateTarget(prefix+".target", r.Target, services)

		if r.CircuitBreaker != "" {
			if _, ok := v.cfg.BreakerByName(r.CircuitBreaker); !ok {
				v.add(prefix+".circuitBreaker", "unknown circuit breaker %q", r.CircuitBreaker)
			}
		}
		if r.Fallback != "" && !strings.HasPrefix(r.Fallback, "/") {
			v.add(prefix+".fallback", "must start with /")
		}
		if r.RequiresAuth && spec.Auth.ValidateURL == "" {
			v.add(prefix+".requiresAuth", "spec.auth.validateURL is required for authenticated routes")
		}
	}
}

func (v *validator) validateTarget(field, target string, services map[string]bool) {
	if target == "" {
		v.add(field, "required")
		return
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		v.add(field, "invalid target %q", target)
		return
	}

	switch u.Scheme {
	case SchemeLB:
		if !services[u.Host] {
			v.add(field, "unknown service %q", u.Host)
		}
	case SchemeHTTP, SchemeHTTPS:
	default:
		v.add(field, "unsupported scheme %q", u.Scheme)
	}
}

func (v *validator) validateObservability() {
	o := v.cfg.Spec.Observability
	if o.Metrics.Enabled {
		if err := validatePort(o.Metrics.Port); err != nil {
			v.add("spec.observability.metrics.port", "%v", err)
		} else if o.Metrics.Port == v.cfg.Spec.Listener.Port {
			v.add("spec.observability.metrics.port", "must differ from the listener port")
		}
		if !strings.HasPrefix(o.Metrics.Path, "/") {
			v.add("spec.observability.metrics.path", "must start with /")
		}
	}
	if o.Tracing.SamplingRate < 0 || o.Tracing.SamplingRate > 1 {
		v.add("spec.observability.tracing.samplingRate", "must be between 0 and 1")
	}
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}
