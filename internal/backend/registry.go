package backend

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/vyrodovalexey/edgegw/internal/config"
	"github.com/vyrodovalexey/edgegw/internal/util"
)

// Registry resolves route targets to backend base URLs. lb://<service>
// targets pick an instance of the named service in round-robin order;
// http:// and https:// targets are used as they are.
type Registry struct {
	services atomic.Pointer[map[string]*RoundRobinBalancer]
}

// NewRegistry builds a registry from the configured services.
func NewRegistry(services []config.ServiceConfig) (*Registry, error) {
	r := &Registry{}
	if err := r.Update(services); err != nil {
		return nil, err
	}
	return r, nil
}

// Update replaces the service set. On error the registry is unchanged.
func (r *Registry) Update(services []config.ServiceConfig) error {
	set := make(map[string]*RoundRobinBalancer, len(services))

	for _, svc := range services {
		hosts := make([]*url.URL, 0, len(svc.Instances))
		for _, inst := range svc.Instances {
			u, err := parseInstance(inst)
			if err != nil {
				cfgErr := util.NewConfigError(
					fmt.Sprintf("service %q", svc.Name),
					fmt.Sprintf("invalid instance %q: %v", inst, err),
				)
				cfgErr.Cause = err
				return cfgErr
			}
			hosts = append(hosts, u)
		}
		set[svc.Name] = NewRoundRobinBalancer(hosts)
	}

	r.services.Store(&set)
	return nil
}

// parseInstance accepts host:port or a full http(s) URL.
func parseInstance(inst string) (*url.URL, error) {
	if !strings.Contains(inst, "://") {
		inst = config.SchemeHTTP + "://" + inst
	}
	u, err := url.Parse(inst)
	if err != nil {
		return nil, util.WrapError(util.ErrInvalidInput, err.Error())
	}
	if u.Host == "" {
		return nil, util.WrapError(util.ErrInvalidInput, "missing host")
	}
	return u, nil
}

// Resolve returns the base URL for target.
func (r *Registry) Resolve(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, util.NewBackendErrorWithCause(target, "invalid target", err)
	}

	switch u.Scheme {
	case config.SchemeLB:
		lb, ok := (*r.services.Load())[u.Host]
		if !ok {
			return nil, util.NewBackendError(target, "unknown service")
		}
		host := lb.Next()
		if host == nil {
			return nil, util.NewBackendError(target, "service has no instances")
		}
		return host, nil
	case config.SchemeHTTP, config.SchemeHTTPS:
		if u.Host == "" {
			return nil, util.NewBackendError(target, "target has no host")
		}
		return u, nil
	default:
		return nil, util.NewBackendError(target, fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
}

// Services returns the number of registered services.
func (r *Registry) Services() int {
	return len(*r.services.Load())
}
