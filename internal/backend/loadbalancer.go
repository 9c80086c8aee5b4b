package backend

import (
	"net/url"
	"sync/atomic"
)

// RoundRobinBalancer hands out a fixed set of instances in turn.
type RoundRobinBalancer struct {
	hosts   []*url.URL
	current atomic.Uint64
}

// NewRoundRobinBalancer creates a balancer over hosts.
func NewRoundRobinBalancer(hosts []*url.URL) *RoundRobinBalancer {
	return &RoundRobinBalancer{hosts: hosts}
}

// Next returns the next host, or nil when there are none.
func (b *RoundRobinBalancer) Next() *url.URL {
	if len(b.hosts) == 0 {
		return nil
	}
	idx := b.current.Add(1) - 1
	return b.hosts[idx%uint64(len(b.hosts))]
}

// Len returns the number of hosts.
func (b *RoundRobinBalancer) Len() int {
	return len(b.hosts)
}
