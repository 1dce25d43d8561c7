// Package loadbalance picks which advertised host a client connects to.
//
//   - RoundRobinBalancer:     equal-capacity hosts
//   - WeightedRandomBalancer: hosts of different capacity
//   - ConsistentHashBalancer: a given key keeps landing on the same host
package loadbalance

import (
	"errors"

	"bridge-rpc/registry"
)

var ErrNoEndpoints = errors.New("loadbalance: no endpoints available")

// Balancer selects one endpoint from a discovered list. Implementations are goroutine-safe.
type Balancer interface {
	Pick(endpoints []registry.Endpoint) (registry.Endpoint, error)
	Name() string
}
