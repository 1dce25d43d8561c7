package loadbalance

import (
	"math/rand/v2"

	"bridge-rpc/registry"
)

// WeightedRandomBalancer picks endpoints with probability proportional to their weight.
// A weight below 1 counts as 1.
type WeightedRandomBalancer struct{}

func weightOf(e registry.Endpoint) int {
	return max(e.Weight, 1)
}

func (b *WeightedRandomBalancer) Pick(endpoints []registry.Endpoint) (registry.Endpoint, error) {
	if len(endpoints) == 0 {
		return registry.Endpoint{}, ErrNoEndpoints
	}

	total := 0
	for _, e := range endpoints {
		total += weightOf(e)
	}

	r := rand.IntN(total)
	for _, e := range endpoints {
		r -= weightOf(e)
		if r < 0 {
			return e, nil
		}
	}
	return endpoints[len(endpoints)-1], nil
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
