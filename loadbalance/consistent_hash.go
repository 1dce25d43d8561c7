package loadbalance

import (
	"fmt"
	"hash/crc32"
	"slices"
	"sync"

	"bridge-rpc/registry"
)

const defaultReplicas = 100

// ConsistentHashBalancer maps a fixed key onto a hash ring of endpoints, so the same
// client identity keeps reaching the same host while membership is stable, and only
// a share of keys moves when it changes.
//
// Each endpoint occupies many virtual nodes ("{addr}#{i}") to spread load evenly.
type ConsistentHashBalancer struct {
	key      string
	replicas int

	mu      sync.Mutex
	members string
	ring    []uint32
	nodes   map[uint32]registry.Endpoint
}

// NewConsistentHashBalancer builds a balancer that always routes key.
func NewConsistentHashBalancer(key string) *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		key:      key,
		replicas: defaultReplicas,
		nodes:    make(map[uint32]registry.Endpoint),
	}
}

func (b *ConsistentHashBalancer) rebuild(endpoints []registry.Endpoint) {
	members := ""
	for _, e := range endpoints {
		members += e.Addr + ","
	}
	if members == b.members {
		return
	}

	b.members = members
	b.ring = b.ring[:0]
	clear(b.nodes)
	for _, e := range endpoints {
		for i := 0; i < b.replicas; i++ {
			hash := crc32.ChecksumIEEE(fmt.Appendf(nil, "%s#%d", e.Addr, i))
			b.ring = append(b.ring, hash)
			b.nodes[hash] = e
		}
	}
	slices.Sort(b.ring)
}

// Pick returns the endpoint owning the balancer's key: the first virtual node clockwise
// from the key's hash, wrapping around past the end of the ring.
func (b *ConsistentHashBalancer) Pick(endpoints []registry.Endpoint) (registry.Endpoint, error) {
	return b.PickKey(endpoints, b.key)
}

// PickKey is Pick for an explicit key.
func (b *ConsistentHashBalancer) PickKey(endpoints []registry.Endpoint, key string) (registry.Endpoint, error) {
	if len(endpoints) == 0 {
		return registry.Endpoint{}, ErrNoEndpoints
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rebuild(endpoints)

	hash := crc32.ChecksumIEEE([]byte(key))
	idx, _ := slices.BinarySearch(b.ring, hash)
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
