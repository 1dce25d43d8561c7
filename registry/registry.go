// Package registry lets host processes advertise where they accept bridge connections,
// and lets clients find them.
package registry

import "context"

// Endpoint is one advertised host.
type Endpoint struct {
	Addr    string            `json:"addr"`
	Weight  int               `json:"weight,omitempty"` // Weight for load balancing
	Version string            `json:"version,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type Registry interface {
	Register(ctx context.Context, name string, endpoint Endpoint, ttl int64) error
	Deregister(ctx context.Context, name string, addr string) error
	Discover(ctx context.Context, name string) ([]Endpoint, error)
	Watch(ctx context.Context, name string) <-chan []Endpoint
}
