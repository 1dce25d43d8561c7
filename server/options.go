package server

import (
	"bridge-rpc/channel"
	"bridge-rpc/registry"
	"bridge-rpc/session"
	"github.com/joeycumines/logiface"
)

const defaultTTL = 10 // seconds, renewed by the registry's keepalive

type config struct {
	sessionOpts []session.Option
	streamOpts  []channel.StreamOption
	logger      *logiface.Logger[logiface.Event]

	registry registry.Registry
	name     string
	endpoint registry.Endpoint
	ttl      int64
}

// Option configures NewServer.
type Option func(*config)

// WithSessionOptions applies opts to every session the server creates.
func WithSessionOptions(opts ...session.Option) Option {
	return func(c *config) {
		c.sessionOpts = append(c.sessionOpts, opts...)
	}
}

// WithStreamOptions applies opts to every accepted connection's stream.
func WithStreamOptions(opts ...channel.StreamOption) Option {
	return func(c *config) {
		c.streamOpts = append(c.streamOpts, opts...)
	}
}

// WithLogger sets the server logger. It is also the default logger of each session.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithRegistry advertises the server under name once it is listening, and withdraws it
// on Shutdown. endpoint.Addr must be routable by clients, e.g. "10.0.0.5:8080" rather
// than ":8080".
func WithRegistry(reg registry.Registry, name string, endpoint registry.Endpoint) Option {
	return func(c *config) {
		c.registry = reg
		c.name = name
		c.endpoint = endpoint
	}
}

// WithRegistryTTL sets the lease TTL in seconds for the advertised endpoint.
func WithRegistryTTL(ttl int64) Option {
	return func(c *config) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}
