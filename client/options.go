package client

import (
	"time"

	"bridge-rpc/channel"
	"bridge-rpc/session"
)

const defaultDialTimeout = 5 * time.Second

type config struct {
	sessionOpts []session.Option
	streamOpts  []channel.StreamOption
	dialTimeout time.Duration
}

// Option configures Dial, DialService and NewClient.
type Option func(*config)

// WithSessionOptions applies opts to the client's session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(c *config) {
		c.sessionOpts = append(c.sessionOpts, opts...)
	}
}

// WithStreamOptions applies opts to the connection's stream.
func WithStreamOptions(opts ...channel.StreamOption) Option {
	return func(c *config) {
		c.streamOpts = append(c.streamOpts, opts...)
	}
}

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

func newConfig(opts []Option) config {
	cfg := config{dialTimeout: defaultDialTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
