// Package client connects to a bridge server and runs the client side of a session over
// the connection.
//
// Besides the blocking Call, the underlying session is available through Session, so the
// client can also register handlers the host calls back into.
package client

import (
	"context"
	"fmt"
	"io"
	"net"

	"bridge-rpc/channel"
	"bridge-rpc/loadbalance"
	"bridge-rpc/registry"
	"bridge-rpc/session"
)

// Client is a client-side session over one stream connection.
type Client struct {
	addr   string
	stream *channel.Stream
	sess   *session.Session
}

// Dial connects to address and starts a session.
func Dial(network, address string, opts ...Option) (*Client, error) {
	cfg := newConfig(opts)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.dialTimeout)
	defer cancel()
	return dial(ctx, network, address, cfg)
}

// DialService discovers the hosts advertised under name, picks one with bal, and dials it.
func DialService(ctx context.Context, reg registry.Registry, name string, bal loadbalance.Balancer, opts ...Option) (*Client, error) {
	endpoints, err := reg.Discover(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("client: discover %s: %w", name, err)
	}
	endpoint, err := bal.Pick(endpoints)
	if err != nil {
		return nil, fmt.Errorf("client: pick %s: %w", name, err)
	}

	cfg := newConfig(opts)
	ctx, cancel := context.WithTimeout(ctx, cfg.dialTimeout)
	defer cancel()
	return dial(ctx, "tcp", endpoint.Addr, cfg)
}

func dial(ctx context.Context, network, address string, cfg config) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	c, err := newClient(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.addr = address
	return c, nil
}

// NewClient starts a session over an established connection. The client owns conn.
func NewClient(conn io.ReadWriteCloser, opts ...Option) (*Client, error) {
	return newClient(conn, newConfig(opts))
}

func newClient(conn io.ReadWriteCloser, cfg config) (*Client, error) {
	stream := channel.NewStream(conn, channel.Client, cfg.streamOpts...)
	sess, err := session.New(stream, cfg.sessionOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{stream: stream, sess: sess}, nil
}

// Call invokes serviceMethod with args and decodes the result into reply, blocking
// until the host answers. reply may be nil.
func (c *Client) Call(serviceMethod string, args any, reply any) error {
	return c.CallContext(context.Background(), serviceMethod, args, reply)
}

// CallContext is Call with a bound on the wait. An expired ctx abandons the wait only.
func (c *Client) CallContext(ctx context.Context, serviceMethod string, args any, reply any) error {
	return c.sess.Call(serviceMethod, args).Decode(ctx, reply)
}

// Go starts a call with any number of arguments without waiting for it.
func (c *Client) Go(name string, args ...any) *session.Future {
	return c.sess.Call(name, args...)
}

// Addr is the address the client dialed. It is empty for clients built with NewClient.
func (c *Client) Addr() string { return c.addr }

// Session returns the underlying session.
func (c *Client) Session() *session.Session { return c.sess }

// Done is closed once the connection has ended.
func (c *Client) Done() <-chan struct{} { return c.stream.Done() }

// Close ends the session and the connection.
func (c *Client) Close() error {
	return c.sess.Close()
}
