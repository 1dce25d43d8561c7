package client

import (
	"context"
	"net"
	"testing"
	"time"

	"bridge-rpc/codec"
	"bridge-rpc/loadbalance"
	"bridge-rpc/message"
	"bridge-rpc/registry"
	"bridge-rpc/server"
	"bridge-rpc/session"
	"github.com/stretchr/testify/require"
)

type Args struct {
	A, B int
}

type Reply struct {
	Result int
}

type Arith struct{}

func (a *Arith) Add(args *Args, reply *Reply) error {
	reply.Result = args.A + args.B
	return nil
}

func startServer(t *testing.T, opts ...server.Option) string {
	t.Helper()
	svr := server.NewServer(func(s *session.Session) error {
		return s.Receive("sum", func(_ context.Context, args message.Args) (any, error) {
			var a, b, c int
			if err := args.Bind(&a, &b, &c); err != nil {
				return nil, err
			}
			return a + b + c, nil
		})
	}, opts...)
	require.NoError(t, svr.Register(&Arith{}))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- svr.ServeListener(l) }()
	t.Cleanup(func() {
		require.NoError(t, svr.Shutdown(5*time.Second))
		require.NoError(t, <-served)
	})
	return l.Addr().String()
}

func TestClientCall(t *testing.T) {
	addr := startServer(t)

	client, err := Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	reply := &Reply{}
	require.NoError(t, client.Call("Arith.Add", &Args{A: 1, B: 2}, reply))
	require.Equal(t, 3, reply.Result)

	reply2 := &Reply{}
	require.NoError(t, client.Call("Arith.Add", &Args{A: 10, B: 20}, reply2))
	require.Equal(t, 30, reply2.Result)
}

func TestClientCallWithBinaryCodec(t *testing.T) {
	addr := startServer(t, server.WithSessionOptions(session.WithCodec(&codec.BinaryCodec{})))

	client, err := Dial("tcp", addr, WithSessionOptions(session.WithCodec(&codec.BinaryCodec{})))
	require.NoError(t, err)
	defer client.Close()

	reply := &Reply{}
	require.NoError(t, client.Call("Arith.Add", &Args{A: 5, B: 7}, reply))
	require.Equal(t, 12, reply.Result)
}

func TestClientGoWithSeveralArgs(t *testing.T) {
	addr := startServer(t)

	client, err := Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	futures := make([]*session.Future, 10)
	for i := range futures {
		futures[i] = client.Go("sum", i, i, i)
	}
	for i, f := range futures {
		var got int
		require.NoError(t, f.Decode(ctx, &got))
		require.Equal(t, 3*i, got)
	}
}

func TestClientUnknownMethodStaysPending(t *testing.T) {
	addr := startServer(t)

	client, err := Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = client.CallContext(ctx, "Arith.Missing", &Args{}, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientClose(t *testing.T) {
	addr := startServer(t)

	client, err := Dial("tcp", addr)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream still running after Close")
	}

	err = client.Call("Arith.Add", &Args{}, nil)
	require.ErrorIs(t, err, session.ErrClosed)
}

type staticRegistry struct {
	endpoints []registry.Endpoint
}

func (r *staticRegistry) Register(context.Context, string, registry.Endpoint, int64) error {
	return nil
}

func (r *staticRegistry) Deregister(context.Context, string, string) error { return nil }

func (r *staticRegistry) Discover(context.Context, string) ([]registry.Endpoint, error) {
	return r.endpoints, nil
}

func (r *staticRegistry) Watch(ctx context.Context, _ string) <-chan []registry.Endpoint {
	ch := make(chan []registry.Endpoint)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func TestDialService(t *testing.T) {
	addr := startServer(t)
	reg := &staticRegistry{endpoints: []registry.Endpoint{{Addr: addr, Weight: 1}}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := DialService(ctx, reg, "arith", &loadbalance.RoundRobinBalancer{})
	require.NoError(t, err)
	defer client.Close()

	reply := &Reply{}
	require.NoError(t, client.CallContext(ctx, "Arith.Add", &Args{A: 4, B: 6}, reply))
	require.Equal(t, 10, reply.Result)
}

func TestDialServiceNoEndpoints(t *testing.T) {
	_, err := DialService(context.Background(), &staticRegistry{}, "arith", &loadbalance.WeightedRandomBalancer{})
	require.ErrorIs(t, err, loadbalance.ErrNoEndpoints)
}
