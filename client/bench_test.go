package client

import (
	"net"
	"testing"
	"time"

	"bridge-rpc/server"
)

func setupServerAndClient(b *testing.B) *Client {
	svr := server.NewServer(nil)
	if err := svr.Register(&Arith{}); err != nil {
		b.Fatal(err)
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		b.Fatal(err)
	}
	go svr.ServeListener(l)

	cli, err := Dial("tcp", l.Addr().String())
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() {
		cli.Close()
		svr.Shutdown(3 * time.Second)
	})
	return cli
}

// Single goroutine, one call in flight at a time.
func BenchmarkSerialCall(b *testing.B) {
	cli := setupServerAndClient(b)

	args := &Args{A: 1, B: 2}
	reply := &Reply{}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := cli.Call("Arith.Add", args, reply); err != nil {
			b.Fatal(err)
		}
	}
}

// Many goroutines sharing one session; replies are matched by call id.
func BenchmarkConcurrentCall(b *testing.B) {
	cli := setupServerAndClient(b)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		args := &Args{A: 1, B: 2}
		reply := &Reply{}
		for pb.Next() {
			if err := cli.Call("Arith.Add", args, reply); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
