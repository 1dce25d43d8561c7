// Package server accepts bridge connections over a listener and runs a host-side session
// for each one.
//
//	Accept conn → channel.NewStream(conn, Host) → session.New
//	  → RegisterService for each registered receiver → setup(session)
//	  → wait until the stream ends → session.Close
//
// Every session is bidirectional: the setup callback may both receive calls from the
// connected client and call back into it.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"bridge-rpc/channel"
	"bridge-rpc/middleware"
	"bridge-rpc/session"
)

const registryTimeout = 5 * time.Second

// SetupFunc prepares a freshly connected session, typically by registering handlers.
// Returning an error drops the connection.
type SetupFunc func(s *session.Session) error

// Server hosts one session per accepted connection.
type Server struct {
	setup       SetupFunc
	cfg         config
	services    []any                   // receivers passed to RegisterService on every session
	middlewares []middleware.Middleware // applied in the order they are added

	mu       sync.Mutex
	listener net.Listener
	sessions map[*session.Session]struct{}

	wg       sync.WaitGroup // tracks connection goroutines for graceful shutdown
	shutdown atomic.Bool    // set during shutdown to suppress Accept errors
}

// NewServer creates a server. setup may be nil when Register covers every handler.
func NewServer(setup SetupFunc, opts ...Option) *Server {
	cfg := config{ttl: defaultTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		setup:    setup,
		cfg:      cfg,
		sessions: make(map[*session.Session]struct{}),
	}
}

// Register exposes the methods of rcvr (e.g. &Arith{}) as "Arith.Method" on every
// session. It must be called before Serve.
func (svr *Server) Register(rcvr any) error {
	if err := session.ValidateService(rcvr); err != nil {
		return err
	}
	svr.services = append(svr.services, rcvr)
	return nil
}

// Use adds a middleware around every handler invocation. It must be called before Serve.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Serve listens on the given address and serves connections until Shutdown.
func (svr *Server) Serve(network, address string) error {
	l, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return svr.ServeListener(l)
}

// ServeListener serves connections accepted from l until Shutdown, which returns nil.
func (svr *Server) ServeListener(l net.Listener) error {
	svr.mu.Lock()
	svr.listener = l
	svr.mu.Unlock()

	if svr.cfg.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
		err := svr.cfg.registry.Register(ctx, svr.cfg.name, svr.cfg.endpoint, svr.cfg.ttl)
		cancel()
		if err != nil {
			_ = l.Close()
			return fmt.Errorf("server: advertise %s: %w", svr.cfg.name, err)
		}
	}

	svr.cfg.logger.Info().
		Str("addr", l.Addr().String()).
		Log("server listening")

	for {
		conn, err := l.Accept()
		if err != nil {
			// listener.Close() during shutdown makes Accept fail.
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		svr.wg.Add(1)
		go svr.handleConn(conn)
	}
}

// Addr returns the listening address, or nil before Serve.
func (svr *Server) Addr() net.Addr {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.listener == nil {
		return nil
	}
	return svr.listener.Addr()
}

// Sessions reports the number of connected sessions.
func (svr *Server) Sessions() int {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	return len(svr.sessions)
}

func (svr *Server) handleConn(conn net.Conn) {
	defer svr.wg.Done()
	remote := conn.RemoteAddr().String()

	stream := channel.NewStream(conn, channel.Host, svr.cfg.streamOpts...)
	opts := []session.Option{session.WithLogger(svr.cfg.logger)}
	opts = append(opts, svr.cfg.sessionOpts...)
	opts = append(opts, session.WithMiddleware(svr.middlewares...))

	sess, err := session.New(stream, opts...)
	if err != nil {
		svr.cfg.logger.Warning().
			Str("remote", remote).
			Err(err).
			Log("session start failed")
		_ = stream.Close()
		return
	}
	if !svr.track(sess) {
		_ = sess.Close()
		return
	}
	defer svr.untrack(sess)

	if err := svr.prepare(sess); err != nil {
		svr.cfg.logger.Warning().
			Str("remote", remote).
			Err(err).
			Log("session setup failed")
		_ = sess.Close()
		return
	}

	svr.cfg.logger.Debug().
		Str("remote", remote).
		Log("connection accepted")

	<-stream.Done()
	_ = sess.Close()

	svr.cfg.logger.Debug().
		Str("remote", remote).
		Err(stream.Err()).
		Log("connection closed")
}

func (svr *Server) prepare(sess *session.Session) error {
	for _, rcvr := range svr.services {
		if _, err := sess.RegisterService(rcvr); err != nil {
			return err
		}
	}
	if svr.setup != nil {
		return svr.setup(sess)
	}
	return nil
}

func (svr *Server) track(sess *session.Session) bool {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.shutdown.Load() {
		return false
	}
	svr.sessions[sess] = struct{}{}
	return true
}

func (svr *Server) untrack(sess *session.Session) {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	delete(svr.sessions, sess)
}

// Shutdown stops the server:
//  1. withdraw the advertised endpoint, so clients stop discovering it
//  2. stop accepting connections
//  3. close every session
//  4. wait for the connection goroutines to finish, up to timeout
//
// Calls still outstanding on the closed sessions are abandoned.
func (svr *Server) Shutdown(timeout time.Duration) error {
	if svr.cfg.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
		err := svr.cfg.registry.Deregister(ctx, svr.cfg.name, svr.cfg.endpoint.Addr)
		cancel()
		if err != nil {
			svr.cfg.logger.Warning().
				Str("name", svr.cfg.name).
				Err(err).
				Log("deregister failed")
		}
	}

	// The flag must be set before the listener closes, so Serve returns nil.
	svr.shutdown.Store(true)

	svr.mu.Lock()
	l := svr.listener
	sessions := make([]*session.Session, 0, len(svr.sessions))
	for sess := range svr.sessions {
		sessions = append(sessions, sess)
	}
	svr.mu.Unlock()

	if l != nil {
		_ = l.Close()
	}
	for _, sess := range sessions {
		_ = sess.Close()
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("server: timeout waiting for %d connections to close", len(sessions))
	}
}
