// Package session implements RPC over a channel.Channel: calls are correlated with their
// replies by identifier, inbound calls wait in a backlog until a handler is registered,
// and outbound traffic waits until the channel is ready.
//
//	Call("ping") ──→ pending[id] ──→ call{id} ──→ channel ──→ peer
//	channel ──→ onFrame ──→ loop ──→ dispatch ──┬─ call      → receivers[name] or backlog
//	                                            ├─ response  → pending[id].resolve
//	                                            ├─ error     → pending[id].reject
//	                                            └─ connect   → flush outbound
//
// All session state is owned by a single event loop goroutine. Public methods submit
// tasks to the loop, so they are safe to use from any goroutine, and handlers run on
// their own goroutines so a slow handler never stalls dispatch.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"bridge-rpc/channel"
	"bridge-rpc/codec"
	"bridge-rpc/message"
	"bridge-rpc/middleware"
	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
)

const shutdownTimeout = 5 * time.Second

// Handler answers one inbound call. The returned value is encoded as the response data.
// Returning a *Future makes the session wait for it and reply with its outcome.
type Handler func(ctx context.Context, args message.Args) (any, error)

type pendingCall struct {
	resolve eventloop.ResolveFunc
	reject  eventloop.RejectFunc
}

// inboundCall is a call waiting for its handler, with the codec its reply is encoded in.
type inboundCall struct {
	msg   *message.Message
	codec codec.Codec
}

type outboundFrame struct {
	frame []byte
	// call is the pending id to fail if the frame cannot be posted.
	call   uint64
	isCall bool
}

// Session is one end of an RPC conversation over a channel.
type Session struct {
	ch       channel.Channel
	codec    codec.Codec
	logger   *logiface.Logger[logiface.Event]
	hook     DispatchHook
	chain    middleware.Middleware
	loop     *eventloop.Loop
	js       *eventloop.JS
	ownsLoop bool
	loopDone chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	nextID atomic.Uint64
	closed atomic.Bool

	// Owned by the loop.
	pending   map[uint64]pendingCall
	receivers map[string]Handler
	backlog   []inboundCall
	outbound  []outboundFrame
	ready     bool
}

// New starts a session over ch. A client-side session is ready immediately and announces
// itself with a connect message; a host-side session holds outbound traffic until that
// connect arrives.
func New(ch channel.Channel, opts ...Option) (*Session, error) {
	cfg := config{
		codec: &codec.JSONCodec{},
		hook:  nopHook{},
		ctx:   context.Background(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		ch:        ch,
		codec:     cfg.codec,
		logger:    cfg.logger,
		hook:      cfg.hook,
		chain:     middleware.Chain(cfg.middlewares...),
		loop:      cfg.loop,
		pending:   make(map[uint64]pendingCall),
		receivers: make(map[string]Handler),
		ready:     ch.Side() == channel.Client,
	}
	s.ctx, s.cancel = context.WithCancel(cfg.ctx)

	if s.loop == nil {
		loop, err := eventloop.New()
		if err != nil {
			s.cancel()
			return nil, fmt.Errorf("session: create event loop: %w", err)
		}
		s.loop = loop
		s.ownsLoop = true
		s.loopDone = make(chan struct{})
		go func() {
			defer close(s.loopDone)
			_ = loop.Run(context.Background())
		}()
	}

	js, err := eventloop.NewJS(s.loop, eventloop.WithUnhandledRejection(func(reason any) {
		s.logger.Debug().
			Str("side", ch.Side().String()).
			Any("reason", reason).
			Log("unhandled call rejection")
	}))
	if err != nil {
		s.shutdownLoop()
		s.cancel()
		return nil, fmt.Errorf("session: create promise runtime: %w", err)
	}
	s.js = js

	ch.Listen(s.onFrame)

	if ch.Side() == channel.Client {
		frame, err := codec.Marshal(s.codec, message.NewConnect())
		if err != nil {
			s.shutdownLoop()
			s.cancel()
			return nil, fmt.Errorf("session: encode connect: %w", err)
		}
		if err := s.submit(func() { s.emit(outboundFrame{frame: frame}) }); err != nil {
			s.shutdownLoop()
			s.cancel()
			return nil, err
		}
	}

	s.logger.Debug().
		Str("side", ch.Side().String()).
		Str("codec", s.codec.Type().String()).
		Log("session started")
	return s, nil
}

// Side reports which end of the channel this session is.
func (s *Session) Side() channel.Side { return s.ch.Side() }

// Call invokes name on the other side with args and returns immediately. Failures to
// encode the arguments, or calling on a closed session, produce an already-rejected future.
func (s *Session) Call(name string, args ...any) *Future {
	id := s.nextID.Add(1) - 1
	p, resolve, reject := s.js.NewChainedPromise()
	f := &Future{id: id, name: name, promise: p}

	encoded, err := message.NewArgs(args...)
	if err != nil {
		reject(fmt.Errorf("session: call %s: %w", name, err))
		return f
	}
	frame, err := codec.Marshal(s.codec, message.NewCall(id, name, encoded))
	if err != nil {
		reject(fmt.Errorf("session: call %s: %w", name, err))
		return f
	}

	if err := s.submit(func() {
		s.pending[id] = pendingCall{resolve: resolve, reject: reject}
		s.emit(outboundFrame{frame: frame, call: id, isCall: true})
	}); err != nil {
		reject(err)
	}
	return f
}

// Receive registers h as the only handler for name, replacing any previous one. Calls
// for name that arrived earlier are replayed afterwards, oldest first, one at a time.
func (s *Session) Receive(name string, h Handler) error {
	if h == nil {
		return errors.New("session: nil handler")
	}
	return s.submit(func() {
		s.receivers[name] = h
		// Replay in a later task so the registration is complete before any handler runs.
		_ = s.loop.Submit(func() { s.replay(name) })
	})
}

// Ignore unregisters the handler for name. Calls for name arriving afterwards, and any
// already waiting, stay in the backlog unanswered.
func (s *Session) Ignore(name string) error {
	return s.submit(func() {
		delete(s.receivers, name)
	})
}

// Stats is a point-in-time view of the session's bookkeeping.
type Stats struct {
	Pending  int
	Backlog  int
	Outbound int
	Ready    bool
}

// Stats reports the session's bookkeeping, as seen by the loop.
func (s *Session) Stats(ctx context.Context) (Stats, error) {
	result := make(chan Stats, 1)
	if err := s.submit(func() {
		result <- Stats{
			Pending:  len(s.pending),
			Backlog:  len(s.backlog),
			Outbound: len(s.outbound),
			Ready:    s.ready,
		}
	}); err != nil {
		return Stats{}, err
	}
	select {
	case st := <-result:
		return st, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// Close stops the session and closes its channel. Outstanding futures stay pending.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()
	err := s.ch.Close()
	s.shutdownLoop()
	s.logger.Debug().
		Str("side", s.ch.Side().String()).
		Log("session closed")
	return err
}

func (s *Session) shutdownLoop() {
	if !s.ownsLoop {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = s.loop.Shutdown(ctx)
	select {
	case <-s.loopDone:
	case <-ctx.Done():
	}
}

func (s *Session) submit(fn func()) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.loop.Submit(fn); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}
