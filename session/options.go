package session

import (
	"context"
	"io"

	"bridge-rpc/codec"
	"bridge-rpc/middleware"
	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

type config struct {
	codec       codec.Codec
	logger      *logiface.Logger[logiface.Event]
	middlewares []middleware.Middleware
	hook        DispatchHook
	loop        *eventloop.Loop
	ctx         context.Context
}

// Option configures New.
type Option func(*config)

// WithCodec sets the frame encoding. Both sides must use the same one. Defaults to JSON.
func WithCodec(c codec.Codec) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.codec = c
		}
	}
}

// WithLogger sets the session logger. A nil logger disables logging, which is the default.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// WithMiddleware appends middlewares wrapped around every handler invocation.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(cfg *config) {
		cfg.middlewares = append(cfg.middlewares, mws...)
	}
}

// WithDispatchHook installs a hook observing every handler invocation.
func WithDispatchHook(h DispatchHook) Option {
	return func(cfg *config) {
		if h != nil {
			cfg.hook = h
		}
	}
}

// WithLoop runs the session on an existing event loop. The caller keeps ownership:
// the session neither runs nor shuts it down.
func WithLoop(loop *eventloop.Loop) Option {
	return func(cfg *config) {
		cfg.loop = loop
	}
}

// WithContext sets the parent of the context handlers receive. Close cancels it.
func WithContext(ctx context.Context) Option {
	return func(cfg *config) {
		if ctx != nil {
			cfg.ctx = ctx
		}
	}
}

// NewLogger builds the default JSON logger writing to w.
func NewLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}
