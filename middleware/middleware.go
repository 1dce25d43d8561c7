// Package middleware wraps the invocation of inbound call handlers.
//
// Middlewares compose as an onion: the first one passed to Chain is the outermost layer
// and sees the call first and the result last.
package middleware

import (
	"context"

	"bridge-rpc/message"
)

// HandlerFunc handles one inbound call and produces its result value or failure.
type HandlerFunc func(ctx context.Context, call *message.Message) (any, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines several middlewares into one.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
