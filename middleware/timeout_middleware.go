package middleware

import (
	"context"
	"errors"
	"time"

	"bridge-rpc/message"
)

var ErrHandlerTimeout = errors.New("handler timed out")

// TimeOutMiddleware bounds how long a handler may run on this side. On expiry the caller
// receives an error reply; the handler goroutine keeps running until it returns, with its
// context cancelled.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Message) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type outcome struct {
				result any
				err    error
			}
			done := make(chan outcome, 1)
			go func() {
				result, err := next(ctx, call)
				done <- outcome{result, err}
			}()

			select {
			case o := <-done:
				return o.result, o.err
			case <-ctx.Done():
				return nil, ErrHandlerTimeout
			}
		}
	}
}
