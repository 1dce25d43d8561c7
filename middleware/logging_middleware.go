package middleware

import (
	"context"
	"time"

	"bridge-rpc/message"
	"github.com/joeycumines/logiface"
)

// LoggingMiddleware logs every handled call with its duration, and the failure if any.
func LoggingMiddleware(logger *logiface.Logger[logiface.Event]) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Message) (any, error) {
			start := time.Now()
			result, err := next(ctx, call)
			duration := time.Since(start)
			if err != nil {
				logger.Info().
					Str("name", call.Name).
					Uint64("id", call.ID).
					Dur("duration", duration).
					Err(err).
					Log("call failed")
				return result, err
			}
			logger.Info().
				Str("name", call.Name).
				Uint64("id", call.ID).
				Dur("duration", duration).
				Log("call handled")
			return result, nil
		}
	}
}
