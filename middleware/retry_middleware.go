package middleware

import (
	"context"
	"errors"
	"time"

	"bridge-rpc/message"
	"github.com/joeycumines/logiface"
)

// Temporary is implemented by errors worth retrying.
type Temporary interface {
	Temporary() bool
}

// IsTemporary reports whether any error in err's chain says it is temporary.
func IsTemporary(err error) bool {
	var t Temporary
	return errors.As(err, &t) && t.Temporary()
}

// RetryMiddleware re-invokes the handler up to maxRetries times while it fails with a
// temporary error, doubling the delay from baseDelay each attempt.
func RetryMiddleware(maxRetries int, baseDelay time.Duration, logger *logiface.Logger[logiface.Event]) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Message) (any, error) {
			result, err := next(ctx, call)
			for i := 0; i < maxRetries; i++ {
				if err == nil || !IsTemporary(err) {
					return result, err
				}
				logger.Debug().
					Int("attempt", i+1).
					Str("name", call.Name).
					Err(err).
					Log("retrying call")

				timer := time.NewTimer(baseDelay * time.Duration(1<<i))
				select {
				case <-ctx.Done():
					timer.Stop()
					return result, err
				case <-timer.C:
				}
				result, err = next(ctx, call)
			}
			return result, err
		}
	}
}
