package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/joeycumines/go-eventloop"
)

// Future is the pending result of a Call. It settles at most once: fulfilled with the
// encoded return value, or rejected with an error (a *RemoteError for failures raised by
// the other side). There is no timeout; a call nobody answers stays pending forever.
type Future struct {
	id      uint64
	name    string
	promise *eventloop.ChainedPromise

	doneOnce sync.Once
	done     chan struct{}
}

// ID is the call identifier carried on the wire.
func (f *Future) ID() uint64 { return f.id }

// Name is the name of the called function.
func (f *Future) Name() string { return f.name }

// Promise exposes the underlying promise for chaining with Then and Catch. Its value
// is a json.RawMessage and its reason an error.
func (f *Future) Promise() *eventloop.ChainedPromise { return f.promise }

// Done is closed once the future has settled. Every waiter shares the one channel, so an
// abandoned wait leaves nothing attached to the promise.
func (f *Future) Done() <-chan struct{} {
	f.doneOnce.Do(func() {
		f.done = make(chan struct{})
		ch := f.promise.ToChannel()
		go func() {
			<-ch
			close(f.done)
		}()
	})
	return f.done
}

// Await blocks until the future settles or ctx is done. Giving up on ctx only abandons
// the wait, the call itself stays outstanding.
func (f *Future) Await(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-f.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if f.promise.State() == eventloop.Rejected {
		switch reason := f.promise.Reason().(type) {
		case error:
			return nil, reason
		default:
			return nil, fmt.Errorf("session: call %s#%d rejected: %v", f.name, f.id, reason)
		}
	}
	raw, _ := f.promise.Value().(json.RawMessage)
	return raw, nil
}

// Decode awaits the future and unmarshals its value into v. A nil v only waits.
func (f *Future) Decode(ctx context.Context, v any) error {
	raw, err := f.Await(ctx)
	if err != nil {
		return err
	}
	if v == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("session: decode result of %s: %w", f.name, err)
	}
	return nil
}
