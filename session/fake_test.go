package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"bridge-rpc/channel"
	"bridge-rpc/codec"
	"bridge-rpc/message"
	"github.com/stretchr/testify/require"
)

// fakeChannel records posted frames and lets a test inject inbound ones.
type fakeChannel struct {
	side channel.Side

	mu       sync.Mutex
	posted   [][]byte
	listener func([]byte)
	closed   bool
	postErr  error
}

func newFakeChannel(side channel.Side) *fakeChannel {
	return &fakeChannel{side: side}
}

func (f *fakeChannel) Side() channel.Side { return f.side }

func (f *fakeChannel) Post(_ context.Context, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return channel.ErrClosed
	}
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, append([]byte(nil), frame...))
	return nil
}

func (f *fakeChannel) Listen(fn func([]byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = fn
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) inject(frame []byte) {
	f.mu.Lock()
	fn := f.listener
	f.mu.Unlock()
	fn(frame)
}

func (f *fakeChannel) deliver(t *testing.T, msg *message.Message) {
	t.Helper()
	b, err := codec.Marshal(&codec.JSONCodec{}, msg)
	require.NoError(t, err)
	f.inject(b)
}

// sent decodes every posted frame other than connect.
func (f *fakeChannel) sent(t *testing.T) []*message.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*message.Message
	for _, frame := range f.posted {
		msg := &message.Message{}
		_, err := codec.Unmarshal(frame, msg)
		require.NoError(t, err)
		if msg.Type != message.KindConnect {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeChannel) connects(t *testing.T) int {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, frame := range f.posted {
		msg := &message.Message{}
		_, err := codec.Unmarshal(frame, msg)
		require.NoError(t, err)
		if msg.Type == message.KindConnect {
			n++
		}
	}
	return n
}

// waitSent waits until n non-connect messages have been posted and returns them.
func (f *fakeChannel) waitSent(t *testing.T, n int) []*message.Message {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.sent(t)) >= n }, 2*time.Second, time.Millisecond)
	return f.sent(t)
}

const (
	awaitTimeout = 2 * time.Second
	tick         = time.Millisecond
)

func newTestSession(t *testing.T, side channel.Side, opts ...Option) (*Session, *fakeChannel) {
	t.Helper()
	ch := newFakeChannel(side)
	s, err := New(ch, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, ch
}

// settle waits for every task submitted so far to have run on the loop.
func settle(t *testing.T, s *Session) Stats {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := s.Stats(ctx)
	require.NoError(t, err)
	return st
}

func awaitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// codedError carries an auxiliary field alongside its message.
type codedError struct {
	Code int `json:"code"`
}

func (e *codedError) Error() string { return "boom" }
