package channel

import (
	"context"
	"io"
	"sync"
	"time"

	"bridge-rpc/protocol"
)

const defaultHeartbeat = 30 * time.Second

type streamConfig struct {
	heartbeat time.Duration
}

// StreamOption configures NewStream.
type StreamOption func(*streamConfig)

// WithHeartbeat sets the keepalive interval. Zero or negative disables heartbeats.
func WithHeartbeat(d time.Duration) StreamOption {
	return func(c *streamConfig) {
		c.heartbeat = d
	}
}

// Stream carries frames over a byte stream (TCP connection, unix socket, stdio pipe)
// using the protocol frame format.
//
//	Post ──lock──→ protocol.Encode ──→ rwc ──→ peer
//	recvLoop: rwc ──→ protocol.Decode ──→ fn(body)   (heartbeats are skipped)
//
// One goroutine reads, since frame boundaries can only be parsed sequentially. Writes are
// serialized so a frame's header and body never interleave with another frame.
type Stream struct {
	rwc       io.ReadWriteCloser
	side      Side
	heartbeat time.Duration

	sending   sync.Mutex
	listen    sync.Once
	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}

	mu  sync.Mutex
	err error
}

// NewStream wraps rwc as the given side of a channel.
func NewStream(rwc io.ReadWriteCloser, side Side, opts ...StreamOption) *Stream {
	cfg := streamConfig{heartbeat: defaultHeartbeat}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Stream{
		rwc:       rwc,
		side:      side,
		heartbeat: cfg.heartbeat,
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *Stream) Side() Side { return s.side }

// Post writes one message frame.
func (s *Stream) Post(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.closing:
		return ErrClosed
	default:
	}

	s.sending.Lock()
	defer s.sending.Unlock()
	return protocol.Encode(s.rwc, protocol.FrameTypeMessage, frame)
}

// Listen starts the receive loop and, if enabled, the heartbeat loop.
func (s *Stream) Listen(fn func(frame []byte)) {
	s.listen.Do(func() {
		go s.recvLoop(fn)
		if s.heartbeat > 0 {
			go s.heartbeatLoop(s.heartbeat)
		}
	})
}

func (s *Stream) recvLoop(fn func(frame []byte)) {
	defer close(s.done)
	for {
		header, body, err := protocol.Decode(s.rwc)
		if err != nil {
			s.fail(err)
			return
		}
		if header.FrameType == protocol.FrameTypeHeartbeat {
			continue
		}
		fn(body)
	}
}

// heartbeatLoop sends empty heartbeat frames so idle connections are not reaped by
// intermediaries, and so a dead peer surfaces as a write error.
func (s *Stream) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closing:
			return
		case <-s.done:
			return
		case <-ticker.C:
		}
		s.sending.Lock()
		err := protocol.Encode(s.rwc, protocol.FrameTypeHeartbeat, nil)
		s.sending.Unlock()
		if err != nil {
			return
		}
	}
}

func (s *Stream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Done is closed once the receive loop has exited, after Close or when the peer hangs up.
// It never closes if Listen was not called.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err returns the error that stopped the receive loop. A clean hangup reports io.EOF.
// After Close it reports ErrClosed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.err == nil {
			s.err = ErrClosed
		}
		s.mu.Unlock()
		close(s.closing)
		err = s.rwc.Close()
	})
	return err
}
