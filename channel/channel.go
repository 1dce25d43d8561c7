// Package channel provides the transports a session runs over.
//
// A Channel moves opaque frames between exactly two sides. It guarantees nothing about
// ordering or delivery timing, and it never looks inside a frame. Which end is the host
// and which is the client is chosen explicitly by whoever constructs the channel.
package channel

import (
	"context"
	"errors"
)

// ErrClosed is returned by Post once the channel has been closed.
var ErrClosed = errors.New("channel: closed")

// Side identifies which end of a channel the local process is.
type Side uint8

const (
	// Host is the early side. It does not send anything until the client announces itself.
	Host Side = iota
	// Client is the late side. It is ready as soon as it exists.
	Client
)

func (s Side) String() string {
	switch s {
	case Host:
		return "host"
	case Client:
		return "client"
	default:
		return "unknown"
	}
}

// Peer returns the opposite side.
func (s Side) Peer() Side {
	if s == Host {
		return Client
	}
	return Host
}

// Channel is the adapter a session posts frames to and listens on.
type Channel interface {
	// Side reports which end of the channel this is.
	Side() Side
	// Post delivers one frame to the other side.
	Post(ctx context.Context, frame []byte) error
	// Listen attaches the inbound frame handler. Frames are delivered one at a time.
	// Only the first call has any effect.
	Listen(fn func(frame []byte))
	// Close releases the transport. Pending inbound frames may be dropped.
	Close() error
}
