package session

import (
	"context"

	"bridge-rpc/channel"
)

// DispatchInfo describes one inbound call handed to a handler.
type DispatchInfo struct {
	ID   uint64
	Name string
	Side channel.Side
	// Replayed is set for calls that waited in the inbound backlog for their handler.
	Replayed bool
}

// HookToken is opaque per-dispatch state passed from OnDispatchStart to OnDispatchEnd.
type HookToken any

// DispatchHook observes handler invocations. Both methods run on the handler goroutine.
type DispatchHook interface {
	OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken)
	OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, err error)
}

type nopHook struct{}

func (nopHook) OnDispatchStart(ctx context.Context, _ DispatchInfo) (context.Context, HookToken) {
	return ctx, nil
}

func (nopHook) OnDispatchEnd(context.Context, HookToken, DispatchInfo, error) {}
