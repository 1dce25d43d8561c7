package session

import (
	"context"

	"bridge-rpc/message"
)

// Method is a typed description of one remote function taking a single Req and
// answering with a Resp. Both sides can share the declaration.
type Method[Req, Resp any] struct {
	Name string
}

// NewMethod declares a typed method called name.
func NewMethod[Req, Resp any](name string) Method[Req, Resp] {
	return Method[Req, Resp]{Name: name}
}

// Call starts a call of m on s.
func (m Method[Req, Resp]) Call(s *Session, req Req) *Future {
	return s.Call(m.Name, req)
}

// Invoke calls m on s and waits for the decoded response.
func (m Method[Req, Resp]) Invoke(ctx context.Context, s *Session, req Req) (Resp, error) {
	var resp Resp
	err := s.Call(m.Name, req).Decode(ctx, &resp)
	return resp, err
}

// Handle registers fn as the handler for m on s.
func (m Method[Req, Resp]) Handle(s *Session, fn func(ctx context.Context, req Req) (Resp, error)) error {
	return s.Receive(m.Name, func(ctx context.Context, args message.Args) (any, error) {
		var req Req
		if err := args.Bind(&req); err != nil {
			return nil, err
		}
		return fn(ctx, req)
	})
}
