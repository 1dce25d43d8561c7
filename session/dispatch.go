package session

import (
	"context"
	"encoding/json"
	"fmt"

	"bridge-rpc/codec"
	"bridge-rpc/message"
)

// onFrame runs on the channel's delivery goroutine. Each frame is decoded with the codec
// it names; frames that do not decode to a valid message are dropped without a trace.
func (s *Session) onFrame(frame []byte) {
	msg := &message.Message{}
	ct, err := codec.Unmarshal(frame, msg)
	if err != nil {
		return
	}
	if msg.Validate() != nil {
		return
	}
	_ = s.submit(func() { s.dispatch(msg, codec.GetCodec(ct)) })
}

// dispatch routes msg. Replies to a call use the codec the call arrived in.
func (s *Session) dispatch(msg *message.Message, c codec.Codec) {
	switch msg.Type {
	case message.KindCall:
		s.handleCall(inboundCall{msg: msg, codec: c}, false, nil)
	case message.KindResponse:
		s.handleResponse(msg)
	case message.KindError:
		s.handleError(msg)
	case message.KindConnect:
		s.handleConnect()
	}
}

// handleCall runs the registered handler for msg on its own goroutine, or parks msg in
// the backlog when there is none. done, if set, runs on the loop after the reply has
// been emitted (or after msg was parked).
func (s *Session) handleCall(call inboundCall, replayed bool, done func()) {
	msg := call.msg
	h, ok := s.receivers[msg.Name]
	if !ok {
		s.backlog = append(s.backlog, call)
		s.logger.Debug().
			Str("name", msg.Name).
			Uint64("id", msg.ID).
			Int("backlog", len(s.backlog)).
			Log("no handler, call queued")
		if done != nil {
			done()
		}
		return
	}

	info := DispatchInfo{ID: msg.ID, Name: msg.Name, Side: s.ch.Side(), Replayed: replayed}
	invoke := s.chain(func(ctx context.Context, call *message.Message) (any, error) {
		args, err := call.Args()
		if err != nil {
			return nil, err
		}
		return h(ctx, args)
	})

	go func() {
		ctx, token := s.hook.OnDispatchStart(s.ctx, info)
		data, err := s.run(ctx, invoke, msg)
		s.hook.OnDispatchEnd(ctx, token, info, err)

		var reply *message.Message
		if err != nil {
			s.logger.Debug().
				Str("name", msg.Name).
				Uint64("id", msg.ID).
				Err(err).
				Log("handler failed")
			reply = message.NewError(msg.ID, msg.Name, EncodeError(err))
		} else {
			reply = message.NewResponse(msg.ID, msg.Name, data)
		}

		frame, encErr := codec.Marshal(call.codec, reply)
		if encErr != nil {
			frame, encErr = codec.Marshal(call.codec, message.NewError(msg.ID, msg.Name, EncodeError(encErr)))
		}
		_ = s.submit(func() {
			if encErr == nil {
				s.emit(outboundFrame{frame: frame})
			}
			if done != nil {
				done()
			}
		})
	}()
}

// run invokes the handler chain, turning panics into errors and waiting on returned futures.
func (s *Session) run(ctx context.Context, invoke func(context.Context, *message.Message) (any, error), msg *message.Message) (data json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("session: handler %s panicked: %v", msg.Name, r)
		}
	}()

	result, err := invoke(ctx, msg)
	if err != nil {
		return nil, err
	}

	switch v := result.(type) {
	case *Future:
		return v.Await(ctx)
	case json.RawMessage:
		if len(v) == 0 {
			return json.RawMessage("null"), nil
		}
		return v, nil
	}

	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("session: encode result of %s: %w", msg.Name, err)
	}
	return b, nil
}

func (s *Session) handleResponse(msg *message.Message) {
	entry, ok := s.pending[msg.ID]
	if !ok {
		return
	}
	delete(s.pending, msg.ID)
	entry.resolve(msg.Data)
}

func (s *Session) handleError(msg *message.Message) {
	entry, ok := s.pending[msg.ID]
	if !ok {
		return
	}
	delete(s.pending, msg.ID)
	entry.reject(DecodeError(msg.ErrorPayload))
}

// handleConnect latches readiness and flushes everything held back so far, oldest first.
// A repeated connect finds the outbound backlog empty.
func (s *Session) handleConnect() {
	s.ready = true
	if len(s.outbound) == 0 {
		return
	}
	s.logger.Debug().
		Int("frames", len(s.outbound)).
		Log("peer connected, flushing outbound backlog")
	queued := s.outbound
	s.outbound = nil
	for _, out := range queued {
		s.post(out)
	}
}

// replay removes the backlog entries for name, keeping their order, and dispatches them
// one after another, each waiting for the previous reply.
func (s *Session) replay(name string) {
	var matched []inboundCall
	kept := s.backlog[:0]
	for _, call := range s.backlog {
		if call.msg.Name == name {
			matched = append(matched, call)
		} else {
			kept = append(kept, call)
		}
	}
	clear(s.backlog[len(kept):])
	s.backlog = kept
	if len(matched) == 0 {
		return
	}

	s.logger.Debug().
		Str("name", name).
		Int("calls", len(matched)).
		Log("replaying queued calls")

	var next func(i int)
	next = func(i int) {
		if i == len(matched) {
			return
		}
		s.handleCall(matched[i], true, func() { next(i + 1) })
	}
	next(0)
}

// emit sends out now if the channel is ready and queues it otherwise.
func (s *Session) emit(out outboundFrame) {
	if !s.ready {
		s.outbound = append(s.outbound, out)
		return
	}
	s.post(out)
}

func (s *Session) post(out outboundFrame) {
	err := s.ch.Post(s.ctx, out.frame)
	if err == nil {
		return
	}
	s.logger.Warning().
		Str("side", s.ch.Side().String()).
		Err(err).
		Log("post failed")
	if !out.isCall {
		return
	}
	if entry, ok := s.pending[out.call]; ok {
		delete(s.pending, out.call)
		entry.reject(fmt.Errorf("session: send call: %w", err))
	}
}
