// Package message defines the messages exchanged between the two sides of a bridge.
//
// Message is the "envelope" for every cross-boundary interaction. It gets serialized by the
// codec layer and handed to a channel adapter as an opaque frame.
//
//	call      { id, name, data: [arg0, arg1, ...] }   caller → callee
//	response  { id, name, data: value }               callee → caller
//	error     { id, name, errorPayload: "{...}" }     callee → caller
//	connect   {}                                      late side → early side, once
package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the tag of the Message union.
type Kind string

const (
	KindCall     Kind = "call"
	KindResponse Kind = "response"
	KindError    Kind = "error"
	KindConnect  Kind = "connect"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("message: invalid")

// Message carries a single call, terminal reply, or readiness signal.
//
//   - call:     Data is a JSON array holding the ordered arguments.
//   - response: Data is the single JSON return value.
//   - error:    ErrorPayload is a JSON object with "message" plus auxiliary fields.
//   - connect:  only Type is meaningful.
type Message struct {
	Type         Kind            `json:"type"`
	ID           uint64          `json:"id,omitempty"`
	Name         string          `json:"name,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorPayload string          `json:"errorPayload,omitempty"`
}

// NewCall builds a call message, encoding args as the data array.
func NewCall(id uint64, name string, args Args) *Message {
	data, _ := json.Marshal(args) // []json.RawMessage of valid JSON cannot fail
	return &Message{Type: KindCall, ID: id, Name: name, Data: data}
}

// NewResponse builds a response message for the call with the given id.
func NewResponse(id uint64, name string, data json.RawMessage) *Message {
	return &Message{Type: KindResponse, ID: id, Name: name, Data: data}
}

// NewError builds an error message for the call with the given id.
func NewError(id uint64, name string, payload string) *Message {
	return &Message{Type: KindError, ID: id, Name: name, ErrorPayload: payload}
}

// NewConnect builds the one-time readiness signal.
func NewConnect() *Message {
	return &Message{Type: KindConnect}
}

// Validate reports whether m is a well-formed member of the union.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrInvalid)
	}
	switch m.Type {
	case KindCall:
		if m.Name == "" {
			return fmt.Errorf("%w: call without name", ErrInvalid)
		}
		if _, err := m.Args(); err != nil {
			return fmt.Errorf("%w: call data: %v", ErrInvalid, err)
		}
	case KindResponse:
		if len(m.Data) != 0 && !json.Valid(m.Data) {
			return fmt.Errorf("%w: response data is not valid JSON", ErrInvalid)
		}
	case KindError, KindConnect:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, m.Type)
	}
	return nil
}

// Args decodes the argument array of a call message.
// A call without data has no arguments.
func (m *Message) Args() (Args, error) {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return Args{}, nil
	}
	var args Args
	if err := json.Unmarshal(m.Data, &args); err != nil {
		return nil, err
	}
	return args, nil
}

func (m *Message) String() string {
	if m == nil {
		return "<nil>"
	}
	if m.Type == KindConnect {
		return string(m.Type)
	}
	return fmt.Sprintf("%s#%d(%s)", m.Type, m.ID, m.Name)
}
