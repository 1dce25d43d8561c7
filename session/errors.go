package session

import (
	"encoding/json"
	"errors"
)

// ErrClosed is returned by operations on a session that has been closed.
var ErrClosed = errors.New("session: closed")

// RemoteError is how a failure raised by the other side's handler surfaces to the caller.
// Message is the remote error text and Cause holds every auxiliary field the remote error
// carried.
type RemoteError struct {
	Message string         `json:"-"`
	Cause   map[string]any `json:"-"`
}

func (e *RemoteError) Error() string {
	return e.Message
}

// EncodeError serializes err into an error payload: a JSON object with "message" set to
// err.Error(), plus the exported fields of every error in err's tree, following both
// Unwrap() error and Unwrap() []error (errors.Join, fmt.Errorf with several %w). Fields
// met first in a depth-first walk win on conflicts, so outer errors override inner ones.
// A *RemoteError contributes its Cause entries, so a remote failure passed through keeps
// its metadata.
func EncodeError(err error) string {
	fields := map[string]any{}
	collectFields(err, fields)
	fields["message"] = err.Error()

	b, mErr := json.Marshal(fields)
	if mErr != nil {
		b, _ = json.Marshal(map[string]string{"message": err.Error()})
	}
	return string(b)
}

func collectFields(err error, fields map[string]any) {
	if err == nil {
		return
	}
	for k, v := range ownFields(err) {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		collectFields(u.Unwrap(), fields)
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			collectFields(inner, fields)
		}
	}
}

func ownFields(err error) map[string]any {
	if remote, ok := err.(*RemoteError); ok {
		return remote.Cause
	}
	b, mErr := json.Marshal(err)
	if mErr != nil {
		return nil
	}
	var own map[string]any
	if json.Unmarshal(b, &own) != nil {
		return nil
	}
	return own
}

// DecodeError rebuilds a RemoteError from an error payload. A payload that is not a JSON
// object becomes the message verbatim.
func DecodeError(payload string) *RemoteError {
	var fields map[string]any
	if err := json.Unmarshal([]byte(payload), &fields); err != nil || fields == nil {
		return &RemoteError{Message: payload}
	}

	remote := &RemoteError{}
	if msg, ok := fields["message"].(string); ok {
		remote.Message = msg
	}
	delete(fields, "message")
	if len(fields) != 0 {
		remote.Cause = fields
	}
	return remote
}
