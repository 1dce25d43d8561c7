package message

import (
	"encoding/json"
	"fmt"
)

// Args is the ordered argument list of a call, each element kept in its encoded form
// until a handler binds it to concrete types.
type Args []json.RawMessage

// NewArgs encodes values into an argument list.
func NewArgs(values ...any) (Args, error) {
	args := make(Args, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("message: encode argument %d: %w", i, err)
		}
		args[i] = b
	}
	return args, nil
}

// Bind decodes the arguments positionally into dst. Extra arguments are ignored,
// missing ones leave the corresponding destination untouched. A nil destination skips
// that position.
func (a Args) Bind(dst ...any) error {
	for i, d := range dst {
		if d == nil || i >= len(a) {
			continue
		}
		if err := json.Unmarshal(a[i], d); err != nil {
			return fmt.Errorf("message: decode argument %d: %w", i, err)
		}
	}
	return nil
}
