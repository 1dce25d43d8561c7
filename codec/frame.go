package codec

import (
	"errors"
	"fmt"

	"bridge-rpc/message"
)

var ErrUnknownCodec = errors.New("codec: unknown codec type")

// Marshal encodes msg with c into a frame whose first byte is c's type, so the receiver
// can decode every frame with the codec that produced it.
//
//	┌──────────┬──────────────────┐
//	│codecType │  c.Encode(msg)   │
//	└──────────┴──────────────────┘
func Marshal(c Codec, msg *message.Message) ([]byte, error) {
	body, err := c.Encode(msg)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, 1+len(body))
	frame = append(frame, byte(c.Type()))
	return append(frame, body...), nil
}

// Unmarshal decodes a frame built by Marshal and reports which codec it named.
func Unmarshal(frame []byte, msg *message.Message) (CodecType, error) {
	if len(frame) == 0 {
		return 0, ErrShortBuffer
	}
	ct := CodecType(frame[0])
	var c Codec
	switch ct {
	case CodecTypeJSON:
		c = &JSONCodec{}
	case CodecTypeBinary:
		c = &BinaryCodec{}
	default:
		return ct, fmt.Errorf("%w: %d", ErrUnknownCodec, frame[0])
	}
	return ct, c.Decode(frame[1:], msg)
}
