// Package codec turns messages into the opaque frames a channel carries and back.
package codec

import (
	"fmt"

	"bridge-rpc/message"
)

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

type Codec interface {
	Encode(msg *message.Message) ([]byte, error)
	Decode(data []byte, msg *message.Message) error
	Type() CodecType // 0=JSON, 1=Binary
}

// GetCodec returns the codec for codecType, falling back to JSON for unknown types.
func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeBinary {
		return &BinaryCodec{}
	}
	return &JSONCodec{}
}

// ParseCodecType maps a flag value ("json" or "binary") to a CodecType.
func ParseCodecType(s string) (CodecType, error) {
	switch s {
	case "json", "":
		return CodecTypeJSON, nil
	case "binary":
		return CodecTypeBinary, nil
	default:
		return 0, fmt.Errorf("codec: unknown codec %q", s)
	}
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeBinary:
		return "binary"
	default:
		return fmt.Sprintf("codec(%d)", byte(t))
	}
}
