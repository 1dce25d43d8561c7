package codec

import (
	"encoding/json"

	"bridge-rpc/message"
)

// JSONCodec produces the canonical wire shape, e.g. {"type":"call","id":0,"name":"ping","data":[]}.
// It is the only encoding a peer written against the plain message format understands.
type JSONCodec struct{}

func (c *JSONCodec) Encode(msg *message.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *JSONCodec) Decode(data []byte, msg *message.Message) error {
	return json.Unmarshal(data, msg)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
