package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"bridge-rpc/message"
)

var ErrShortBuffer = errors.New("codec: short buffer")

var kindCodes = map[message.Kind]byte{
	message.KindCall:     1,
	message.KindResponse: 2,
	message.KindError:    3,
	message.KindConnect:  4,
}

var codeKinds = map[byte]message.Kind{
	1: message.KindCall,
	2: message.KindResponse,
	3: message.KindError,
	4: message.KindConnect,
}

// BinaryCodec is a compact length-prefixed layout, big endian:
//
//	kind(1) | id(8) | nameLen(2) | name | dataLen(4) | data | errLen(4) | errorPayload
//
// Both sides of a channel must agree on it.
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(msg *message.Message) ([]byte, error) {
	code, ok := kindCodes[msg.Type]
	if !ok {
		return nil, fmt.Errorf("BinaryCodec: unknown message type %q", msg.Type)
	}
	if len(msg.Name) > 0xFFFF {
		return nil, fmt.Errorf("BinaryCodec: name too long (%d bytes)", len(msg.Name))
	}

	total := 1 + 8 + 2 + len(msg.Name) + 4 + len(msg.Data) + 4 + len(msg.ErrorPayload)
	buf := make([]byte, 0, total)

	buf = append(buf, code)
	buf = binary.BigEndian.AppendUint64(buf, msg.ID)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg.Name)))
	buf = append(buf, msg.Name...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.Data)))
	buf = append(buf, msg.Data...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.ErrorPayload)))
	buf = append(buf, msg.ErrorPayload...)
	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, msg *message.Message) error {
	r := reader{buf: data}

	code := r.bytes(1)
	id := r.bytes(8)
	nameLen := r.bytes(2)
	if r.err != nil {
		return r.err
	}
	name := r.bytes(int(binary.BigEndian.Uint16(nameLen)))
	dataLen := r.bytes(4)
	if r.err != nil {
		return r.err
	}
	payload := r.bytes(int(binary.BigEndian.Uint32(dataLen)))
	errLen := r.bytes(4)
	if r.err != nil {
		return r.err
	}
	errPayload := r.bytes(int(binary.BigEndian.Uint32(errLen)))
	if r.err != nil {
		return r.err
	}

	kind, ok := codeKinds[code[0]]
	if !ok {
		return fmt.Errorf("BinaryCodec: unknown message code %d", code[0])
	}

	msg.Type = kind
	msg.ID = binary.BigEndian.Uint64(id)
	msg.Name = string(name)
	msg.Data = nil
	if len(payload) > 0 {
		msg.Data = append([]byte(nil), payload...)
	}
	msg.ErrorPayload = string(errPayload)
	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = ErrShortBuffer
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}
