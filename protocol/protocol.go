// Package protocol implements the frame format used by stream channels.
//
// A byte stream has no message boundaries, so every encoded message travels as a
// fixed-size 9-byte header followed by a variable-length body. The receiver reads the
// header first to learn the body length, then reads exactly that many bytes.
//
// Frame format:
//
//	0      3  4  5         9
//	┌──────┬──┬──┬─────────┬───────────────┐
//	│magic │v │ft│ bodyLen │    body ...    │
//	│ brp  │01│  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴─────────┴───────────────┘
//
// The body is opaque here. Sessions put a codec frame in it (see codec.Marshal), whose
// first byte names the codec, so each side decodes with whatever the sender used.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic number bytes: "brp" (bridge rpc protocol).
// Rejects peers that are not speaking the protocol (e.g., HTTP clients hitting the wrong port).
const (
	MagicNumber byte = 0x62 // 'b'
	MagicByte2  byte = 0x72 // 'r'
	MagicByte3  byte = 0x70 // 'p'
	Version     byte = 0x01
	HeaderSize  int  = 9 // 3 (magic) + 1 (version) + 1 (frameType) + 4 (bodyLen)

	// MaxBodySize bounds the allocation a single header can trigger.
	MaxBodySize uint32 = 16 << 20
)

var (
	ErrInvalidMagic = errors.New("protocol: invalid magic number")
	ErrBodyTooLarge = errors.New("protocol: body too large")
)

// FrameType distinguishes message frames from heartbeats.
type FrameType byte

const (
	FrameTypeMessage   FrameType = 0 // carries one encoded message
	FrameTypeHeartbeat FrameType = 1 // keepalive, no body
)

// Header represents the fixed 9-byte frame header.
type Header struct {
	FrameType FrameType
	BodyLen   uint32
}

// Encode writes a complete frame (header + body) to w in a single Write.
// Callers sharing w across goroutines must still serialize calls, a short write
// would otherwise leave the stream corrupted for everyone.
func Encode(w io.Writer, ft FrameType, body []byte) error {
	if uint64(len(body)) > uint64(MaxBodySize) {
		return fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(body))
	}

	buf := make([]byte, HeaderSize, HeaderSize+len(body))
	buf[0], buf[1], buf[2] = MagicNumber, MagicByte2, MagicByte3
	buf[3] = Version
	buf[4] = byte(ft)
	binary.BigEndian.PutUint32(buf[5:9], uint32(len(body)))
	buf = append(buf, body...)

	_, err := w.Write(buf)
	return err
}

// Decode reads a complete frame (header + body) from r.
// It validates the magic number, version, frame type and body length.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("%w: %x", ErrInvalidMagic, headerBuf[0:3])
	}

	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("protocol: unsupported version: %d", headerBuf[3])
	}

	ft := FrameType(headerBuf[4])
	if ft != FrameTypeMessage && ft != FrameTypeHeartbeat {
		return nil, nil, fmt.Errorf("protocol: unsupported frame type: %d", ft)
	}

	bodyLen := binary.BigEndian.Uint32(headerBuf[5:9])
	if bodyLen > MaxBodySize {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}

	return &Header{FrameType: ft, BodyLen: bodyLen}, body, nil
}
