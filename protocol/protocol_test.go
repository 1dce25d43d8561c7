package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	body := []byte(`{"type":"call","name":"ping","data":[]}`)

	var buf bytes.Buffer
	if err := Encode(&buf, FrameTypeMessage, body); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf.Len() != HeaderSize+len(body) {
		t.Fatalf("unexpected frame size %d", buf.Len())
	}

	header, decodedBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if header.FrameType != FrameTypeMessage {
		t.Errorf("FrameType mismatch: got %d, want %d", header.FrameType, FrameTypeMessage)
	}
	if header.BodyLen != uint32(len(body)) {
		t.Errorf("BodyLen mismatch: got %d, want %d", header.BodyLen, len(body))
	}
	if !bytes.Equal(decodedBody, body) {
		t.Errorf("Body mismatch: got %s, want %s", decodedBody, body)
	}
}

func TestDecodeConsecutiveFrames(t *testing.T) {
	var buf bytes.Buffer
	frames := [][]byte{[]byte("one"), nil, []byte("three")}
	for _, f := range frames {
		ft := FrameTypeMessage
		if f == nil {
			ft = FrameTypeHeartbeat
		}
		if err := Encode(&buf, ft, f); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}

	for i, want := range frames {
		_, got, err := Decode(&buf)
		if err != nil {
			t.Fatalf("frame %d: Decode failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("frame %d: got %q, want %q", i, got, want)
		}
	}
	if _, _, err := Decode(&buf); err != io.EOF {
		t.Fatalf("expect io.EOF after last frame, got %v", err)
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, Version, byte(FrameTypeMessage), 0, 0, 0, 5})
	buf.Write([]byte("hello"))

	_, _, err := Decode(&buf)
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expect ErrInvalidMagic, got %v", err)
	}
}

func TestDecodeInvalidVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{MagicNumber, MagicByte2, MagicByte3, 0xFF, byte(FrameTypeMessage), 0, 0, 0, 0})

	_, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("expect error for unsupported version")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("unsupported version")) {
		t.Errorf("error should mention 'unsupported version', got: %v", err)
	}
}

func TestDecodeHeartbeat(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, FrameTypeHeartbeat, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	header, body, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if header.FrameType != FrameTypeHeartbeat || header.BodyLen != 0 || len(body) != 0 {
		t.Fatalf("unexpected heartbeat frame: %+v body=%d", header, len(body))
	}
}

func TestDecodeBodyTooLarge(t *testing.T) {
	frame := []byte{MagicNumber, MagicByte2, MagicByte3, Version, byte(FrameTypeMessage), 0, 0, 0, 0}
	binary.BigEndian.PutUint32(frame[5:9], MaxBodySize+1)

	_, _, err := Decode(bytes.NewReader(frame))
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expect ErrBodyTooLarge, got %v", err)
	}
}

func TestDecodeLargeBody(t *testing.T) {
	var buf bytes.Buffer

	largeBody := make([]byte, 1024*1024)
	for i := range largeBody {
		largeBody[i] = byte(i % 256)
	}

	if err := Encode(&buf, FrameTypeMessage, largeBody); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	_, decodedBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decodedBody, largeBody) {
		t.Errorf("large body mismatch")
	}
}
