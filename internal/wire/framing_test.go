package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := JoinMsg{Type: "join", Team: 3}
	if err := WriteFrame(&buf, msg); err != nil {
		t.Fatalf("WriteFrame error: %v", err)
	}
	var got JoinMsg
	if err := ReadFrame(&buf, &got); err != nil {
		t.Fatalf("ReadFrame error: %v", err)
	}
	if got != msg {
		t.Fatalf("round trip = %+v, want %+v", got, msg)
	}
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 0)
	buf.Write(hdr[:])
	var v map[string]interface{}
	err := ReadFrame(&buf, &v)
	if !errors.Is(err, ErrBadLength) {
		t.Fatalf("ReadFrame with zero length: err = %v, want ErrBadLength", err)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], MaxFrameBytes+1)
	buf.Write(hdr[:])
	var v map[string]interface{}
	err := ReadFrame(&buf, &v)
	if !errors.Is(err, ErrBadLength) {
		t.Fatalf("ReadFrame with oversized length: err = %v, want ErrBadLength", err)
	}
}

func TestReadFrameShortReadIsEndOfStream(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 10)
	buf.Write(hdr[:])
	buf.WriteString("short") // fewer than the declared 10 bytes, then EOF

	var v map[string]interface{}
	err := ReadFrame(&buf, &v)
	if !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("ReadFrame on truncated body: err = %v, want ErrEndOfStream", err)
	}
}

func TestReadFrameShortHeaderIsEndOfStream(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0})
	var v map[string]interface{}
	err := ReadFrame(&buf, &v)
	if !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("ReadFrame on truncated header: err = %v, want ErrEndOfStream", err)
	}
}

func TestReadFrameBadJSON(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	bad := []byte("{not json")
	binary.BigEndian.PutUint32(hdr[:], uint32(len(bad)))
	buf.Write(hdr[:])
	buf.Write(bad)

	var v map[string]interface{}
	err := ReadFrame(&buf, &v)
	if err == nil {
		t.Fatal("expected a JSON parse error")
	}
	if errors.Is(err, ErrEndOfStream) || errors.Is(err, ErrBadLength) {
		t.Fatalf("bad JSON should not be classified as framing error, got %v", err)
	}
}
