// Package wire implements the length-prefixed JSON framing codec used by
// every TCP connection in the match, and the message payloads exchanged
// over it.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// MaxFrameBytes bounds a single frame's JSON payload. Prefixes outside
// (0, MaxFrameBytes] are treated as framing errors and close the
// connection.
const MaxFrameBytes = 1_000_000

// ErrEndOfStream indicates the peer closed the connection cleanly (or
// mid-frame) rather than sending malformed data. The session loop treats
// this the same as any other disconnect.
var ErrEndOfStream = errors.New("wire: end of stream")

// ErrBadLength indicates a frame length prefix of 0 or > MaxFrameBytes.
var ErrBadLength = errors.New("wire: invalid frame length")

// ReadFrame reads one length-prefixed JSON frame from r and unmarshals it
// into v. A short read anywhere — including within the 4-byte length
// prefix — surfaces as ErrEndOfStream. A bad length prefix surfaces as
// ErrBadLength. JSON parse errors are returned as-is so the caller can
// log them before disconnecting (fail-closed per spec §4.5/§7).
func ReadFrame(r io.Reader, v interface{}) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return errors.Wrap(ErrEndOfStream, err.Error())
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 || n > MaxFrameBytes {
		return errors.Wrapf(ErrBadLength, "length=%d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return errors.Wrap(ErrEndOfStream, err.Error())
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return fmt.Errorf("wire: invalid JSON frame: %w", err)
	}
	return nil
}

// WriteFrame marshals v to JSON and writes it as one length-prefixed
// frame to w.
func WriteFrame(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "wire: marshaling frame")
	}
	if len(data) == 0 || len(data) > MaxFrameBytes {
		return errors.Wrapf(ErrBadLength, "length=%d", len(data))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
