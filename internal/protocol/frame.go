// Package protocol implements the wire framing, message envelope and
// dispatch-table shape shared by the lobby and developer endpoints (spec
// §4.1). Every frame is a 4-byte big-endian length prefix followed by a UTF-8
// JSON object carrying a "type" discriminator.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxFrameBytes bounds a single frame body to guard against a corrupt or
// hostile length prefix exhausting memory.
const MaxFrameBytes = 64 * 1024 * 1024

// ErrConnectionClosed is returned by ReadFrame when the peer closed the
// connection cleanly between frames (EOF on the length header).
var ErrConnectionClosed = errors.New("protocol: connection closed")

// Envelope is the generic shape of every frame: a message kind plus
// kind-specific fields carried as raw JSON so handlers can decode exactly
// the fields they expect.
type Envelope struct {
	Type   string
	Fields map[string]json.RawMessage
}

// Get decodes the named field into out, or returns an error if the field
// is absent.
func (e Envelope) Get(key string, out any) error {
	raw, ok := e.Fields[key]
	if !ok {
		return fmt.Errorf("protocol: missing field %q", key)
	}
	return json.Unmarshal(raw, out)
}

// Has reports whether a field is present in the envelope.
func (e Envelope) Has(key string) bool {
	_, ok := e.Fields[key]
	return ok
}

// ReadFrame blocks until a full frame has been read from r. It returns
// ErrConnectionClosed itself when the peer closed cleanly between frames,
// and an error wrapping ErrConnectionClosed for any other failure reading
// the header or body, including EOF mid-header or mid-body (spec §4.1).
func ReadFrame(r io.Reader) (*Envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrConnectionClosed
		}
		return nil, fmt.Errorf("protocol: read header: %w", ErrConnectionClosed)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameBytes {
		return nil, fmt.Errorf("protocol: frame of %d bytes exceeds limit", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("protocol: read body: %w", ErrConnectionClosed)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("protocol: invalid JSON frame: %w", err)
	}

	var kind string
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &kind); err != nil {
			return nil, fmt.Errorf("protocol: invalid \"type\" field: %w", err)
		}
	}

	return &Envelope{Type: kind, Fields: fields}, nil
}

// WriteFrame marshals payload to JSON, stamps its "type" field, and writes
// the length-prefixed frame to w in a single call so partial writes can't
// interleave across goroutines sharing the same connection.
func WriteFrame(w io.Writer, kind string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["type"] = kind

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("protocol: marshal %s frame: %w", kind, err)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))

	frame := make([]byte, 0, 4+len(body))
	frame = append(frame, header[:]...)
	frame = append(frame, body...)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("protocol: write %s frame: %w", kind, err)
	}
	return nil
}
