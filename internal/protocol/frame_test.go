package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, TypeLogin, map[string]any{
		"username": "alice",
		"password": "p1",
	}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	env, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	if env.Type != TypeLogin {
		t.Fatalf("Type = %q, want %q", env.Type, TypeLogin)
	}

	var username string
	if err := env.Get("username", &username); err != nil {
		t.Fatalf("Get(username): %v", err)
	}
	if username != "alice" {
		t.Fatalf("username = %q, want alice", username)
	}
}

func TestReadFrameEmptyReaderIsConnectionClosed(t *testing.T) {
	_, err := ReadFrame(&bytes.Buffer{})
	if err != ErrConnectionClosed {
		t.Fatalf("err = %v, want ErrConnectionClosed", err)
	}
}

func TestReadFrameTruncatedBodyIsConnectionClosed(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, TypeLogin, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	truncated := bytes.NewReader(buf.Bytes()[:5])
	if _, err := ReadFrame(truncated); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("err = %v, want an error wrapping ErrConnectionClosed", err)
	}
}

func TestDispatcherIgnoresUnknownType(t *testing.T) {
	d := NewDispatcher()
	called := false
	d.Register("KNOWN", func(w io.Writer, env *Envelope) error {
		called = true
		return nil
	})
	var buf bytes.Buffer
	d.Dispatch(&buf, &Envelope{Type: "UNKNOWN"})
	if called {
		t.Fatal("handler should not run for unknown type")
	}
}
