package bifurcate

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestReaderSource_PeekConsume(t *testing.T) {
	src := NewReaderSource(strings.NewReader("abcdef"), false)

	view, _, err := src.Peek()
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if string(view) != "abcdef" {
		t.Fatalf("First view = %q, want \"abcdef\"", view)
	}

	src.Consume(2)
	view, _, err = src.Peek()
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if string(view) != "cdef" {
		t.Errorf("View after Consume(2) = %q, want \"cdef\"", view)
	}
}

func TestReaderSource_ExamineKeepsPrefix(t *testing.T) {
	src := NewReaderSource(&chunkReader{rest: []byte("abcdef"), chunk: 2}, false)

	view, _, err := src.Peek()
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if string(view) != "ab" {
		t.Fatalf("First view = %q, want \"ab\"", view)
	}

	// Examined but not consumed: the next peek returns the same prefix plus
	// newly arrived bytes.
	src.Examine(len(view))
	view, _, err = src.Peek()
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if string(view) != "abcd" {
		t.Errorf("Second view = %q, want \"abcd\"", view)
	}
}

func TestReaderSource_RoundTripPastInitialWindow(t *testing.T) {
	payload := bytes.Repeat([]byte{'q'}, 100*1024)
	src := NewReaderSource(bytes.NewReader(payload), false)

	var got []byte
	for {
		view, completed, err := src.Peek()
		if err != nil {
			t.Fatalf("Peek failed: %v", err)
		}
		if len(view) == 0 && completed {
			break
		}
		if len(view) == 0 {
			src.Examine(0)
			continue
		}
		got = append(got, view...)
		src.Consume(len(view))
	}

	if !bytes.Equal(got, payload) {
		t.Errorf("Round-trip mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestReaderSource_ReadError(t *testing.T) {
	readErr := errors.New("disk gone")
	src := NewReaderSource(io.MultiReader(strings.NewReader("ok"), errReader{readErr}), false)

	view, _, err := src.Peek()
	if err != nil || string(view) != "ok" {
		t.Fatalf("First peek = (%q, %v)", view, err)
	}
	src.Consume(2)

	if _, _, err := src.Peek(); !errors.Is(err, readErr) {
		t.Errorf("Peek error = %v, want wrapped read error", err)
	}
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

func TestReaderSource_LeaveOpen(t *testing.T) {
	t.Run("closes underlying by default", func(t *testing.T) {
		tracker := &closeTracker{Reader: strings.NewReader("x")}
		src := NewReaderSource(tracker, false)
		if err := src.Close(nil); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if !tracker.closed {
			t.Error("Underlying reader not closed")
		}
	})

	t.Run("leaveOpen keeps underlying open", func(t *testing.T) {
		tracker := &closeTracker{Reader: strings.NewReader("x")}
		src := NewReaderSource(tracker, true)
		if err := src.Close(nil); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if tracker.closed {
			t.Error("Underlying reader closed despite leaveOpen")
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		src := NewReaderSource(strings.NewReader("x"), false)
		if err := src.Close(nil); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := src.Close(errors.New("later")); err != nil {
			t.Errorf("Second close returned %v", err)
		}
	})
}

func TestBytesSource(t *testing.T) {
	src := NewBytesSource([]byte("Test Value"))

	view, completed, err := src.Peek()
	if err != nil || !completed {
		t.Fatalf("Peek = (%q, %v, %v)", view, completed, err)
	}
	if string(view) != "Test Value" {
		t.Errorf("View = %q", view)
	}

	src.Consume(5)
	view, _, _ = src.Peek()
	if string(view) != "Value" {
		t.Errorf("View after consume = %q", view)
	}

	if err := src.Close(nil); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
