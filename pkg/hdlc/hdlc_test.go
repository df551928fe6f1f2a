package hdlc

import (
	"bytes"
	"testing"
)

func encodeFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	return Frame(nil, payload)
}

func decodeWhole(t *testing.T, frame []byte) ([]byte, error) {
	t.Helper()
	d := NewDecoder()
	dest := make([]byte, 4096)
	var out []byte
	total := 0
	for total < len(frame) {
		consumed, emitted, err := d.Unpack(dest, frame[total:])
		out = append(out, dest[:emitted]...)
		total += consumed
		if err != nil {
			return out, err
		}
		if d.Done() {
			break
		}
		if consumed == 0 && emitted == 0 {
			// avoid infinite loop on malformed test input
			break
		}
	}
	return out, nil
}

func TestRoundTripNoEscapesNeeded(t *testing.T) {
	payload := []byte("hello world, this payload has no special bytes in it")
	frame := encodeFrame(t, payload)
	got, err := decodeWhole(t, frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestRoundTripWithEscapes(t *testing.T) {
	payload := []byte{0x00, Flag, 0x01, Esc, 0x02, Flag, Esc, Esc, Flag, 0xFF}
	frame := encodeFrame(t, payload)
	got, err := decodeWhole(t, frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %x, want %x", got, payload)
	}
}

func TestRoundTripEmptyPayload(t *testing.T) {
	frame := encodeFrame(t, nil)
	got, err := decodeWhole(t, frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %x, want empty", got)
	}
}

// Chunking invariance: feeding a frame one byte at a time must yield
// the same output and terminal state as feeding it whole.
func TestChunkingInvarianceSingleByte(t *testing.T) {
	payload := []byte("push numeric payload with a flag \x7e and an esc \x7d inside")
	frame := encodeFrame(t, payload)

	d := NewDecoder()
	dest := make([]byte, 4096)
	var out []byte
	for i := 0; i < len(frame); i++ {
		consumed, emitted, err := d.Unpack(dest, frame[i:i+1])
		if err != nil {
			t.Fatalf("byte %d: unexpected error %v", i, err)
		}
		out = append(out, dest[:emitted]...)
		if consumed != 1 && !(i == len(frame)-1 && consumed == 0) {
			t.Fatalf("byte %d: consumed=%d, want 1 (or 0 on trailing flag)", i, consumed)
		}
	}
	if !d.Done() {
		t.Fatalf("decoder never reported Done after feeding whole frame byte by byte")
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("got %q, want %q", out, payload)
	}
}

func TestChunkingInvarianceArbitrarySplits(t *testing.T) {
	payload := []byte{0x10, 0x20, Flag, Esc, 0x30, 0x40, 0x7E, 0x7D, 0x00}
	frame := encodeFrame(t, payload)

	splits := [][]int{
		{len(frame)},
		{1, len(frame) - 1},
		{3, 3, len(frame) - 6},
		{len(frame) - 1, 1},
	}

	for _, split := range splits {
		d := NewDecoder()
		dest := make([]byte, 4096)
		var out []byte
		pos := 0
		for _, n := range split {
			end := pos + n
			if end > len(frame) {
				end = len(frame)
			}
			chunk := frame[pos:end]
			for len(chunk) > 0 {
				consumed, emitted, err := d.Unpack(dest, chunk)
				if err != nil {
					t.Fatalf("split %v: unexpected error %v", split, err)
				}
				out = append(out, dest[:emitted]...)
				chunk = chunk[consumed:]
				if consumed == 0 {
					break
				}
			}
			pos = end
		}
		if !bytes.Equal(out, payload) {
			t.Fatalf("split %v: got %x, want %x", split, out, payload)
		}
	}
}

func TestCRCMismatchIsRecoveredLocally(t *testing.T) {
	payload := []byte("a valid payload")
	frame := encodeFrame(t, payload)

	// Flip a bit in the middle of the frame (inside the escaped payload
	// region, past the leading flag).
	corrupt := append([]byte(nil), frame...)
	corrupt[3] ^= 0x01

	d := NewDecoder()
	dest := make([]byte, 4096)
	_, _, err := d.Unpack(dest, corrupt)
	if err != ErrCRCMismatch && err != ErrFraming {
		t.Fatalf("expected a CRC mismatch or framing error on corrupted frame, got %v", err)
	}

	// The decoder must recover and decode a subsequent valid frame in
	// the same stream correctly.
	good := encodeFrame(t, []byte("a second, valid payload"))
	dest2 := make([]byte, 4096)
	var out []byte
	total := 0
	for total < len(good) {
		consumed, emitted, err2 := d.Unpack(dest2, good[total:])
		out = append(out, dest2[:emitted]...)
		total += consumed
		if err2 != nil {
			t.Fatalf("unexpected error decoding recovery frame: %v", err2)
		}
		if d.Done() {
			break
		}
	}
	if string(out) != "a second, valid payload" {
		t.Fatalf("recovery frame decoded as %q", out)
	}
}

func TestIllegalEscapeIsFramingError(t *testing.T) {
	// Hand-craft a frame with ESC immediately followed by FLAG, which
	// is illegal per the ESCAPED state transition table.
	raw := []byte{Flag, 0x01, Esc, Flag}
	d := NewDecoder()
	dest := make([]byte, 16)
	_, _, err := d.Unpack(dest, raw)
	if err != ErrFraming {
		t.Fatalf("got err=%v, want ErrFraming", err)
	}
}

func TestDestBufferFillStopsMidFrame(t *testing.T) {
	payload := []byte("0123456789")
	frame := encodeFrame(t, payload)

	d := NewDecoder()
	small := make([]byte, 4)
	consumed, emitted, err := d.Unpack(small, frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emitted != 4 {
		t.Fatalf("emitted=%d, want 4 (dest capacity)", emitted)
	}
	if consumed >= len(frame) {
		t.Fatalf("consumed the whole frame despite a full dest buffer")
	}
	if d.Done() {
		t.Fatalf("decoder incorrectly reports Done with a full dest buffer mid-frame")
	}

	// Feed the remainder into a fresh, larger buffer and confirm the
	// rest of the payload comes out correctly.
	rest := make([]byte, 64)
	c2, e2, err := d.Unpack(rest, frame[consumed:])
	if err != nil {
		t.Fatalf("unexpected error resuming decode: %v", err)
	}
	_ = c2
	got := append(append([]byte{}, small[:emitted]...), rest[:e2]...)
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}
