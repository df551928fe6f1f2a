// Package hdlc implements the asynchronous HDLC-style byte framing
// used to carry ORP packets over a serial link: delimiter 0x7E,
// escape 0x7D, and a trailing CRC-16/CCITT over the unescaped
// payload. It streams cleanly across arbitrarily chopped reads,
// including one byte at a time.
package hdlc

import (
	"errors"

	"github.com/octave-edge/orp-client/pkg/crc16"
)

// Wire constants, per spec.
const (
	Flag    byte = 0x7E
	Esc     byte = 0x7D
	EscMask byte = 0x20
)

// MaxFrameOverhead bounds the per-frame overhead contributed by
// framing bytes: one leading flag, up to four bytes for an escaped
// two-byte CRC, and one trailing flag.
const MaxFrameOverhead = 6

// State names the decode state machine's states.
type State int

const (
	StateInit State = iota
	StateSOFSearch
	StateSOFFound
	StateData
	StateEscaped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateSOFSearch:
		return "SOF_SEARCH"
	case StateSOFFound:
		return "SOF_FOUND"
	case StateData:
		return "DATA"
	case StateEscaped:
		return "ESCAPED"
	default:
		return "UNKNOWN"
	}
}

// Errors returned by Decoder.Unpack. All are non-fatal to the
// stream: the caller should keep feeding bytes and the decoder will
// hunt for the next delimiter on its own.
var (
	ErrCRCMismatch = errors.New("hdlc: crc mismatch")
	ErrFraming     = errors.New("hdlc: illegal escape sequence or truncated frame")
	ErrUnspecified = errors.New("hdlc: nil decoder or invalid arguments")
)

// Decoder is the per-direction HDLC deframing context: decode state,
// running CRC, the two-byte trailing window used to separate the CRC
// from payload, and a processed-byte counter. It is owned
// single-threaded by whichever pipeline drives it; Reset returns it
// to a clean INIT state after a completed frame or a framing error.
type Decoder struct {
	state     State
	crc       crc16.Accumulator
	window    [2]byte
	windowLen int
	processed uint64
	done      bool
}

// NewDecoder returns a Decoder ready to hunt for the next frame.
func NewDecoder() *Decoder {
	return &Decoder{state: StateInit}
}

// Reset returns the decoder to StateInit, discarding any in-progress
// frame and clearing Done. Unpack calls it on a framing or CRC error;
// after a completed frame, Unpack only returns to StateInit and the
// caller calls Reset once it has taken the frame.
func (d *Decoder) Reset() {
	*d = Decoder{state: StateInit}
}

// Done reports whether the decoder just completed a frame on the
// most recent Unpack call (state has returned to INIT after success).
func (d *Decoder) Done() bool {
	return d != nil && d.done
}

// State returns the decoder's current state, primarily for
// diagnostics.
func (d *Decoder) State() State {
	if d == nil {
		return StateInit
	}
	return d.state
}

// Processed returns the running count of source bytes the decoder
// has consumed across its lifetime (since the last Reset).
func (d *Decoder) Processed() uint64 {
	if d == nil {
		return 0
	}
	return d.processed
}

func (d *Decoder) pushWindow(b byte) (released byte, ok bool) {
	if d.windowLen == 2 {
		released = d.window[0]
		d.window[0] = d.window[1]
		d.window[1] = b
		return released, true
	}
	d.window[d.windowLen] = b
	d.windowLen++
	return 0, false
}

// Unpack feeds src through the state machine, appending any emitted
// payload bytes to dest[:emitted]. It may consume only a prefix of
// src if dest fills before a frame completes, or if a frame
// completes mid-slice; the caller is responsible for re-presenting
// any unconsumed suffix (plus subsequently read bytes) on the next
// call. The trailing Flag byte of a completed frame is not counted
// in consumed: callers that track "bytes left in the read buffer"
// using consumed do not need a special case for it.
//
// Safe to call repeatedly across arbitrary chunk boundaries down to
// a single byte per call.
func (d *Decoder) Unpack(dest []byte, src []byte) (consumed int, emitted int, err error) {
	if d == nil {
		return 0, 0, ErrUnspecified
	}
	d.done = false

	for i := 0; i < len(src); i++ {
		b := src[i]

		if d.state == StateInit {
			d.crc = crc16.New()
			d.windowLen = 0
			d.state = StateSOFSearch
		}

		switch d.state {
		case StateSOFSearch:
			if b == Flag {
				d.state = StateSOFFound
			}
			consumed++
			d.processed++

		case StateSOFFound:
			switch {
			case b == Flag:
				// contiguous delimiter run, stay put
				consumed++
				d.processed++
			case b == Esc:
				d.state = StateEscaped
				consumed++
				d.processed++
			default:
				if d.windowLen == 2 && emitted >= len(dest) {
					return consumed, emitted, nil
				}
				d.state = StateData
				if released, ok := d.pushWindow(b); ok {
					d.crc.Update(released)
					dest[emitted] = released
					emitted++
				}
				consumed++
				d.processed++
			}

		case StateData:
			if b == Flag {
				d.processed++ // trailing flag is never counted in consumed, per §9

				if d.windowLen < 2 {
					d.Reset()
					return consumed, emitted, ErrFraming
				}
				received := uint16(d.window[1])<<8 | uint16(d.window[0])
				if received != d.crc.Value() {
					d.Reset()
					return consumed, emitted, ErrCRCMismatch
				}
				d.state = StateInit
				d.done = true
				return consumed, emitted, nil
			}
			if b == Esc {
				d.state = StateEscaped
				consumed++
				d.processed++
				continue
			}
			if d.windowLen == 2 && emitted >= len(dest) {
				return consumed, emitted, nil
			}
			if released, ok := d.pushWindow(b); ok {
				d.crc.Update(released)
				dest[emitted] = released
				emitted++
			}
			consumed++
			d.processed++

		case StateEscaped:
			if b == Flag || b == Esc {
				d.Reset()
				consumed++
				return consumed, emitted, ErrFraming
			}
			if d.windowLen == 2 && emitted >= len(dest) {
				return consumed, emitted, nil
			}
			unescaped := b ^ EscMask
			if released, ok := d.pushWindow(unescaped); ok {
				d.crc.Update(released)
				dest[emitted] = released
				emitted++
			}
			d.state = StateData
			consumed++
			d.processed++
		}
	}

	return consumed, emitted, nil
}

// Encoder is the transient, single-use HDLC framing context used on
// transmit. A fresh Encoder is created per outbound frame; unlike
// Decoder it carries no cross-call state once Finalize has run.
type Encoder struct {
	crc     crc16.Accumulator
	started bool
}

// NewEncoder returns an Encoder ready to frame one outbound packet.
func NewEncoder() *Encoder {
	return &Encoder{crc: crc16.New()}
}

// Pack escapes and CRC-accumulates src, appending the framed bytes
// (without the CRC trailer or trailing Flag) to dst and returning the
// extended slice. The first call on an Encoder also appends the
// leading Flag before the payload. Call Pack any number of times to
// stream a payload in pieces, then call Finalize once to append the
// CRC trailer and the trailing Flag.
func (e *Encoder) Pack(dst []byte, src []byte) []byte {
	if !e.started {
		dst = append(dst, Flag)
		e.started = true
	}
	for _, b := range src {
		e.crc.Update(b)
		if b == Flag || b == Esc {
			dst = append(dst, Esc, b^EscMask)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}

// Finalize appends the two-byte CRC trailer (low byte first, then
// high byte, escaped like any other payload byte) followed by the
// trailing Flag, and returns the extended slice.
// The Encoder must not be reused after Finalize.
func (e *Encoder) Finalize(dst []byte) []byte {
	if !e.started {
		dst = append(dst, Flag)
		e.started = true
	}
	value := e.crc.Value()
	lo, hi := byte(value&0xFF), byte(value>>8)
	for _, b := range []byte{lo, hi} {
		if b == Flag || b == Esc {
			dst = append(dst, Esc, b^EscMask)
		} else {
			dst = append(dst, b)
		}
	}
	return append(dst, Flag)
}

// Frame is a convenience wrapper that frames a complete payload in
// one call: equivalent to NewEncoder().Pack(dst, payload) followed by
// Finalize.
func Frame(dst []byte, payload []byte) []byte {
	e := NewEncoder()
	dst = e.Pack(dst, payload)
	return e.Finalize(dst)
}
