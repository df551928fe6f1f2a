// Package atframe implements the AT+ORP alternative framer: a
// single-shot wrapper used when the transport is an AT-command modem
// channel rather than a raw HDLC-framed serial line. It carries no
// CRC and no byte escaping; its entire job is the literal
// AT+ORP="..."\n envelope plus zeroing the sequence-number bytes
// before transmission.
package atframe

import (
	"bytes"
	"errors"
)

const (
	prefix = `AT+ORP="`
	suffix = "\"\n"

	// seqLowOffset / seqHighOffset are the two sequence-number bytes
	// of an unframed ORP packet (fixed-header offsets 2 and 3), which
	// AT framing always sends as ASCII '0'.
	seqLowOffset  = 2
	seqHighOffset = 3
)

// ErrTooShort is returned by Frame when packet is too short to carry
// a sequence number, which every ORP packet must have.
var ErrTooShort = errors.New("atframe: packet shorter than the fixed header")

// Frame wraps an already-encoded ORP packet in the AT+ORP envelope.
// It does not mutate packet; it copies out the two sequence-number
// bytes as ASCII '0' before embedding the rest verbatim. No CRC and
// no escaping are applied.
func Frame(dst []byte, packet []byte) ([]byte, error) {
	if len(packet) <= seqHighOffset {
		return dst, ErrTooShort
	}
	dst = append(dst, prefix...)
	dst = append(dst, packet[:seqLowOffset]...)
	dst = append(dst, '0', '0')
	dst = append(dst, packet[seqHighOffset+1:]...)
	dst = append(dst, suffix...)
	return dst, nil
}

// Unwrap is the pass-through receive side: the AT channel hands back
// the bytes between the quotes verbatim, with no CRC or escape
// processing required. Unwrap simply strips the envelope if present,
// returning the bytes unchanged otherwise.
func Unwrap(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if bytes.HasPrefix(line, []byte(prefix)) && bytes.HasSuffix(line, []byte(`"`)) {
		return line[len(prefix) : len(line)-1]
	}
	return line
}
