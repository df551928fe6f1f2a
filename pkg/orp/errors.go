package orp

import "errors"

// Codec-layer errors. These surface to the caller as a
// decode-failed condition; the offending packet is discarded.
var (
	ErrUnknownPacketType = errors.New("orp: unknown packet-type letter")
	ErrUnknownDataType   = errors.New("orp: unknown data-type letter")
	ErrUnknownField      = errors.New("orp: unknown variable-field identifier")
	ErrMalformedTime     = errors.New("orp: malformed timestamp")
	ErrMissingField      = errors.New("orp: required field absent")
	ErrShortPacket       = errors.New("orp: packet shorter than the fixed header")
	ErrFieldTooLong      = errors.New("orp: field exceeds its maximum wire length")
)
