package orp

import (
	"strconv"
	"strings"
)

// Separator is the literal byte dividing variable-length fields.
const Separator = ','

// StatusBase is the wire offset status codes are encoded relative
// to: buf[1] = StatusBase + nonnegative status index.
const StatusBase = 0x40

const (
	maxPathLen = 79
	maxUnitLen = 23
	maxTimeLen = 17
)

// MaxDataLen bounds the Data field's wire length: the largest payload
// the protocol carries in a single packet, before HDLC framing
// overhead and escape expansion. A session's buffers size themselves
// off this constant.
const MaxDataLen = 50000

// Additional decode errors not already covered by errors.go's
// taxonomy: malformed base-36 nibbles and malformed decimal counter
// fields.
var (
	ErrMalformedEnum  = errUnexported("orp: malformed version/event nibble")
	ErrMalformedField = errUnexported("orp: malformed decimal field")
)

type errUnexported string

func (e errUnexported) Error() string { return string(e) }

// Encode serializes msg into dst, appending the fixed header and any
// required/present variable fields per the packet-type table. maxLen
// bounds the total length of the returned packet; if msg.Data would
// overflow that bound, Data is truncated to fit (Data is always the
// last field, so truncating it never corrupts earlier fields) and
// dataWritten reports how many Data bytes actually went out. The
// caller continues a multi-packet transfer with
// msg.Data = msg.Data[dataWritten:] on the next Encode call.
func Encode(dst []byte, msg Message, maxLen int) (out []byte, dataWritten int, err error) {
	info, ok := packetTable[msg.Type]
	if !ok {
		return dst, 0, ErrUnknownPacketType
	}

	if info.required&FieldPath != 0 && msg.Path == "" {
		return dst, 0, ErrMissingField
	}
	if info.required&FieldTime != 0 && msg.Timestamp == -1 {
		return dst, 0, ErrMissingField
	}
	if info.required&FieldData != 0 && msg.Data == nil {
		return dst, 0, ErrMissingField
	}
	if len(msg.Path) > maxPathLen || len(msg.Unit) > maxUnitLen {
		return dst, 0, ErrFieldTooLong
	}

	var byte1 byte
	switch {
	case info.required&FieldStatus != 0:
		byte1 = statusByte(msg.Status)
	case info.required&FieldDataType != 0:
		b, ok := dataTypeLetters[msg.DataType]
		if !ok {
			return dst, 0, ErrUnknownDataType
		}
		byte1 = b
	case info.required&FieldVersion != 0:
		byte1 = base36Encode(uint8(msg.Version))
	case info.required&FieldEvent != 0:
		byte1 = base36Encode(uint8(msg.Event))
	default:
		byte1 = 0x00
	}

	out = dst
	out = append(out, info.wire, byte1, byte(msg.SequenceNum), byte(msg.SequenceNum>>8))

	fieldsStart := len(out)
	appendField := func(id byte, content string) {
		if len(out) > fieldsStart {
			out = append(out, Separator)
		}
		out = append(out, id)
		out = append(out, content...)
	}

	if msg.Timestamp != -1 {
		appendField('T', formatTimestamp(msg.Timestamp))
	}
	if msg.Path != "" {
		appendField('P', msg.Path)
	}
	if msg.Unit != "" {
		appendField('U', msg.Unit)
	}

	if info.required&FieldVersion != 0 && msg.Version == V2 {
		if msg.MTU >= 0 {
			appendField('M', strconv.Itoa(msg.MTU))
		}
		if msg.SentCount >= 0 {
			appendField('S', strconv.Itoa(msg.SentCount))
		}
		if msg.ReceivedCount >= 0 {
			appendField('R', strconv.Itoa(msg.ReceivedCount))
		}
	}

	// data must be emitted last: its payload may contain the
	// separator byte, so nothing can follow it.
	wantsData := msg.Data != nil
	if wantsData {
		if len(out) > fieldsStart {
			out = append(out, Separator)
		}
		out = append(out, 'D')
	}

	if !wantsData {
		return out, 0, nil
	}

	if len(out) > maxLen {
		return out, 0, ErrFieldTooLong
	}
	dataSpace := maxLen - len(out)
	data := msg.Data
	if dataSpace < len(data) {
		data = data[:dataSpace]
	}
	if len(data) > MaxDataLen {
		data = data[:MaxDataLen]
	}
	out = append(out, data...)
	return out, len(data), nil
}

// formatTimestamp renders a full-resolution decimal seconds value,
// always carrying a decimal point even for exact integer timestamps.
func formatTimestamp(ts float64) string {
	s := strconv.FormatFloat(ts, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func readUntilComma(buf []byte, i int) (value []byte, next int) {
	start := i
	for i < len(buf) && buf[i] != Separator {
		i++
	}
	value = buf[start:i]
	if i < len(buf) {
		i++
	}
	return value, i
}

// Decode parses a fully deframed ORP packet. Data, if present,
// aliases src directly rather than being copied — valid only until
// the caller reuses the receive buffer src was drawn from. Path and
// Unit are returned as ordinary (copied) Go strings, since Go's
// immutable string type has no aliasing hazard to preserve.
func Decode(src []byte) (Message, error) {
	if len(src) < 4 {
		return Message{}, ErrShortPacket
	}
	t, ok := lookupByWire(src[0])
	if !ok {
		return Message{}, ErrUnknownPacketType
	}
	info := packetTable[t]
	msg := NewMessage(t)
	msg.SequenceNum = uint16(src[2]) | uint16(src[3])<<8

	byte1 := src[1]
	switch {
	case info.required&FieldStatus != 0:
		msg.Status = statusFromByte(byte1)
	case info.required&FieldDataType != 0:
		dt, ok := lettersToDataType[byte1]
		if !ok {
			return Message{}, ErrUnknownDataType
		}
		msg.DataType = dt
	case info.required&FieldVersion != 0:
		v, ok := base36Decode(byte1)
		if !ok {
			return Message{}, ErrMalformedEnum
		}
		msg.Version = Version(v)
	case info.required&FieldEvent != 0:
		v, ok := base36Decode(byte1)
		if !ok {
			return Message{}, ErrMalformedEnum
		}
		msg.Event = Event(v)
	}

	rest := src[4:]
	var timestampStr []byte
	haveTimestamp, havePath, haveData := false, false, false

	i := 0
	for i < len(rest) {
		id := rest[i]
		i++
		var v []byte
		switch id {
		case 'P':
			v, i = readUntilComma(rest, i)
			if len(v) > maxPathLen {
				return Message{}, ErrFieldTooLong
			}
			msg.Path = string(v)
			havePath = true
		case 'U':
			v, i = readUntilComma(rest, i)
			if len(v) > maxUnitLen {
				return Message{}, ErrFieldTooLong
			}
			msg.Unit = string(v)
		case 'T':
			v, i = readUntilComma(rest, i)
			timestampStr = v
			haveTimestamp = true
		case 'D':
			msg.Data = rest[i:]
			haveData = true
			i = len(rest)
		case 'R':
			v, i = readUntilComma(rest, i)
			n, err := strconv.Atoi(string(v))
			if err != nil {
				return Message{}, ErrMalformedField
			}
			msg.ReceivedCount = n
		case 'S':
			v, i = readUntilComma(rest, i)
			n, err := strconv.Atoi(string(v))
			if err != nil {
				return Message{}, ErrMalformedField
			}
			msg.SentCount = n
		case 'M':
			v, i = readUntilComma(rest, i)
			n, err := strconv.Atoi(string(v))
			if err != nil {
				return Message{}, ErrMalformedField
			}
			msg.MTU = n
		default:
			return Message{}, ErrUnknownField
		}
	}

	if haveTimestamp {
		f, err := parseTimestamp(timestampStr)
		if err != nil {
			return Message{}, err
		}
		msg.Timestamp = f
	}

	if info.required&FieldPath != 0 && !havePath {
		return Message{}, ErrMissingField
	}
	if info.required&FieldTime != 0 && !haveTimestamp {
		return Message{}, ErrMissingField
	}
	if info.required&FieldData != 0 && !haveData {
		return Message{}, ErrMissingField
	}

	return msg, nil
}

// parseTimestamp validates and parses a timestamp field: digits plus
// at most one '.', length capped at 17 characters (10-digit integer
// part, a dot, and a 6-digit fractional part). Validity is checked
// here, after the scan, not inline with scanning.
func parseTimestamp(raw []byte) (float64, error) {
	if len(raw) == 0 || len(raw) > maxTimeLen {
		return 0, ErrMalformedTime
	}
	dots := 0
	for _, c := range raw {
		if c == '.' {
			dots++
			continue
		}
		if c < '0' || c > '9' {
			return 0, ErrMalformedTime
		}
	}
	if dots > 1 {
		return 0, ErrMalformedTime
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, ErrMalformedTime
	}
	return f, nil
}
