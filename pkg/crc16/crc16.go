// Package crc16 computes the CRC-16/CCITT-FALSE checksum ORP's HDLC
// trailer carries (polynomial 0x1021, initial value 0xFFFF, no
// reflection, no final XOR), built on multicrc rather than a
// hand-rolled table.
package crc16

import "github.com/BertoldVdb/go-misc/multicrc"

// Params selects the CRC-16/CCITT-FALSE variant.
var Params = multicrc.Crc16CCITTFalse

// Accumulator folds bytes into a running CRC one at a time, the shape
// pkg/hdlc's streaming state machine needs since it escapes and
// windows a frame byte by byte rather than all at once.
type Accumulator struct {
	crc *multicrc.CRC
}

// New returns an Accumulator seeded to the algorithm's initial value.
func New() Accumulator {
	return Accumulator{crc: multicrc.NewCRC(Params)}
}

// Update folds one byte into the running CRC.
func (a Accumulator) Update(b byte) {
	a.crc.AddBytes([]byte{b})
}

// Value returns the CRC accumulated so far.
func (a Accumulator) Value() uint16 {
	return a.crc.Result16()
}

// Checksum computes the CRC-16/CCITT-FALSE of data in one call. It is
// a convenience wrapper for callers that don't need to straddle the
// computation across I/O chunks.
func Checksum(data []byte) uint16 {
	return multicrc.NewCRC(Params).AddBytes(data).Result16()
}
