package crc16

import "testing"

// bitwiseReference recomputes CRC-16/CCITT-FALSE directly from the
// textbook definition, to cross-check multicrc's result independently
// of how that library computes it internally.
func bitwiseReference(data []byte) uint16 {
	const poly = 0x1021
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func TestChecksumMatchesBitwiseReference(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x00},
		{0xFF},
		[]byte("123456789"),
		[]byte{'P', 'N', 0x00, 0x00, 'T', '1', '5', '4', '1', '1', '1', '2', '8', '6', '1', '.', '0'},
	}
	for _, c := range cases {
		got := Checksum(c)
		want := bitwiseReference(c)
		if got != want {
			t.Errorf("Checksum(%x) = %#04x, bitwise reference = %#04x", c, got, want)
		}
	}
}

// "123456789" is the standard CRC-16/CCITT-FALSE check string and
// must hash to 0x29B1 under init 0xFFFF, poly 0x1021, no final xor.
func TestKnownAnswerCheckString(t *testing.T) {
	got := Checksum([]byte("123456789"))
	if got != 0x29B1 {
		t.Fatalf("Checksum(123456789) = %#04x, want 0x29b1", got)
	}
}

func TestAccumulatorIsIncremental(t *testing.T) {
	data := []byte("the quick brown fox")
	whole := Checksum(data)

	acc := New()
	for _, b := range data[:7] {
		acc.Update(b)
	}
	for _, b := range data[7:] {
		acc.Update(b)
	}
	if got := acc.Value(); got != whole {
		t.Fatalf("incremental Accumulator = %#04x, want %#04x", got, whole)
	}
}
