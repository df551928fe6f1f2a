package atframe

import "testing"

func TestFrameZeroesSequenceNumber(t *testing.T) {
	packet := []byte{'P', 'N', 0x34, 0x12, 'D', '1', '2', '3'}
	framed, err := Frame(nil, packet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `AT+ORP="PN00D123"` + "\n"
	if string(framed) != want {
		t.Fatalf("got %q, want %q", framed, want)
	}
}

func TestFrameTooShort(t *testing.T) {
	_, err := Frame(nil, []byte{'P', 'N', 0x00})
	if err != ErrTooShort {
		t.Fatalf("got err=%v, want ErrTooShort", err)
	}
}

func TestUnwrapStripsEnvelope(t *testing.T) {
	got := Unwrap([]byte(`AT+ORP="pABCD"` + "\n"))
	if string(got) != "pABCD" {
		t.Fatalf("got %q", got)
	}
}

func TestUnwrapPassesThroughUnframedBytes(t *testing.T) {
	got := Unwrap([]byte("raw bytes\n"))
	if string(got) != "raw bytes" {
		t.Fatalf("got %q", got)
	}
}
