package session

import (
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
)

// diagnosticsSnapshot is the CBOR-encoded shape DiagnosticsSnapshot
// returns: the running counters plus the receive context's current
// decode state, for offline triage of a flaky serial link.
type diagnosticsSnapshot struct {
	FramesReceived   uint64 `cbor:"frames_received"`
	CRCErrors        uint64 `cbor:"crc_errors"`
	FramingErrors    uint64 `cbor:"framing_errors"`
	DecodeErrors     uint64 `cbor:"decode_errors"`
	BytesReceived    uint64 `cbor:"bytes_received"`
	BytesTransmitted uint64 `cbor:"bytes_transmitted"`
	RxState          string `cbor:"rx_state"`
}

// DiagnosticsSnapshot CBOR-encodes the session's running diagnostic
// counters and current receive state. Safe to call from any goroutine
// concurrently with Pump, since the counters are read atomically.
func (s *Session) DiagnosticsSnapshot() ([]byte, error) {
	snap := diagnosticsSnapshot{
		FramesReceived:   atomic.LoadUint64(&s.framesReceived),
		CRCErrors:        atomic.LoadUint64(&s.crcErrors),
		FramingErrors:    atomic.LoadUint64(&s.framingErrors),
		DecodeErrors:     atomic.LoadUint64(&s.decodeErrors),
		BytesReceived:    atomic.LoadUint64(&s.bytesReceived),
		BytesTransmitted: atomic.LoadUint64(&s.bytesTransmitted),
		RxState:          s.rxCtx.State().String(),
	}
	return cbor.Marshal(snap)
}
