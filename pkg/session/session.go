// Package session implements the client send/receive pipeline: the
// glue that owns transmit/receive scratch buffers, feeds inbound
// bytes through the deframer into the decoder, applies file-transfer
// acknowledgement policy, and serializes outbound messages.
package session

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/octave-edge/orp-client/pkg/filetransfer"
	"github.com/octave-edge/orp-client/pkg/hdlc"
	"github.com/octave-edge/orp-client/pkg/orp"
)

// frameBufferSize bounds rx_frame and tx_frame: the largest payload
// plus fixed-header and field overhead, doubled for worst-case escape
// expansion (real traffic needs roughly 1.1x; 2x covers stress
// testing headroom).
const frameBufferSize = (orp.MaxDataLen + 128 + hdlc.MaxFrameOverhead) * 2

// packetBufferSize bounds rx_packet and tx_packet: the unescaped,
// deframed packet, which never exceeds the frame buffer's payload
// portion.
const packetBufferSize = orp.MaxDataLen + 128

// Dispatch is invoked once per successfully decoded inbound message.
// It must not retain msg.Data beyond the call: Data aliases the
// session's rx_packet buffer, which is reused on the next frame.
type Dispatch func(msg orp.Message)

// Config configures a new Session. Transport and Dispatch are
// required; the rest are optional.
type Config struct {
	Transport io.ReadWriteCloser
	Dispatch  Dispatch

	// Logger receives structured entries for every framer reset, CRC
	// mismatch, decode failure, and transport error. If nil, a
	// logrus.New() default (stderr, text formatter) is used.
	Logger *logrus.Logger

	// Notifier, if set, receives a one-line summary of every decoded
	// notification packet (HANDLER_CALL, SENSOR_CALL, FILE_CONTROL).
	// Optional; see pkg/session's event bus fan-out.
	Notifier Notifier
}

// ErrNilDispatch is the value New panics with when Config.Dispatch is nil. A
// session that cannot hand decoded messages anywhere cannot do
// anything useful, so this is treated as a programmer error.
var ErrNilDispatch = errors.New("session: Dispatch must not be nil")

// Session owns one HDLC receive context and the four fixed pipeline
// buffers, and drives the decode/dispatch loop. It is not safe for
// concurrent use except for DiagnosticsSnapshot, which only reads
// atomic counters.
type Session struct {
	transport io.ReadWriteCloser
	dispatch  Dispatch
	log       *logrus.Logger
	notifier  Notifier

	rxFrame    []byte
	rxFrameLen int

	rxPacket    []byte
	rxPacketLen int

	txPacket []byte
	txFrame  []byte

	rxCtx *hdlc.Decoder

	seqNum uint16

	transfer *filetransfer.Transfer

	crcErrors        uint64
	framingErrors    uint64
	decodeErrors     uint64
	framesReceived   uint64
	bytesReceived    uint64
	bytesTransmitted uint64
}

// New constructs a Session. It panics if cfg.Dispatch is nil — see
// ErrNilDispatch.
func New(cfg Config) *Session {
	if cfg.Dispatch == nil {
		panic(ErrNilDispatch)
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}
	return &Session{
		transport: cfg.Transport,
		dispatch:  cfg.Dispatch,
		log:       log,
		notifier:  cfg.Notifier,
		rxFrame:   make([]byte, frameBufferSize),
		rxPacket:  make([]byte, packetBufferSize),
		txPacket:  make([]byte, 0, packetBufferSize),
		txFrame:   make([]byte, 0, frameBufferSize),
		rxCtx:     hdlc.NewDecoder(),
		transfer:  filetransfer.New(),
	}
}

// FileTransfer exposes the inbound file-transfer helper so a caller
// can arrange a transfer's setup before FILE_DATA_RQST packets start
// arriving.
func (s *Session) FileTransfer() *filetransfer.Transfer { return s.transfer }

// NextSequenceNum returns the next outbound sequence number and
// advances the internal counter, wrapping at 16 bits.
func (s *Session) NextSequenceNum() uint16 {
	n := s.seqNum
	s.seqNum++
	return n
}

// Transmit encodes msg, frames it with HDLC, and writes the frame to
// the transport. Each call uses a fresh, transient HDLC encoder —
// never the persistent receive context.
func (s *Session) Transmit(msg orp.Message) error {
	s.txPacket = s.txPacket[:0]
	packet, _, err := orp.Encode(s.txPacket, msg, packetBufferSize)
	if err != nil {
		s.log.WithFields(logrus.Fields{"component": "session", "err": err, "seq": msg.SequenceNum}).
			Error("encode failed")
		return err
	}
	s.txPacket = packet

	s.txFrame = s.txFrame[:0]
	s.txFrame = hdlc.Frame(s.txFrame, s.txPacket)

	n, err := s.transport.Write(s.txFrame)
	atomic.AddUint64(&s.bytesTransmitted, uint64(n))
	if err != nil {
		s.log.WithFields(logrus.Fields{"component": "transport", "err": err}).Error("write failed")
		return err
	}
	return nil
}

// Pump feeds chunk (freshly read transport bytes) through the
// deframer and decoder, dispatching every fully decoded message and
// applying the file-data auto-ack policy. It accumulates chunk into
// rx_frame, a leftover partial frame from the previous call included,
// and loops while unparsed bytes remain.
func (s *Session) Pump(chunk []byte) error {
	atomic.AddUint64(&s.bytesReceived, uint64(len(chunk)))

	if s.rxFrameLen+len(chunk) > len(s.rxFrame) {
		// Frame buffer overrun: the link is sending more than one
		// frame's worth without a delimiter. Drop and resync.
		s.rxFrameLen = 0
		s.rxCtx.Reset()
		s.log.WithFields(logrus.Fields{"component": "session"}).Warn("rx_frame overrun, resyncing")
	}
	s.rxFrameLen += copy(s.rxFrame[s.rxFrameLen:], chunk)

	pos := 0
	for pos < s.rxFrameLen {
		dest := s.rxPacket[s.rxPacketLen:]
		consumed, emitted, err := s.rxCtx.Unpack(dest, s.rxFrame[pos:s.rxFrameLen])
		pos += consumed
		s.rxPacketLen += emitted

		if err != nil {
			s.recordFramingError(err)
			s.rxPacketLen = 0
			if consumed == 0 {
				break
			}
			continue
		}

		if s.rxCtx.Done() {
			atomic.AddUint64(&s.framesReceived, 1)
			s.handleFrame(s.rxPacket[:s.rxPacketLen])
			s.rxPacketLen = 0
			s.rxCtx.Reset()
			continue
		}

		if consumed == 0 {
			break
		}
	}

	// Preserve any unconsumed suffix (a partial frame straddling
	// reads) at the head of rx_frame for the next call.
	remaining := s.rxFrameLen - pos
	copy(s.rxFrame[:remaining], s.rxFrame[pos:s.rxFrameLen])
	s.rxFrameLen = remaining
	return nil
}

func (s *Session) recordFramingError(err error) {
	switch {
	case errors.Is(err, hdlc.ErrCRCMismatch):
		atomic.AddUint64(&s.crcErrors, 1)
		s.log.WithFields(logrus.Fields{"component": "hdlc", "err": err}).Warn("crc mismatch")
	default:
		atomic.AddUint64(&s.framingErrors, 1)
		s.log.WithFields(logrus.Fields{"component": "hdlc", "err": err}).Warn("framing error")
	}
}

func (s *Session) handleFrame(packet []byte) {
	msg, err := orp.Decode(packet)
	if err != nil {
		atomic.AddUint64(&s.decodeErrors, 1)
		s.log.WithFields(logrus.Fields{"component": "orp", "err": err}).Warn("decode failed")
		return
	}

	if msg.Type == orp.FileDataRqst {
		if err := s.transfer.Cache(msg.Data); err != nil {
			s.log.WithFields(logrus.Fields{"component": "filetransfer", "err": err}).Error("cache failed")
		}
		if s.transfer.AutoMode() {
			resp := orp.NewMessage(orp.FileDataResp)
			resp.Status = orp.StatusOK
			resp.SequenceNum = msg.SequenceNum
			if err := s.Transmit(resp); err != nil {
				s.log.WithFields(logrus.Fields{"component": "session", "err": err}).Error("auto-ack failed")
			}
		}
	}

	s.notify(msg)
	s.dispatch(msg)
}
