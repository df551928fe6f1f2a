// Package transport owns the physical serial link an ORP session
// rides on: opening the device, giving it a clean line state before
// the real baud rate is applied, and ticking a keep-alive preamble
// byte into an otherwise idle link.
package transport

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// KeepAlivePreamble is written once per KeepAliveInterval of transport
// idle time. '~' is the HDLC Flag byte (0x7E): between frames the
// deframer takes it as one more delimiter, so it starts no frame and
// emits nothing.
const KeepAlivePreamble = '~'

// KeepAliveInterval is how long the link may sit idle before a
// preamble byte is sent to keep intermediate modems/adapters alive.
const KeepAliveInterval = 3 * time.Second

// Serial wraps an open serial port as an io.ReadWriteCloser, tracking
// the last write time so the caller's keep-alive ticker knows when to
// fire.
type Serial struct {
	port     *serial.Port
	lastSend time.Time
}

// Open opens devicePath at baud, first clearing the line by opening
// and closing it at a neutral rate. USB-serial adapters and the
// occasional real UART wake up in an indeterminate state; settling
// them at a throwaway baud before the real one avoids the first frame
// after open being garbled.
func Open(devicePath string, baud int) (*Serial, error) {
	if err := clearAttributes(devicePath); err != nil {
		return nil, fmt.Errorf("transport: clear attributes: %w", err)
	}

	cfg := &serial.Config{
		Name:        devicePath,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 0,
	}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", devicePath, err)
	}
	return &Serial{port: port, lastSend: time.Now()}, nil
}

func clearAttributes(devicePath string) error {
	cfg := &serial.Config{
		Name:        devicePath,
		Baud:        9600,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 0,
	}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return err
	}
	if err := port.Close(); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

func (s *Serial) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *Serial) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	s.lastSend = time.Now()
	return n, err
}

func (s *Serial) Close() error {
	return s.port.Close()
}

// Idle reports how long it has been since the last Write.
func (s *Serial) Idle() time.Duration {
	return time.Since(s.lastSend)
}

// RunKeepAlive runs until stop is closed, writing a single preamble
// byte to w on every KeepAliveInterval tick. When w has an Idle
// method, a tick is skipped if w was written to within the last
// KeepAliveInterval.
func RunKeepAlive(w io.Writer, stop <-chan struct{}) {
	idler, ok := w.(interface{ Idle() time.Duration })
	ticker := time.NewTicker(KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if ok && idler.Idle() < KeepAliveInterval {
				continue
			}
			w.Write([]byte{KeepAlivePreamble})
		}
	}
}
