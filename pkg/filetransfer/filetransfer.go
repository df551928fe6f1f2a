// Package filetransfer accumulates inbound file data arriving as a
// stream of decoded FILE_DATA_RQST packets, in either of two modes:
// auto-acknowledged (each packet is written through to disk as it
// arrives) or manual (the caller stages packets and commits them with
// an explicit flush).
package filetransfer

import (
	"errors"
	"os"
)

// MaxStagingBytes bounds the in-RAM staging buffer used in manual
// mode.
const MaxStagingBytes = 100 * 1024

// MaxFileNameLen is the longest file name setup will accept.
const MaxFileNameLen = 128

// ErrFileNameTooLong is returned by Setup.
var ErrFileNameTooLong = errors.New("filetransfer: file name exceeds 128 bytes")

// ErrStagingFull is returned by Cache in manual mode once the staging
// buffer would overflow.
var ErrStagingFull = errors.New("filetransfer: staging buffer full")

const filePerm = 0o660

// Transfer tracks one inbound file's progress. It is not safe for
// concurrent use; a session drives it from its single receive loop.
type Transfer struct {
	fileName      string
	expectedBytes int64
	receivedBytes int64
	autoMode      bool
	staging       []byte

	openFile func(name string) (*os.File, error)
}

// New returns a Transfer with no file set up yet.
func New() *Transfer {
	return &Transfer{
		openFile: func(name string) (*os.File, error) {
			return os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
		},
	}
}

// Setup records the destination file name and resets transfer state.
// Any pre-existing file at name is removed so the transfer starts
// from a clean slate.
func (t *Transfer) Setup(name string, expectedBytes int64, auto bool) error {
	if len(name) > MaxFileNameLen {
		return ErrFileNameTooLong
	}
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return err
	}
	t.fileName = name
	t.expectedBytes = expectedBytes
	t.receivedBytes = 0
	t.autoMode = auto
	t.staging = t.staging[:0]
	return nil
}

// AutoMode reports whether the transfer is currently acknowledging
// packets automatically.
func (t *Transfer) AutoMode() bool { return t.autoMode }

// ReceivedBytes reports how many bytes have been committed (written
// through in auto mode, or accepted into staging/flushed in manual
// mode) so far.
func (t *Transfer) ReceivedBytes() int64 { return t.receivedBytes }

// Cache accepts one inbound chunk. In auto mode it writes the chunk
// straight to disk; otherwise it copies the chunk into the staging
// buffer for a later Flush. Once expectedBytes is known and met, auto
// mode is forced off so the final packet is acknowledged manually by
// the caller.
func (t *Transfer) Cache(data []byte) error {
	if t.autoMode {
		if err := writeAll(t, data); err != nil {
			return err
		}
	} else {
		if len(t.staging)+len(data) > MaxStagingBytes {
			return ErrStagingFull
		}
		t.staging = append(t.staging, data...)
	}
	t.receivedBytes += int64(len(data))

	if t.expectedBytes > 0 && t.receivedBytes >= t.expectedBytes {
		t.autoMode = false
	}
	return nil
}

// Flush commits any staged bytes to disk and clears the staging
// buffer. It is a no-op in auto mode, or when nothing is staged.
func (t *Transfer) Flush() error {
	if t.autoMode || len(t.staging) == 0 {
		return nil
	}
	if err := writeAll(t, t.staging); err != nil {
		return err
	}
	t.staging = t.staging[:0]
	return nil
}

// writeAll opens the destination file and retries partial writes
// until buf is fully drained, matching the append-only, best-effort
// error surfacing of the pipeline this helper serves.
func writeAll(t *Transfer, buf []byte) error {
	f, err := t.openFile(t.fileName)
	if err != nil {
		return err
	}
	defer f.Close()

	for len(buf) > 0 {
		n, err := f.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}
