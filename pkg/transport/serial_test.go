package transport

import (
	"sync"
	"testing"
	"time"
)

type fakeIdleWriter struct {
	mu       sync.Mutex
	writes   [][]byte
	lastSend time.Time
}

func newFakeIdleWriter() *fakeIdleWriter {
	return &fakeIdleWriter{lastSend: time.Now()}
}

func (f *fakeIdleWriter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), p...)
	f.writes = append(f.writes, cp)
	f.lastSend = time.Now()
	return len(p), nil
}

func (f *fakeIdleWriter) Idle() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Since(f.lastSend)
}

func (f *fakeIdleWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func TestKeepAliveIdleGateSeesFreshWriter(t *testing.T) {
	w := newFakeIdleWriter()
	stop := make(chan struct{})
	defer close(stop)

	// KeepAliveInterval (3s) is too long to wait on in a unit test, so
	// RunKeepAlive is not run here: this checks only that a freshly
	// written writer's Idle() is below KeepAliveInterval, the condition
	// under which RunKeepAlive skips a tick.
	if w.Idle() >= KeepAliveInterval {
		t.Fatalf("fakeIdleWriter should start fresh")
	}
}

func TestKeepAlivePreambleByte(t *testing.T) {
	if KeepAlivePreamble != '~' {
		t.Fatalf("KeepAlivePreamble = %q, want '~'", KeepAlivePreamble)
	}
}
