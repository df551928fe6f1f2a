package filetransfer

import (
	"os"
	"path/filepath"
	"testing"
)

func tempFilePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "incoming.bin")
}

func TestAutoModeWritesThrough(t *testing.T) {
	path := tempFilePath(t)
	tr := New()
	if err := tr.Setup(path, 6, true); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := tr.Cache([]byte("abc")); err != nil {
		t.Fatalf("Cache failed: %v", err)
	}
	if err := tr.Cache([]byte("def")); err != nil {
		t.Fatalf("Cache failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "abcdef" {
		t.Fatalf("file contents = %q, want %q", got, "abcdef")
	}
	if tr.ReceivedBytes() != 6 {
		t.Fatalf("ReceivedBytes = %d, want 6", tr.ReceivedBytes())
	}
}

func TestAutoModeForcedOffAtExpectedSize(t *testing.T) {
	path := tempFilePath(t)
	tr := New()
	if err := tr.Setup(path, 3, true); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := tr.Cache([]byte("abc")); err != nil {
		t.Fatalf("Cache failed: %v", err)
	}
	if tr.AutoMode() {
		t.Fatalf("auto mode should be forced off once expectedBytes is reached")
	}
}

func TestManualModeStagesUntilFlush(t *testing.T) {
	path := tempFilePath(t)
	tr := New()
	if err := tr.Setup(path, 0, false); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := tr.Cache([]byte("hello ")); err != nil {
		t.Fatalf("Cache failed: %v", err)
	}
	if err := tr.Cache([]byte("world")); err != nil {
		t.Fatalf("Cache failed: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file should not exist before flush, stat err=%v", err)
	}

	if err := tr.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("file contents = %q, want %q", got, "hello world")
	}

	// A second flush with nothing staged must be a harmless no-op.
	if err := tr.Flush(); err != nil {
		t.Fatalf("second Flush failed: %v", err)
	}
}

func TestSetupDeletesPreexistingFile(t *testing.T) {
	path := tempFilePath(t)
	if err := os.WriteFile(path, []byte("stale"), 0o660); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	tr := New()
	if err := tr.Setup(path, 0, true); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("stale file should have been removed by Setup, stat err=%v", err)
	}
}

func TestSetupRejectsLongFileName(t *testing.T) {
	tr := New()
	name := make([]byte, MaxFileNameLen+1)
	for i := range name {
		name[i] = 'a'
	}
	if err := tr.Setup(string(name), 0, true); err != ErrFileNameTooLong {
		t.Fatalf("got err=%v, want ErrFileNameTooLong", err)
	}
}

func TestManualModeStagingOverflow(t *testing.T) {
	path := tempFilePath(t)
	tr := New()
	if err := tr.Setup(path, 0, false); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	big := make([]byte, MaxStagingBytes+1)
	if err := tr.Cache(big); err != ErrStagingFull {
		t.Fatalf("got err=%v, want ErrStagingFull", err)
	}
}
