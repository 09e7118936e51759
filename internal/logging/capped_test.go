package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCappedFileWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	w, err := NewCappedFileWriter(path, 1024)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("first\n")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	if string(data) != "first\nsecond\n" {
		t.Errorf("Unexpected log contents: %q", string(data))
	}
	if w.Size() != int64(len(data)) {
		t.Errorf("Expected size %d, got %d", len(data), w.Size())
	}
}

func TestCappedFileWriterTruncatesAtCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	w, err := NewCappedFileWriter(path, 100)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	line := bytes.Repeat([]byte("a"), 40)
	for i := 0; i < 2; i++ {
		if _, err := w.Write(line); err != nil {
			t.Fatalf("Failed to write line %d: %v", i, err)
		}
	}

	// The third line would exceed the cap, so the file restarts.
	marker := []byte("marker-after-restart")
	if _, err := w.Write(marker); err != nil {
		t.Fatalf("Failed to write past cap: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	if string(data) != string(marker) {
		t.Errorf("Expected truncated log to hold only the marker, got %q", string(data))
	}
	if w.Size() != int64(len(marker)) {
		t.Errorf("Expected size %d after restart, got %d", len(marker), w.Size())
	}
}

func TestCappedFileWriterResumesExistingSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 30)), 0o644); err != nil {
		t.Fatalf("Failed to seed log: %v", err)
	}

	w, err := NewCappedFileWriter(path, 1024)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	if w.Size() != 30 {
		t.Errorf("Expected size resumed at 30, got %d", w.Size())
	}
}

func TestCappedFileWriterClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	w, err := NewCappedFileWriter(path, 1024)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("Expected write on closed writer to fail")
	}
	if err := w.Close(); err != nil {
		t.Errorf("Expected repeated close to be a no-op, got %v", err)
	}
}

func TestCappedFileWriterRejectsBadCap(t *testing.T) {
	if _, err := NewCappedFileWriter(filepath.Join(t.TempDir(), "x.log"), 0); err == nil {
		t.Error("Expected zero cap to be rejected")
	}
}
