package logging

import (
	"fmt"
	"os"
	"sync"
)

// CappedFileWriter is an append writer that truncates its file and
// starts over once the next write would push it past maxBytes. Long
// sessions keep a bounded diagnostic log instead of filling the disk.
type CappedFileWriter struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	size     int64
	f        *os.File
}

// NewCappedFileWriter opens path for appending, resuming the byte
// count from the existing file size.
func NewCappedFileWriter(path string, maxBytes int64) (*CappedFileWriter, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("capped writer: max size must be positive, got %d", maxBytes)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capped log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat capped log: %w", err)
	}
	return &CappedFileWriter{
		path:     path,
		maxBytes: maxBytes,
		size:     info.Size(),
		f:        f,
	}, nil
}

func (w *CappedFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return 0, os.ErrClosed
	}
	if w.size+int64(len(p)) > w.maxBytes {
		if err := w.restart(); err != nil {
			return 0, err
		}
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

// Size returns the current byte count of the underlying file.
func (w *CappedFileWriter) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *CappedFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// restart truncates the file in place and resumes writing at the top.
func (w *CappedFileWriter) restart() error {
	w.f.Close()
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		w.f = nil
		return fmt.Errorf("failed to restart capped log: %w", err)
	}
	w.f = f
	w.size = 0
	return nil
}
