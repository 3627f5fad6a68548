package recorder

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Writer appends encoded records to a log, one line per record.
// Each record goes out in a single Write call, so an interrupted process
// leaves at most one partial trailing line and never rewrites earlier ones.
//
// Thread-safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	path   string
	count  int
	closed bool
}

// NewWriter wraps w. If w is also an io.Closer, Close closes it.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Create creates (or truncates) the log file at path.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating log %s: %w", path, err)
	}
	return &Writer{w: f, path: path}, nil
}

// Path returns the file path, or "" for writers made with NewWriter.
func (w *Writer) Path() string {
	return w.path
}

// Append encodes rec and appends it to the log.
func (w *Writer) Append(rec Record) error {
	line, err := Encode(rec)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("appending to log %s: %w", w.path, os.ErrClosed)
	}
	if _, err := w.w.Write(line); err != nil {
		return fmt.Errorf("appending to log %s: %w", w.path, err)
	}
	w.count++
	return nil
}

// Len returns the number of records appended so far.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close closes the underlying file. Later appends fail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
