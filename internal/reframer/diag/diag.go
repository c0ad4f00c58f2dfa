// Package diag writes a brotli-compressed, newline-delimited, timestamped
// trace for offline post-mortem, enabled by cmd/reframer's -diag flag
// (cmd/reframer logs each Process tick's status and error).
package diag

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/andybalholm/brotli"
)

// Writer is a brotli-compressed append-only diagnostic trace.
type Writer struct {
	f  *os.File
	bw *brotli.Writer
}

// Open creates (or truncates) path and wraps it in a brotli writer at the
// default quality, matching a typical streaming-compression append log.
func Open(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("diag: open %s: %w", path, err)
	}
	bw := brotli.NewWriter(f)
	return &Writer{f: f, bw: bw}, nil
}

// Logf appends one timestamped line to the trace.
func (w *Writer) Logf(format string, args ...any) {
	if w == nil {
		return
	}
	line := fmt.Sprintf("%s "+format+"\n", append([]any{time.Now().UTC().Format(time.RFC3339Nano)}, args...)...)
	io.WriteString(w.bw, line)
}

// Close flushes and closes the underlying brotli writer and file.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	if err := w.bw.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("diag: flush: %w", err)
	}
	return w.f.Close()
}
