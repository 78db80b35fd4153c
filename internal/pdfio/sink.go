// Package pdfio implements the byte-sink writer the PDF generator writes
// through: a sequential, non-seekable writer with a drain signal and a byte
// counter for progress reporting.
package pdfio

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
)

// ErrWriterClosed is returned by Write when the sink has already been closed.
var ErrWriterClosed = errors.New("pdfio: write after close")

// Sink is a sequential byte-sink writer. The generator never seeks; it only
// writes forward and occasionally waits for the underlying writer to drain.
type Sink struct {
	mu       sync.Mutex
	w        io.Writer
	flusher  http.Flusher
	written  int64
	closed   bool
	closeErr error
}

// NewSink wraps w. If w also implements http.Flusher (e.g. gin's
// ResponseWriter), WaitForDrain forces a flush so a streaming HTTP response
// is pushed to the client promptly instead of buffering indefinitely.
func NewSink(w io.Writer) *Sink {
	s := &Sink{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

// Write appends bytes to the sink and updates the running byte count.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrWriterClosed
	}
	n, err := s.w.Write(p)
	s.written += int64(n)
	return n, err
}

// BytesWritten returns the total number of bytes written so far.
func (s *Sink) BytesWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// WaitForDrain flushes the underlying writer if it supports flushing, giving
// the pipeline a natural back-pressure point between pages. It also
// respects ctx cancellation so a stalled client does not block forever.
func (s *Sink) WaitForDrain(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	flusher := s.flusher
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrWriterClosed
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

// Close marks the sink closed. Writes after Close fail with ErrWriterClosed.
// If the underlying writer is also an io.Closer, it is closed too.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.closeErr
	}
	s.closed = true
	if c, ok := s.w.(io.Closer); ok {
		s.closeErr = c.Close()
	}
	return s.closeErr
}
