package server

import (
	"bufio"
	"context"
	"io"
	"sync/atomic"
)

// StreamWriter is the writer handed to a StreamingFunc. Output is buffered
// until Flush.
//
// A write or flush failure cancels the connection context, so a producer
// blocked elsewhere observes the disconnect. StreamWriter is not safe for
// concurrent use; callers that write from several goroutines must serialise.
type StreamWriter struct {
	bw      *bufio.Writer
	newline string
	cancel  context.CancelFunc
	err     error
	written atomic.Int64
}

// NewStreamWriter returns a StreamWriter over w. cancel, when non-nil, is
// called on the first write or flush failure. A *bufio.Writer is used as is.
func NewStreamWriter(w io.Writer, cancel context.CancelFunc) *StreamWriter {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	return &StreamWriter{bw: bw, newline: "\r\n", cancel: cancel}
}

// Write implements io.Writer.
func (w *StreamWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.bw.Write(p)
	w.written.Add(int64(n))
	return n, w.fail(err)
}

// WriteString implements io.StringWriter.
func (w *StreamWriter) WriteString(s string) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.bw.WriteString(s)
	w.written.Add(int64(n))
	return n, w.fail(err)
}

// WriteLine writes s followed by the current newline sequence.
func (w *StreamWriter) WriteLine(s string) error {
	if _, err := w.WriteString(s); err != nil {
		return err
	}
	_, err := w.WriteString(w.newline)
	return err
}

// Flush sends buffered output to the client.
func (w *StreamWriter) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.fail(w.bw.Flush())
}

// Newline returns the line terminator used by WriteLine. Default: "\r\n".
func (w *StreamWriter) Newline() string { return w.newline }

// SetNewline changes the line terminator used by WriteLine.
func (w *StreamWriter) SetNewline(nl string) { w.newline = nl }

// Err returns the first write error, if any.
func (w *StreamWriter) Err() error { return w.err }

// Written returns the number of body bytes accepted so far.
func (w *StreamWriter) Written() int64 { return w.written.Load() }

func (w *StreamWriter) fail(err error) error {
	if err == nil {
		return nil
	}
	if w.err == nil {
		w.err = err
		if w.cancel != nil {
			w.cancel()
		}
	}
	return err
}
