package backend

import "bytes"

// MemoryReader serves an outgoing transfer from an in-memory byte slice.
type MemoryReader struct {
	buf *bytes.Reader
}

func NewMemoryReader(content []byte) *MemoryReader {
	return &MemoryReader{buf: bytes.NewReader(content)}
}

func (r *MemoryReader) Read(n int) ([]byte, error) {
	out := make([]byte, n)
	read, _ := r.buf.Read(out)
	return out[:read], nil
}

func (r *MemoryReader) Finish() error { return nil }

func (r *MemoryReader) Size() (int64, bool) {
	return r.buf.Size(), true
}

// MemoryWriter collects an incoming transfer into memory.
type MemoryWriter struct {
	buf       bytes.Buffer
	finished  bool
	cancelled bool
}

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{}
}

func (w *MemoryWriter) Write(p []byte) error {
	w.buf.Write(p)
	return nil
}

func (w *MemoryWriter) Finish() error {
	w.finished = true
	return nil
}

func (w *MemoryWriter) Cancel() error {
	w.cancelled = true
	return nil
}

// Content returns the bytes received so far.
func (w *MemoryWriter) Content() []byte { return w.buf.Bytes() }

// Finished reports whether the transfer was committed.
func (w *MemoryWriter) Finished() bool { return w.finished }

// Cancelled reports whether the transfer was discarded.
func (w *MemoryWriter) Cancelled() bool { return w.cancelled }
