package backend

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// FileReader reads a regular file in session-sized chunks.
type FileReader struct {
	f         *os.File
	size      int64
	sizeKnown bool
	eof       bool
	finished  bool
}

// OpenFileReader opens path for an outgoing transfer.
func OpenFileReader(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "backend: open for read")
	}
	r := &FileReader{f: f}
	if info, err := f.Stat(); err == nil && info.Mode().IsRegular() {
		r.size = info.Size()
		r.sizeKnown = true
	}
	return r, nil
}

func (r *FileReader) Read(n int) ([]byte, error) {
	if r.finished || r.eof {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(r.f, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		r.eof = true
		err = nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "backend: read chunk")
	}
	return buf[:read], nil
}

func (r *FileReader) Finish() error {
	if r.finished {
		return nil
	}
	r.finished = true
	return errors.Wrap(r.f.Close(), "backend: close reader")
}

func (r *FileReader) Size() (int64, bool) {
	return r.size, r.sizeKnown
}

// FileWriter accumulates incoming blocks in a temporary file next to the
// destination. Finish renames it into place; Cancel removes it. An
// interrupted transfer never leaves a half-written destination behind.
type FileWriter struct {
	dest string
	tmp  *os.File
	done bool
}

const partialSuffix = ".partial"

// CreateFileWriter prepares an incoming transfer targeting path.
func CreateFileWriter(path string) (*FileWriter, error) {
	tmp, err := os.OpenFile(path+partialSuffix, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "backend: open for write")
	}
	return &FileWriter{dest: path, tmp: tmp}, nil
}

func (w *FileWriter) Write(p []byte) error {
	if w.done {
		return errors.New("backend: write after teardown")
	}
	_, err := w.tmp.Write(p)
	return errors.Wrap(err, "backend: write chunk")
}

func (w *FileWriter) Finish() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.tmp.Close(); err != nil {
		return errors.Wrap(err, "backend: close writer")
	}
	return errors.Wrap(os.Rename(w.tmp.Name(), w.dest), "backend: commit")
}

func (w *FileWriter) Cancel() error {
	if w.done {
		return nil
	}
	w.done = true
	w.tmp.Close()
	return errors.Wrap(os.Remove(w.tmp.Name()), "backend: discard partial")
}
