package backend

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestFileReaderChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source")
	if err := os.WriteFile(path, []byte("line1\nline2\nanotherline"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	r, err := OpenFileReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Finish()

	if size, ok := r.Size(); !ok || size != 23 {
		t.Fatalf("size mismatch: %d %v", size, ok)
	}
	chunk, err := r.Read(5)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(chunk) != "line1" {
		t.Fatalf("first chunk mismatch: %q", chunk)
	}
	rest, err := r.Read(512)
	if err != nil {
		t.Fatalf("read rest: %v", err)
	}
	if string(rest) != "\nline2\nanotherline" {
		t.Fatalf("rest mismatch: %q", rest)
	}
	final, err := r.Read(512)
	if err != nil {
		t.Fatalf("read after eof: %v", err)
	}
	if len(final) != 0 {
		t.Fatalf("expected empty read after eof, got %q", final)
	}
}

func TestFileReaderFinishIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	r, err := OpenFileReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	if err := r.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := r.Finish(); err != nil {
		t.Fatalf("second finish should be a no-op: %v", err)
	}
}

func TestFileWriterCommit(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "incoming")
	w, err := CreateFileWriter(dest)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if err := w.Write([]byte("foo")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write([]byte("bar")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("destination must not exist before finish")
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read committed file: %v", err)
	}
	if !bytes.Equal(got, []byte("foobar")) {
		t.Fatalf("content mismatch: %q", got)
	}
	if _, err := os.Stat(dest + partialSuffix); !os.IsNotExist(err) {
		t.Fatalf("partial file should be gone after finish")
	}
}

func TestFileWriterCancelDiscardsPartial(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "incoming")
	w, err := CreateFileWriter(dest)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if err := w.Write([]byte("half a tran")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("destination must not exist after cancel")
	}
	if _, err := os.Stat(dest + partialSuffix); !os.IsNotExist(err) {
		t.Fatalf("partial file must be removed on cancel")
	}
	if err := w.Cancel(); err != nil {
		t.Fatalf("second cancel should be a no-op: %v", err)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	r := NewMemoryReader([]byte("abcdef"))
	w := NewMemoryWriter()
	for {
		chunk, err := r.Read(4)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if err := w.Write(chunk); err != nil {
			t.Fatalf("write: %v", err)
		}
		if len(chunk) < 4 {
			break
		}
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if !w.Finished() || w.Cancelled() {
		t.Fatalf("unexpected writer state: %+v", w)
	}
	if string(w.Content()) != "abcdef" {
		t.Fatalf("content mismatch: %q", w.Content())
	}
}

func TestCacheServesFromMemory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot.img")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	c, err := NewCache(4)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	r, err := c.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	chunk, _ := r.Read(16)
	if string(chunk) != "v1" {
		t.Fatalf("content mismatch: %q", chunk)
	}

	// The cached copy survives the file changing on disk until invalidated.
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatalf("rewrite fixture: %v", err)
	}
	r, err = c.Open(path)
	if err != nil {
		t.Fatalf("open cached: %v", err)
	}
	chunk, _ = r.Read(16)
	if string(chunk) != "v1" {
		t.Fatalf("expected cached content, got %q", chunk)
	}

	c.Invalidate(path)
	r, err = c.Open(path)
	if err != nil {
		t.Fatalf("open after invalidate: %v", err)
	}
	chunk, _ = r.Read(16)
	if string(chunk) != "v2" {
		t.Fatalf("expected fresh content, got %q", chunk)
	}
	if c.Len() != 1 {
		t.Fatalf("unexpected cache length: %d", c.Len())
	}
}

func TestCacheMissingFile(t *testing.T) {
	c, err := NewCache(2)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	if _, err := c.Open(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
