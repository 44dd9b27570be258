package env

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDirectWritableTruncatesToLogicalLength exercises a boundary
// scenario: three buffers of sizes (100, 4000, 7) appended at logical
// offset 0 with a 4096-byte alignment must read back as the exact 4107
// bytes written, and the file's on-disk size after Close must be 4107,
// not the 8192 the padded aligned writes touched internally.
func TestDirectWritableTruncatesToLogicalLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000001.sst")

	w, err := NewDirectWritableFile(path, 4096, false)
	if err != nil {
		t.Fatalf("NewDirectWritableFile: %v", err)
	}

	want := append(append(make([]byte, 0, 4107), bytesOf(100, 0xAA)...), bytesOf(4000, 0xBB)...)
	want = append(want, bytesOf(7, 0xCC)...)

	if err := w.Append(bytesOf(100, 0xAA)); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := w.Append(bytesOf(4000, 0xBB)); err != nil {
		t.Fatalf("append 2: %v", err)
	}
	if err := w.Append(bytesOf(7, 0xCC)); err != nil {
		t.Fatalf("append 3: %v", err)
	}

	if got := w.GetFileSize(); got != 4107 {
		t.Fatalf("GetFileSize() = %d, want 4107", got)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 4107 {
		t.Fatalf("on-disk size = %d, want 4107 (padding must be truncated away)", info.Size())
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("read back %d bytes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d mismatch: got %x want %x", i, got[i], want[i])
		}
	}
}

func bytesOf(n int, b byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return buf
}
