package env

import (
	"io"
	"os"

	"github.com/cluso/lsmkv/pkg/status"
)

// RandomAccessFile is a pure positional reader: it keeps no internal
// offset, and every call specifies its own byte range. It exposes the
// direct-I/O alignment the caller must honour, matching the engine's
// contract for required_buffer_alignment.
type RandomAccessFile struct {
	f             *os.File
	useDirectIO   bool
	alignment     Alignment
}

// OpenRandomAccessFile opens path for positional reads. blockSize is the
// filesystem block size, used as the alignment when directIO is true.
func OpenRandomAccessFile(path string, directIO bool, blockSize int64) (*RandomAccessFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, translateOpenErr("OpenRandomAccessFile", err)
	}
	a := Alignment(0)
	if directIO {
		a = Alignment(blockSize)
	}
	return &RandomAccessFile{f: f, useDirectIO: directIO, alignment: a}, nil
}

// UseDirectIO reports whether this file was opened for direct I/O.
func (r *RandomAccessFile) UseDirectIO() bool { return r.useDirectIO }

// RequiredBufferAlignment is the alignment PositionedRead buffers, offsets
// and sizes must satisfy: the filesystem block size under direct I/O, or 1
// otherwise.
func (r *RandomAccessFile) RequiredBufferAlignment() int64 {
	if !r.useDirectIO {
		return 1
	}
	return int64(r.alignment)
}

// PositionedRead reads len(p) bytes starting at off.
func (r *RandomAccessFile) PositionedRead(off int64, p []byte) (int, error) {
	n, err := r.f.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return n, status.New("RandomAccessFile.PositionedRead", status.IOError, err)
	}
	return n, err
}

// Prefetch hints the runtime to warm off..off+n into the page cache. It is
// a no-op under direct I/O, where the engine itself skips calling it
// because there is no page cache layer to warm.
func (r *RandomAccessFile) Prefetch(off, n int64) error {
	if r.useDirectIO {
		return nil
	}
	return prefetch(r.f, off, n)
}

// Close closes the underlying file.
func (r *RandomAccessFile) Close() error {
	if err := r.f.Close(); err != nil {
		return status.New("RandomAccessFile.Close", status.IOError, err)
	}
	return nil
}

// RandomRWFile supports positional reads, positional writes, and
// sync/flush — used by the engine for files it both produces and later
// re-reads in place (its manifest and current-file pointer).
type RandomRWFile struct {
	f *os.File
}

// OpenRandomRWFile opens or creates path for read-write positional access.
func OpenRandomRWFile(path string) (*RandomRWFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, translateOpenErr("OpenRandomRWFile", err)
	}
	return &RandomRWFile{f: f}, nil
}

func (r *RandomRWFile) ReadAt(off int64, p []byte) (int, error) {
	n, err := r.f.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return n, status.New("RandomRWFile.ReadAt", status.IOError, err)
	}
	return n, err
}

func (r *RandomRWFile) WriteAt(off int64, p []byte) (int, error) {
	n, err := r.f.WriteAt(p, off)
	if err != nil {
		return n, status.New("RandomRWFile.WriteAt", status.IOError, err)
	}
	return n, nil
}

func (r *RandomRWFile) Sync() error {
	if err := r.f.Sync(); err != nil {
		return status.New("RandomRWFile.Sync", status.IOError, err)
	}
	return nil
}

// Flush is a no-op beyond Sync: the environment shim does not maintain a
// userspace write buffer for random-rw files.
func (r *RandomRWFile) Flush() error { return nil }

func (r *RandomRWFile) Close() error {
	if err := r.f.Close(); err != nil {
		return status.New("RandomRWFile.Close", status.IOError, err)
	}
	return nil
}
