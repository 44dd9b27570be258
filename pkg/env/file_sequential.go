package env

import (
	"io"
	"os"

	"github.com/cluso/lsmkv/pkg/status"
)

// SequentialFile adapts *os.File to the positional-agnostic sequential
// reader the engine expects: Read advances an internal offset,
// PositionedRead is independent of it, and Skip fast-forwards without
// transferring bytes. The engine's own contract requires callers to
// serialize access to one SequentialFile; env enforces that with a
// try-lock rather than silently queuing concurrent callers, since a
// contended SequentialFile indicates a bug in the caller, not a resource
// to arbitrate.
type SequentialFile struct {
	f      *os.File
	mu     Mutex
	offset int64
}

// OpenSequentialFile opens path for sequential reads.
func OpenSequentialFile(path string) (*SequentialFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, translateOpenErr("OpenSequentialFile", err)
	}
	return &SequentialFile{f: f}, nil
}

// Read returns up to len(p) bytes at the current offset and advances it.
func (s *SequentialFile) Read(p []byte) (int, error) {
	if !s.mu.TryLock() {
		panic("env: SequentialFile.Read called concurrently; caller must serialize access")
	}
	defer s.mu.Unlock()

	n, err := s.f.Read(p)
	s.offset += int64(n)
	if err == io.EOF {
		return n, io.EOF
	}
	if err != nil {
		return n, status.New("SequentialFile.Read", status.IOError, err)
	}
	return n, nil
}

// PositionedRead reads len(p) bytes at off, independent of the file's
// logical read offset.
func (s *SequentialFile) PositionedRead(off int64, p []byte) (int, error) {
	n, err := s.f.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return n, status.New("SequentialFile.PositionedRead", status.IOError, err)
	}
	return n, err
}

// Skip advances the logical offset by n bytes without reading them.
func (s *SequentialFile) Skip(n int64) error {
	if !s.mu.TryLock() {
		panic("env: SequentialFile.Skip called concurrently; caller must serialize access")
	}
	defer s.mu.Unlock()

	off, err := s.f.Seek(n, io.SeekCurrent)
	if err != nil {
		return status.New("SequentialFile.Skip", status.IOError, err)
	}
	s.offset = off
	return nil
}

// Close closes the underlying file.
func (s *SequentialFile) Close() error {
	if err := s.f.Close(); err != nil {
		return status.New("SequentialFile.Close", status.IOError, err)
	}
	return nil
}

func translateOpenErr(op string, err error) error {
	if os.IsNotExist(err) {
		return status.New(op, status.NotFound, err)
	}
	if os.IsPermission(err) {
		return status.New(op, status.NotSupported, err)
	}
	return status.New(op, status.IOError, err)
}
