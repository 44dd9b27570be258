package env

import (
	"os"

	"github.com/cluso/lsmkv/pkg/status"
)

// defaultPreallocBlock is the pre-allocation window granularity used when
// an env.Options doesn't override it — one page.
const defaultPreallocBlock = 4096

// WritableFile is the append-only file interface both writable
// implementations satisfy.
type WritableFile interface {
	Append(p []byte) error
	PositionedAppend(p []byte, off int64) error
	Truncate(size int64) error
	Close() error
	Sync() error
	Flush() error
	RangeSync(off, n int64) error
	InvalidateCache(off, n int64) error
	PrepareWrite(off, n int64) error
	Allocate(off, n int64) error
	GetFileSize() int64
}

// bufferedWritable backs the common, non-direct-I/O case: writes append
// straight through to the OS file, and pre-allocation tracks how far
// ahead of the logical size the window reaches. With allowFallocate set
// the file is zero-extended to the window with Truncate; by default the
// window is tracked virtually and the file is not extended.
type bufferedWritable struct {
	f            *os.File
	path         string
	logicalSize  int64
	allocated    int64 // pre-allocation window high-water mark
	preallocStep int64
	keepSize     bool
	allowFallocate bool
}

// NewBufferedWritableFile opens path for append-only writes through the
// ordinary (non-direct) I/O path.
func NewBufferedWritableFile(path string, keepSize bool, allowFallocate bool) (WritableFile, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, translateOpenErr("NewBufferedWritableFile", err)
	}
	return &bufferedWritable{
		f:              f,
		path:           path,
		preallocStep:   defaultPreallocBlock,
		keepSize:       keepSize,
		allowFallocate: allowFallocate,
	}, nil
}

func (w *bufferedWritable) Append(p []byte) error {
	return w.PositionedAppend(p, w.logicalSize)
}

func (w *bufferedWritable) PositionedAppend(p []byte, off int64) error {
	n, err := w.f.WriteAt(p, off)
	if err != nil {
		return status.New("bufferedWritable.Append", status.IOError, err)
	}
	if end := off + int64(n); end > w.logicalSize {
		w.logicalSize = end
	}
	return nil
}

func (w *bufferedWritable) Truncate(size int64) error {
	if err := w.f.Truncate(size); err != nil {
		return status.New("bufferedWritable.Truncate", status.IOError, err)
	}
	w.logicalSize = size
	if size > w.allocated {
		w.allocated = size
	}
	return nil
}

func (w *bufferedWritable) Sync() error {
	if err := w.f.Sync(); err != nil {
		return status.New("bufferedWritable.Sync", status.IOError, err)
	}
	return nil
}

// Flush is a no-op: there is no userspace buffer between Append and the
// OS file for the buffered variant.
func (w *bufferedWritable) Flush() error { return nil }

// RangeSync triggers a metadata-free flush of [off, off+n). A plain Sync
// is a reasonable portable stand-in for sync_file_range; the metadata-free
// distinction only matters for avoiding extra seeks on spinning disks.
func (w *bufferedWritable) RangeSync(off, n int64) error {
	return w.Sync()
}

func (w *bufferedWritable) InvalidateCache(off, n int64) error {
	return invalidateCache(w.f, off, n)
}

// PrepareWrite extends the pre-allocation window in fixed blocks to cover
// off+n. It only grows the window, never the logical size. keepSize is
// applied at Close: unless it is set, Close truncates the file back to
// the logical size.
func (w *bufferedWritable) PrepareWrite(off, n int64) error {
	return w.Allocate(off, n)
}

// Allocate grows the monotonically increasing pre-allocation window to
// cover [off, off+n) in preallocStep-sized increments. A request that
// lies entirely within the already-allocated window is a no-op, and the
// window itself never shrinks. Fallocate is not actually issued unless
// allowFallocate is set — not all filesystems support it together with
// direct I/O, so the default implementation tracks the window virtually
// and lets Truncate/Close reconcile the real file size.
func (w *bufferedWritable) Allocate(off, n int64) error {
	end := off + n
	if end <= w.allocated {
		return nil
	}
	newAllocated := w.allocated
	for newAllocated < end {
		newAllocated += w.preallocStep
	}
	if w.allowFallocate {
		if err := w.f.Truncate(newAllocated); err != nil {
			return status.New("bufferedWritable.Allocate", status.IOError, err)
		}
	}
	w.allocated = newAllocated
	return nil
}

func (w *bufferedWritable) GetFileSize() int64 { return w.logicalSize }

func (w *bufferedWritable) Close() error {
	if !w.keepSize {
		if err := w.f.Truncate(w.logicalSize); err != nil {
			return status.New("bufferedWritable.Close", status.IOError, err)
		}
	}
	if err := w.f.Close(); err != nil {
		return status.New("bufferedWritable.Close", status.IOError, err)
	}
	return nil
}
