//go:build linux

package env

import (
	"os"

	"golang.org/x/sys/unix"
)

// prefetch advises the kernel to read ahead off..off+n for f, backing
// RandomAccessFile.Prefetch on platforms where fadvise is available.
func prefetch(f *os.File, off, n int64) error {
	return unix.Fadvise(int(f.Fd()), off, n, unix.FADV_WILLNEED)
}

// invalidateCache advises the kernel to drop off..off+n from the page
// cache, backing WritableFile.InvalidateCache.
func invalidateCache(f *os.File, off, n int64) error {
	return unix.Fadvise(int(f.Fd()), off, n, unix.FADV_DONTNEED)
}
