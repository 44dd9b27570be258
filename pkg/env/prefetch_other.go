//go:build !linux

package env

import "os"

// prefetch is a no-op outside Linux: fadvise has no portable equivalent,
// and the engine treats a failed prefetch advisory as non-fatal.
func prefetch(f *os.File, off, n int64) error { return nil }

func invalidateCache(f *os.File, off, n int64) error { return nil }
