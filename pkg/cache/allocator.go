package cache

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Allocator hands out fixed-size slabs from one mlocked arena, avoiding
// a per-block allocation and keeping cached bytes resident instead of
// eligible for swap. If mlock fails (commonly because RLIMIT_MEMLOCK is
// not raised), the arena still works as a plain heap-backed buffer; it
// just loses the swap-resistance guarantee.
type Allocator struct {
	mu     sync.Mutex
	arena  []byte
	offset int
	locked bool
}

// NewAllocator reserves a single arena of size bytes and attempts to
// mlock it.
func NewAllocator(size int64) *Allocator {
	if size <= 0 {
		size = 1 << 20
	}
	a := &Allocator{arena: make([]byte, size)}
	if err := unix.Mlock(a.arena); err == nil {
		a.locked = true
	}
	return a
}

// Copy writes src into the next free slab of the arena and returns the
// slab, or (nil, false) if the arena has no room left, in which case the
// caller should fall back to its own allocation.
func (a *Allocator) Copy(src []byte) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.offset+len(src) > len(a.arena) {
		return nil, false
	}
	dst := a.arena[a.offset : a.offset+len(src)]
	copy(dst, src)
	a.offset += len(src)
	return dst, true
}

// Locked reports whether the arena is actually pinned in physical
// memory.
func (a *Allocator) Locked() bool { return a.locked }

// Reset reclaims the whole arena for reuse. Existing slabs handed out by
// Copy must not be referenced after this call.
func (a *Allocator) Reset() {
	a.mu.Lock()
	a.offset = 0
	a.mu.Unlock()
}

// Close unlocks the arena's memory.
func (a *Allocator) Close() error {
	if !a.locked {
		return nil
	}
	return unix.Munlock(a.arena)
}
