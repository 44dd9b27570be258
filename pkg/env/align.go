package env

// Alignment holds the direct-I/O block alignment for a file. An
// Alignment of 0 means direct I/O is disabled and every predicate
// below trivially holds.
type Alignment int64

// Align rounds x down to the nearest multiple of a. a == 0 disables
// alignment and Align is the identity.
func (a Alignment) Align(x int64) int64 {
	if a == 0 {
		return x
	}
	return x - (x % int64(a))
}

// Blocks returns the number of whole a-sized blocks in x.
func (a Alignment) Blocks(x int64) int64 {
	if a == 0 {
		return x
	}
	return x / int64(a)
}

// Remain returns the distance from x up to the next alignment boundary.
func (a Alignment) Remain(x int64) int64 {
	if a == 0 {
		return 0
	}
	rem := x - a.Align(x)
	return int64(a) - rem
}

// RoundUp rounds x up to the next multiple of a.
func (a Alignment) RoundUp(x int64) int64 {
	if a == 0 {
		return x
	}
	if rem := x % int64(a); rem != 0 {
		return x + (int64(a) - rem)
	}
	return x
}

// AlignedOffset reports whether off is a multiple of a.
func (a Alignment) AlignedOffset(off int64) bool {
	if a == 0 {
		return true
	}
	return off%int64(a) == 0
}

// AlignedSize reports whether the given size is a multiple of a.
func (a Alignment) AlignedSize(size int64) bool {
	return a.AlignedOffset(size)
}

// AlignedBuffer reports whether the byte slice's length satisfies the
// alignment requirement; its capacity is not checked. This stands in for the original's
// pointer-address check, which has no equivalent once a buffer is a Go
// slice backed by the runtime allocator rather than a raw malloc'd block.
func (a Alignment) AlignedBuffer(buf []byte) bool {
	return a.AlignedSize(int64(len(buf)))
}

// Enabled reports whether direct I/O alignment is in effect.
func (a Alignment) Enabled() bool { return a != 0 }
