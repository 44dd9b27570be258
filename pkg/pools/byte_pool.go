package pools

import (
	"sync"
)

// Size classes a BytePool buckets its sync.Pools by. They track the
// shapes that actually cross the write path: an encoded key header is
// tiny, a typical row key is small, a compacted value or WAL record is
// medium-to-large, and an SSTable block buffer is huge.
const (
	TinySize   = 16    // key headers, varint-encoded lengths
	SmallSize  = 64    // typical row keys
	MediumSize = 256   // values, serialized cells
	LargeSize  = 1024  // larger values, merge results
	HugeSize   = 4096  // WAL record batches, SSTable block assembly
	MaxPool    = 65536 // not consulted by BytePool; anything above HugeSize is allocated directly
)

// BytePool buckets reusable byte slices into size classes so the write
// and recovery paths stop paying allocator cost for scratch buffers
// that live for a single call.
type BytePool struct {
	tiny   sync.Pool // <= 16 bytes
	small  sync.Pool // <= 64 bytes
	medium sync.Pool // <= 256 bytes
	large  sync.Pool // <= 1024 bytes
	huge   sync.Pool // <= 4096 bytes
}

// NewBytePool creates a new byte pool with pre-allocated buffers.
func NewBytePool() *BytePool {
	return &BytePool{
		tiny: sync.Pool{
			New: func() any {
				b := make([]byte, 0, TinySize)
				return &b
			},
		},
		small: sync.Pool{
			New: func() any {
				b := make([]byte, 0, SmallSize)
				return &b
			},
		},
		medium: sync.Pool{
			New: func() any {
				b := make([]byte, 0, MediumSize)
				return &b
			},
		},
		large: sync.Pool{
			New: func() any {
				b := make([]byte, 0, LargeSize)
				return &b
			},
		},
		huge: sync.Pool{
			New: func() any {
				b := make([]byte, 0, HugeSize)
				return &b
			},
		},
	}
}

// classFor returns the pool bucket a request of the given size should
// draw from, or nil if the request is too large to pool at all.
func (p *BytePool) classFor(size int) *sync.Pool {
	switch {
	case size <= TinySize:
		return &p.tiny
	case size <= SmallSize:
		return &p.small
	case size <= MediumSize:
		return &p.medium
	case size <= LargeSize:
		return &p.large
	case size <= HugeSize:
		return &p.huge
	default:
		return nil
	}
}

// Get returns a byte slice with at least the requested capacity.
// The returned slice has length 0; a pooled slice has its size class's
// capacity, which may exceed the requested size.
func (p *BytePool) Get(size int) []byte {
	pool := p.classFor(size)
	if pool == nil {
		return make([]byte, 0, size)
	}

	bp, ok := pool.Get().(*[]byte)
	if !ok || cap(*bp) < size {
		return make([]byte, 0, size)
	}
	return (*bp)[:0]
}

// GetSized returns a byte slice with exactly the requested length.
func (p *BytePool) GetSized(size int) []byte {
	b := p.Get(size)
	return b[:size]
}

// Put returns a byte slice to the pool for reuse.
// Slices whose capacity exceeds HugeSize are not pooled.
func (p *BytePool) Put(b []byte) {
	pool := p.classFor(cap(b))
	if pool == nil {
		return
	}
	b = b[:0]
	pool.Put(&b)
}

// defaultBytePool backs the package-level GetBytes/PutBytes helpers
// for callers that want shared pooling without constructing their own
// BytePool. pkg/wal's record encoder keeps its own private BytePool
// instance instead, since its buffers have a single, predictable size
// class and don't need to share the default pool's buckets.
var defaultBytePool = NewBytePool()

// GetBytes returns a byte slice from the default pool.
func GetBytes(size int) []byte {
	return defaultBytePool.Get(size)
}

// GetBytesSized returns a byte slice with exact length from the default pool.
func GetBytesSized(size int) []byte {
	return defaultBytePool.GetSized(size)
}

// PutBytes returns a byte slice to the default pool.
func PutBytes(b []byte) {
	defaultBytePool.Put(b)
}
