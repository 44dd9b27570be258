package pools

import (
	"sync"
)

// Uint64Pool pools slices of uint64 for sequence-number lists and
// SSTable/block offset collections built during compaction and
// iteration, so a merge over many files doesn't churn the allocator
// on every step.
type Uint64Pool struct {
	small  sync.Pool // <= 16 elements
	medium sync.Pool // <= 64 elements
	large  sync.Pool // <= 256 elements
}

// NewUint64Pool creates a new uint64 slice pool.
func NewUint64Pool() *Uint64Pool {
	return &Uint64Pool{
		small: sync.Pool{
			New: func() any {
				s := make([]uint64, 0, 16)
				return &s
			},
		},
		medium: sync.Pool{
			New: func() any {
				s := make([]uint64, 0, 64)
				return &s
			},
		},
		large: sync.Pool{
			New: func() any {
				s := make([]uint64, 0, 256)
				return &s
			},
		},
	}
}

func (p *Uint64Pool) classFor(size int) *sync.Pool {
	switch {
	case size <= 16:
		return &p.small
	case size <= 64:
		return &p.medium
	case size <= 256:
		return &p.large
	default:
		return nil
	}
}

// Get returns a uint64 slice with at least the requested capacity.
func (p *Uint64Pool) Get(size int) []uint64 {
	pool := p.classFor(size)
	if pool == nil {
		return make([]uint64, 0, size)
	}

	sp, ok := pool.Get().(*[]uint64)
	if !ok || cap(*sp) < size {
		return make([]uint64, 0, size)
	}
	return (*sp)[:0]
}

// Put returns a uint64 slice to the pool.
func (p *Uint64Pool) Put(s []uint64) {
	if cap(s) > 10000 {
		return // don't pool very large slices
	}
	pool := p.classFor(cap(s))
	if pool == nil {
		return
	}
	s = s[:0]
	pool.Put(&s)
}

// defaultUint64Pool backs the package-level GetUint64s/PutUint64s
// helpers for callers that want a shared pool of sequence-number or
// offset slices without constructing their own Uint64Pool.
var defaultUint64Pool = NewUint64Pool()

// GetUint64s returns a uint64 slice from the default pool.
func GetUint64s(size int) []uint64 {
	return defaultUint64Pool.Get(size)
}

// PutUint64s returns a uint64 slice to the default pool.
func PutUint64s(s []uint64) {
	defaultUint64Pool.Put(s)
}
