// Package column implements a column family: a named, independently
// configured key space backed by its own lsm.Engine and wal.WAL but
// sharing the Database's write path and environment. Descriptors are
// checked with go-playground/validator struct tags.
package column

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/cluso/lsmkv/pkg/lsm"
)

var validate = validator.New()

// KeyType drives the comparator a Descriptor deduces when none is set
// explicitly.
type KeyType int

const (
	KeyTypeBytes KeyType = iota
	KeyTypeInt64
	KeyTypeUint64
	KeyTypeReverseBytes
)

// PrefixExtractor derives a prefix from a full key, used by bloom
// filters and prefix-seek iterators to narrow the search space.
type PrefixExtractor func(key []byte) []byte

// FixedPrefix returns a PrefixExtractor that takes the first n bytes of
// a key, or the whole key if it is shorter than n.
func FixedPrefix(n int) PrefixExtractor {
	return func(key []byte) []byte {
		if len(key) < n {
			return key
		}
		return key[:n]
	}
}

// Descriptor is the immutable configuration for one column, supplied at
// Database.Open time.
type Descriptor struct {
	Name              string  `validate:"required,min=1,max=255"`
	KeyType           KeyType `validate:"gte=0,lte=3"`
	WriteBufferSize   int64   `validate:"gte=0"`
	ArenaBlockSize    int64   `validate:"gte=0"`
	BaseTableBytes    int64   `validate:"gte=0"`
	MaxWriteBufferNum int     `validate:"gte=0"`

	Comparator        lsm.Comparator
	PrefixExtractor   PrefixExtractor
	CompactionFilter  lsm.CompactionFilter
	MergeOperator     lsm.MergeOperator

	// UseMmapReads serves SSTable block reads from a memory-mapped view
	// of each table file instead of opening the file per read. Worth
	// enabling for columns with a large, mostly-resident working set.
	UseMmapReads bool
}

// Validate checks struct-tag constraints and fills in the comparator
// deduced from KeyType when the caller left Comparator nil.
func (d *Descriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("column: invalid descriptor for %q: %w", d.Name, err)
	}
	if d.Comparator == nil {
		d.Comparator = comparatorForKeyType(d.KeyType)
	}
	clampWriteBuffer(d)
	return nil
}

func comparatorForKeyType(kt KeyType) lsm.Comparator {
	switch kt {
	case KeyTypeInt64:
		return lsm.Int64Comparator
	case KeyTypeUint64:
		return lsm.Uint64Comparator
	case KeyTypeReverseBytes:
		return lsm.ReverseComparator
	default:
		return lsm.BytewiseComparator
	}
}

const (
	defaultWriteBufferSize = 64 << 20
	minWriteBufferSize     = 1 << 20
	maxWriteBufferSize     = 4 << 30
	defaultArenaBlockSize  = 1 << 20
)

// clampWriteBuffer fills in defaults and clamps the write-buffer size to
// [1 MiB, 4 GiB], so a misconfigured column can't allocate unbounded
// memory or thrash on tiny flushes. A zero arena block size defaults to
// WriteBufferSize/8, but not less than 1 MiB; a non-zero arena block
// size is kept as given and is not clamped.
func clampWriteBuffer(d *Descriptor) {
	if d.WriteBufferSize == 0 {
		d.WriteBufferSize = defaultWriteBufferSize
	}
	if d.WriteBufferSize < minWriteBufferSize {
		d.WriteBufferSize = minWriteBufferSize
	}
	if d.WriteBufferSize > maxWriteBufferSize {
		d.WriteBufferSize = maxWriteBufferSize
	}
	if d.ArenaBlockSize == 0 {
		d.ArenaBlockSize = d.WriteBufferSize / 8
		if d.ArenaBlockSize < defaultArenaBlockSize {
			d.ArenaBlockSize = defaultArenaBlockSize
		}
	}
	if d.MaxWriteBufferNum == 0 {
		d.MaxWriteBufferNum = 2
	}
}
