package kv

import "github.com/cluso/lsmkv/pkg/lsm"

// Direction is an Iterator's traversal order.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// Iterator walks a single column's visible key space in either
// direction, seeking to the first key greater-than-or-equal (Forward) or
// less-than-or-equal (Reverse) to a target, and wrapping to invalid
// rather than panicking when stepped past either end.
type Iterator struct {
	entries []lsm.Entry
	dir     Direction
	idx     int // -1 or len(entries) is the invalid position
}

// NewIterator builds an Iterator over a point-in-time snapshot of
// entries, already sorted by the column's comparator in ascending order.
func NewIterator(entries []lsm.Entry, dir Direction) *Iterator {
	it := &Iterator{entries: entries, dir: dir}
	it.SeekToFirst()
	return it
}

// SeekToFirst positions at the first entry in traversal order.
func (it *Iterator) SeekToFirst() {
	if it.dir == Forward {
		it.idx = 0
	} else {
		it.idx = len(it.entries) - 1
	}
}

// SeekToLast positions at the last entry in traversal order.
func (it *Iterator) SeekToLast() {
	if it.dir == Forward {
		it.idx = len(it.entries) - 1
	} else {
		it.idx = 0
	}
}

// Seek positions at the first entry that is >= target (Forward) or <=
// target (Reverse) under the comparator cmp, landing on Invalid if none
// qualifies.
func (it *Iterator) Seek(target []byte, cmp lsm.Comparator) {
	lo, hi := 0, len(it.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp.Compare(it.entries[mid].Key, target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if it.dir == Forward {
		it.idx = lo
		return
	}
	// Reverse: find the last entry <= target.
	if lo < len(it.entries) && cmp.Compare(it.entries[lo].Key, target) == 0 {
		it.idx = lo
		return
	}
	it.idx = lo - 1
}

// Valid reports whether the cursor is on a real entry.
func (it *Iterator) Valid() bool {
	return it.idx >= 0 && it.idx < len(it.entries)
}

// Next advances the cursor one step in traversal order. Stepping past
// the last element lands on Invalid; a further Next from Invalid wraps
// back to the first element rather than staying stuck, matching the
// wraparound behavior of a cyclic cursor.
func (it *Iterator) Next() {
	if !it.Valid() {
		it.SeekToFirst()
		return
	}
	if it.dir == Forward {
		it.idx++
	} else {
		it.idx--
	}
}

// Prev steps the cursor one position against traversal order, wrapping
// from Invalid back to the last element.
func (it *Iterator) Prev() {
	if !it.Valid() {
		it.SeekToLast()
		return
	}
	if it.dir == Forward {
		it.idx--
	} else {
		it.idx++
	}
}

// Entry returns the entry at the current cursor position. Callers must
// check Valid first.
func (it *Iterator) Entry() lsm.Entry { return it.entries[it.idx] }
