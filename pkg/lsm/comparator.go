// Package lsm is the embedded log-structured merge-tree engine this
// module wraps: it owns the on-disk memtable/SSTable/compaction format
// and is treated by the rest of the module as an opaque storage
// dependency, addressed only through Comparator, CompactionFilter and
// Engine. Columns inject their own comparator and compaction filter;
// every SSTable block is Snappy-compressed, with no per-column choice.
package lsm

import "bytes"

// Comparator orders keys for one column. Engines never call bytes.Compare
// directly on stored keys — every ordering decision in memtable,
// SSTable and compaction goes through the column's Comparator.
type Comparator interface {
	Compare(a, b []byte) int
	Name() string
}

// bytewiseComparator is ordinary lexicographic byte comparison, the
// default for a byte-string-view key type.
type bytewiseComparator struct{}

func (bytewiseComparator) Compare(a, b []byte) int { return bytes.Compare(a, b) }
func (bytewiseComparator) Name() string            { return "lsmkv.bytewise" }

// BytewiseComparator is the default comparator for byte-string keys.
var BytewiseComparator Comparator = bytewiseComparator{}

// int64Comparator orders keys as big-endian-encoded signed 64-bit
// integers, the numeric comparator used for signed-int key types.
type int64Comparator struct{}

func (int64Comparator) Compare(a, b []byte) int {
	av, bv := decodeInt64(a), decodeInt64(b)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}
func (int64Comparator) Name() string { return "lsmkv.int64" }

// Int64Comparator is the numeric comparator for signed 64-bit int keys.
var Int64Comparator Comparator = int64Comparator{}

// uint64Comparator orders keys as big-endian-encoded unsigned 64-bit
// integers.
type uint64Comparator struct{}

func (uint64Comparator) Compare(a, b []byte) int {
	av, bv := decodeUint64(a), decodeUint64(b)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}
func (uint64Comparator) Name() string { return "lsmkv.uint64" }

// Uint64Comparator is the numeric comparator for unsigned 64-bit int keys.
var Uint64Comparator Comparator = uint64Comparator{}

// reverseComparator sorts lexicographically in reverse, with one
// unintuitive exception: a shorter key always sorts before a longer one,
// regardless of content. This mirrors the reverse comparator of the
// engines it is modeled on and must not be "fixed" into a plain
// reversed byte compare — code elsewhere relies on the exact ordering.
type reverseComparator struct{}

func (reverseComparator) Compare(a, b []byte) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return -bytes.Compare(a, b)
}
func (reverseComparator) Name() string { return "lsmkv.reverse" }

// ReverseComparator is the "shorter-before-longer, else reverse
// lexicographic" comparator for reverse byte-string keys.
var ReverseComparator Comparator = reverseComparator{}

func decodeInt64(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func decodeUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
