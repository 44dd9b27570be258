package kv

import (
	"bytes"

	"github.com/cluso/lsmkv/pkg/lsm"
)

// Index is a secondary index stored as its own column: keys are
// prefix-encoded as <indexed-value><primary-key> so a forward scan over
// one prefix yields every primary key for that value in primary-key
// order.
type Index struct {
	prefixLen func(indexedValue []byte) int
}

// NewIndex builds an Index that stores prefixLen (commonly a fixed width,
// or len(v) for a variable-width value with no embedded separator).
// EncodeKey, DecodePrimaryKey and the scans do not call it: they always
// use the whole indexed value as the prefix.
func NewIndex(prefixLen func(indexedValue []byte) int) *Index {
	return &Index{prefixLen: prefixLen}
}

// EncodeKey builds the composite key stored in the index column for one
// (indexedValue, primaryKey) pair.
func (x *Index) EncodeKey(indexedValue, primaryKey []byte) []byte {
	out := make([]byte, 0, len(indexedValue)+len(primaryKey))
	out = append(out, indexedValue...)
	out = append(out, primaryKey...)
	return out
}

// DecodePrimaryKey strips the indexed-value prefix from an index column
// key, returning the primary key it maps to.
func (x *Index) DecodePrimaryKey(indexKey, indexedValue []byte) []byte {
	if !bytes.HasPrefix(indexKey, indexedValue) {
		return nil
	}
	return indexKey[len(indexedValue):]
}

// ScanForward returns every primary key indexed under indexedValue, in
// primary-key order, by forward-scanning the prefix range of entries.
func (x *Index) ScanForward(entries []lsm.Entry, indexedValue []byte) [][]byte {
	var out [][]byte
	for _, e := range entries {
		if !bytes.HasPrefix(e.Key, indexedValue) {
			continue
		}
		if pk := x.DecodePrimaryKey(e.Key, indexedValue); pk != nil {
			out = append(out, pk)
		}
	}
	return out
}

// ScanReverse returns the same primary keys as ScanForward but in
// reverse primary-key order. The index itself is stored forward-sorted,
// so a reverse read does a forward scan of the prefix range and walks
// the collected results backward rather than maintaining a second,
// reverse-ordered copy of the index.
func (x *Index) ScanReverse(entries []lsm.Entry, indexedValue []byte) [][]byte {
	fwd := x.ScanForward(entries, indexedValue)
	out := make([][]byte, len(fwd))
	for i, k := range fwd {
		out[len(fwd)-1-i] = k
	}
	return out
}
