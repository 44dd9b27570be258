package lsm

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// BloomFilter is a fixed-size Bloom filter built once per SSTable and
// serialized alongside it, used by Engine.Get to skip a table without a
// block read when a key is provably absent.
type BloomFilter struct {
	bits       []byte
	numHashes  int
	numEntries int
}

// NewBloomFilter sizes a filter for expectedEntries keys at the given
// false-positive probability using the standard optimal-parameter
// formulas (m = -n*ln(p)/ln(2)^2, k = m/n*ln(2)).
func NewBloomFilter(expectedEntries int, falsePositiveRate float64) *BloomFilter {
	if expectedEntries < 1 {
		expectedEntries = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}
	n := float64(expectedEntries)
	m := math.Ceil(-n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2))
	k := int(math.Round(m / n * math.Ln2))
	if k < 1 {
		k = 1
	}
	numBits := int(m)
	if numBits < 8 {
		numBits = 8
	}
	return &BloomFilter{
		bits:      make([]byte, (numBits+7)/8),
		numHashes: k,
	}
}

func (f *BloomFilter) nBits() uint64 { return uint64(len(f.bits)) * 8 }

// locations returns the numHashes bit positions for key using double
// hashing (h1 + i*h2) to avoid computing numHashes independent hashes.
func (f *BloomFilter) locations(key []byte) []uint64 {
	h1 := xxhash.Sum64(key)
	h2 := xxhash.Sum64(append(binary.BigEndian.AppendUint64(nil, h1), key...))
	locs := make([]uint64, f.numHashes)
	for i := 0; i < f.numHashes; i++ {
		locs[i] = (h1 + uint64(i)*h2) % f.nBits()
	}
	return locs
}

// Add records key as present.
func (f *BloomFilter) Add(key []byte) {
	f.numEntries++
	for _, loc := range f.locations(key) {
		f.bits[loc/8] |= 1 << (loc % 8)
	}
}

// MayContain reports whether key could be present. False means
// definitely absent; true means possibly present.
func (f *BloomFilter) MayContain(key []byte) bool {
	for _, loc := range f.locations(key) {
		if f.bits[loc/8]&(1<<(loc%8)) == 0 {
			return false
		}
	}
	return true
}

// Marshal serializes the filter for embedding in an SSTable footer.
func (f *BloomFilter) Marshal() []byte {
	out := make([]byte, 8+len(f.bits))
	binary.BigEndian.PutUint32(out[0:4], uint32(f.numHashes))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(f.bits)))
	copy(out[8:], f.bits)
	return out
}

// UnmarshalBloomFilter parses a filter previously produced by Marshal.
func UnmarshalBloomFilter(b []byte) (*BloomFilter, error) {
	if len(b) < 8 {
		return nil, errShortBloom
	}
	numHashes := int(binary.BigEndian.Uint32(b[0:4]))
	numBits := int(binary.BigEndian.Uint32(b[4:8]))
	if len(b) < 8+numBits {
		return nil, errShortBloom
	}
	bits := make([]byte, numBits)
	copy(bits, b[8:8+numBits])
	return &BloomFilter{bits: bits, numHashes: numHashes}, nil
}
