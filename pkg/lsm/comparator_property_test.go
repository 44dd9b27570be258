package lsm

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// sign normalizes a Compare result to -1, 0, or 1 so properties can
// assert on direction without depending on magnitude.
func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestComparatorInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	comparators := []Comparator{BytewiseComparator, ReverseComparator, Int64Comparator, Uint64Comparator}

	for _, cmp := range comparators {
		properties := gopter.NewProperties(parameters)

		properties.Property(cmp.Name()+": reflexive", prop.ForAll(
			func(a []byte) bool {
				return cmp.Compare(a, a) == 0
			},
			gen.SliceOf(gen.UInt8()),
		))

		properties.Property(cmp.Name()+": antisymmetric", prop.ForAll(
			func(a, b []byte) bool {
				return sign(cmp.Compare(a, b)) == -sign(cmp.Compare(b, a))
			},
			gen.SliceOf(gen.UInt8()),
			gen.SliceOf(gen.UInt8()),
		))

		properties.TestingRun(t)
	}
}

func TestReverseComparatorShorterAlwaysSortsFirst(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	properties.Property("a shorter key sorts before a longer one regardless of content", prop.ForAll(
		func(shorter, longer []byte) bool {
			if len(shorter) >= len(longer) {
				return true
			}
			return ReverseComparator.Compare(shorter, longer) < 0 &&
				ReverseComparator.Compare(longer, shorter) > 0
		},
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.UInt8()),
	))
	properties.TestingRun(t)
}

func TestNumericComparatorsOrderByDecodedValue(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	properties.Property("Int64Comparator agrees with signed numeric order", prop.ForAll(
		func(a, b int64) bool {
			var want int
			switch {
			case a < b:
				want = -1
			case a > b:
				want = 1
			}
			return sign(Int64Comparator.Compare(encodeInt64ForTest(a), encodeInt64ForTest(b))) == want
		},
		gen.Int64(),
		gen.Int64(),
	))
	properties.Property("Uint64Comparator agrees with unsigned numeric order", prop.ForAll(
		func(a, b uint64) bool {
			var want int
			switch {
			case a < b:
				want = -1
			case a > b:
				want = 1
			}
			return sign(Uint64Comparator.Compare(encodeUint64ForTest(a), encodeUint64ForTest(b))) == want
		},
		gen.UInt64(),
		gen.UInt64(),
	))
	properties.TestingRun(t)
}

func encodeUint64ForTest(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
