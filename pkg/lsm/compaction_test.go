package lsm

import (
	"path/filepath"
	"testing"

	"github.com/cluso/lsmkv/pkg/env"
)

func TestCompactorDedupesByHighestSeq(t *testing.T) {
	e := env.New(env.Options{})
	defer e.Join()
	dir := t.TempDir()

	t1, err := WriteSSTable(e, filepath.Join(dir, "000001.sst"), BytewiseComparator,
		[]Entry{{Key: []byte("k"), Value: []byte("old"), Kind: OpPut, Seq: 1}}, 0)
	if err != nil {
		t.Fatalf("WriteSSTable t1: %v", err)
	}
	t2, err := WriteSSTable(e, filepath.Join(dir, "000002.sst"), BytewiseComparator,
		[]Entry{{Key: []byte("k"), Value: []byte("new"), Kind: OpPut, Seq: 2}}, 0)
	if err != nil {
		t.Fatalf("WriteSSTable t2: %v", err)
	}

	seq := 2
	c := NewCompactor(e, BytewiseComparator, nil, nil, dir, func() int64 {
		seq++
		return int64(seq)
	})
	outputs, err := c.Compact([]*SSTable{t1, t2}, 1)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output table, got %d", len(outputs))
	}
	got, ok, err := outputs[0].Get([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("Get on compacted output: ok=%v err=%v", ok, err)
	}
	if string(got.Value) != "new" {
		t.Fatalf("compaction kept %q, want the higher-Seq value %q", got.Value, "new")
	}
}

// dropFilter removes every entry it sees, exercising FilterRemove.
type dropFilter struct{}

func (dropFilter) Filter(level int, key, value []byte) (FilterDecision, []byte) {
	return FilterRemove, nil
}

func TestCompactorAppliesRemoveFilter(t *testing.T) {
	e := env.New(env.Options{})
	defer e.Join()
	dir := t.TempDir()

	t1, err := WriteSSTable(e, filepath.Join(dir, "000001.sst"), BytewiseComparator,
		[]Entry{{Key: []byte("k"), Value: []byte("v"), Kind: OpPut, Seq: 1}}, 0)
	if err != nil {
		t.Fatalf("WriteSSTable: %v", err)
	}

	c := NewCompactor(e, BytewiseComparator, dropFilter{}, nil, dir, func() int64 { return 99 })
	outputs, err := c.Compact([]*SSTable{t1}, 1)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if len(outputs) != 0 {
		t.Fatalf("expected compaction to drop every entry, got %d output tables", len(outputs))
	}
}

func TestLeveledCompactionPicksFirstOverBudgetLevel(t *testing.T) {
	s := DefaultLeveledCompaction(100)
	sizes := []int64{50, 10000, 0}
	if lvl := s.PickLevel(sizes); lvl != 1 {
		t.Fatalf("PickLevel = %d, want 1", lvl)
	}
	if lvl := s.PickLevel([]int64{0, 0, 0}); lvl != -1 {
		t.Fatalf("PickLevel with nothing over budget = %d, want -1", lvl)
	}
}
