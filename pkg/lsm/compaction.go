package lsm

import (
	"fmt"
	"path/filepath"

	"github.com/cluso/lsmkv/pkg/env"
)

// FilterDecision is the outcome a CompactionFilter returns for one entry
// visited during compaction.
type FilterDecision int

const (
	FilterKeep FilterDecision = iota
	FilterChange
	FilterRemove
	FilterRemoveAndSkip
)

// CompactionFilter lets a column veto, rewrite or drop entries as they
// are merged. A column with no filter configured keeps every entry,
// which is also the behavior when Filter returns FilterKeep.
type CompactionFilter interface {
	Filter(level int, key, value []byte) (FilterDecision, []byte)
}

// levelConfig describes one level's capacity trigger in byte terms,
// following the common 10x level fan-out used by leveled compaction
// strategies.
type levelConfig struct {
	maxBytes int64
}

// LeveledCompactionStrategy decides which level to compact next and
// which tables participate, using a simple size-amplification trigger:
// once a level's total size exceeds its budget, it merges down into the
// next level.
type LeveledCompactionStrategy struct {
	levels []levelConfig
}

// DefaultLeveledCompaction returns a seven-level strategy with L0 budgeted
// at 4 tables worth of data and each subsequent level ten times larger,
// the conventional LSM fan-out.
func DefaultLeveledCompaction(baseTableBytes int64) *LeveledCompactionStrategy {
	if baseTableBytes <= 0 {
		baseTableBytes = 64 << 20
	}
	levels := make([]levelConfig, 7)
	budget := baseTableBytes * 4
	for i := range levels {
		levels[i] = levelConfig{maxBytes: budget}
		budget *= 10
	}
	return &LeveledCompactionStrategy{levels: levels}
}

// PickLevel returns the lowest level whose accumulated size exceeds its
// budget, or -1 if no level needs compaction.
func (s *LeveledCompactionStrategy) PickLevel(levelBytes []int64) int {
	for lvl, sz := range levelBytes {
		if lvl >= len(s.levels) {
			break
		}
		if sz > s.levels[lvl].maxBytes {
			return lvl
		}
	}
	return -1
}

// Compactor merges a set of input tables into a new table at level+1,
// applying the column's comparator and compaction filter. The merge
// operator it is given is stored but not called: merge entries are
// deduplicated like puts, keeping only the one with the highest Seq. A
// panic inside the user-supplied filter is recovered so one bad callback
// cannot take down a background worker.
type Compactor struct {
	env     *env.Environment
	cmp     Comparator
	filter  CompactionFilter
	merge   MergeOperator
	dir     string
	nextSeq func() int64
}

// NewCompactor builds a Compactor writing new table files into dir.
func NewCompactor(e *env.Environment, cmp Comparator, filter CompactionFilter, merge MergeOperator, dir string, nextSeq func() int64) *Compactor {
	return &Compactor{env: e, cmp: cmp, filter: filter, merge: merge, dir: dir, nextSeq: nextSeq}
}

// Compact merges inputs (already known to overlap in key range) into a
// single output table at outputLevel, deduplicating by key (newest Seq
// wins) and dropping entries the filter rejects.
func (c *Compactor) Compact(inputs []*SSTable, outputLevel int) (outputs []*SSTable, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lsm: compaction panic: %v", r)
		}
	}()

	merged, err := c.mergeInputs(inputs)
	if err != nil {
		return nil, err
	}
	if len(merged) == 0 {
		return nil, nil
	}

	path := filepath.Join(c.dir, fmt.Sprintf("%06d.sst", c.nextSeq()))
	out, err := WriteSSTable(c.env, path, c.cmp, merged, outputLevel)
	if err != nil {
		return nil, err
	}
	return []*SSTable{out}, nil
}

// mergeInputs reads every input table, deduplicates by key keeping the
// entry with the highest Seq, runs it through the compaction filter, and
// returns the result sorted by the column comparator.
func (c *Compactor) mergeInputs(inputs []*SSTable) ([]Entry, error) {
	byKey := map[string]Entry{}
	order := make([][]byte, 0)
	for _, t := range inputs {
		entries, err := t.AllEntries()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			k := string(e.Key)
			if cur, ok := byKey[k]; !ok || e.Seq > cur.Seq {
				if !ok {
					order = append(order, e.Key)
				}
				byKey[k] = e
			}
		}
	}

	sortByComparator(order, c.cmp)

	out := make([]Entry, 0, len(order))
	var skipUntil []byte
	for _, k := range order {
		e := byKey[string(k)]
		if skipUntil != nil && c.cmp.Compare(e.Key, skipUntil) <= 0 {
			continue
		}
		skipUntil = nil

		if e.Kind == OpDelete {
			continue // tombstone has served its purpose once merged to the bottom
		}
		if c.filter != nil {
			func() {
				defer func() { recover() }()
				decision, newVal := c.filter.Filter(0, e.Key, e.Value)
				switch decision {
				case FilterRemove:
					e.Kind = OpDelete
				case FilterRemoveAndSkip:
					e.Kind = OpDelete
					skipUntil = append([]byte(nil), e.Key...)
				case FilterChange:
					e.Value = newVal
				}
			}()
		}
		if e.Kind == OpDelete {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func sortByComparator(keys [][]byte, cmp Comparator) {
	// insertion sort is adequate here: order already arrives mostly
	// sorted because inputs are themselves sorted runs.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && cmp.Compare(keys[j-1], keys[j]) > 0; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}
