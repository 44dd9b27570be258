package lsm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cluso/lsmkv/pkg/env"
	"github.com/cluso/lsmkv/pkg/logging"
)

// EngineOptions configures one column's Engine.
type EngineOptions struct {
	Dir              string
	Column           string
	Comparator       Comparator
	CompactionFilter CompactionFilter
	MergeOperator    MergeOperator
	WriteBufferSize  int64
	BaseTableBytes   int64
	Log              logging.Logger
	Listener         *env.EventListener
	UseMmapReads     bool
}

// Engine owns one column's on-disk state: the active memtable, the
// immutable memtables awaiting flush, and the leveled set of SSTables.
// It is the module's stand-in for an embedded storage library: callers
// never touch files directly, only Engine's Put/Get/Delete/Scan surface.
type Engine struct {
	opts EngineOptions
	env  *env.Environment
	cmp  Comparator
	log  logging.Logger

	mu        sync.RWMutex
	active    *MemTable
	immutable []*MemTable
	levels    [][]*SSTable // levels[0] is L0

	seq      atomic.Uint64
	fileSeq  atomic.Int64
	closed   atomic.Bool
	compactor *Compactor
	strategy  *LeveledCompactionStrategy
}

// Open creates or reopens an Engine rooted at opts.Dir, discovering any
// existing SSTables left from a prior run. Every table found is loaded
// into level 0; the filename records only the table's sequence number.
func Open(e *env.Environment, opts EngineOptions) (*Engine, error) {
	if opts.Comparator == nil {
		opts.Comparator = BytewiseComparator
	}
	if opts.WriteBufferSize <= 0 {
		opts.WriteBufferSize = 64 << 20
	}
	if opts.Log == nil {
		opts.Log = logging.NewDefaultLogger()
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, err
	}

	eng := &Engine{
		opts:   opts,
		env:    e,
		cmp:    opts.Comparator,
		log:    opts.Log,
		active: NewMemTable(opts.Comparator),
		levels: make([][]*SSTable, 7),
	}
	eng.strategy = DefaultLeveledCompaction(opts.BaseTableBytes)
	eng.compactor = NewCompactor(e, opts.Comparator, opts.CompactionFilter, opts.MergeOperator, opts.Dir, func() int64 {
		return eng.fileSeq.Add(1)
	})

	if err := eng.loadExisting(); err != nil {
		return nil, err
	}
	return eng, nil
}

func (e *Engine) loadExisting() error {
	entries, err := os.ReadDir(e.opts.Dir)
	if err != nil {
		return err
	}
	var maxSeq int64
	for _, de := range entries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".sst" {
			continue
		}
		var seq, level int
		if _, err := fmt.Sscanf(de.Name(), "%06d.sst", &seq); err != nil {
			continue
		}
		path := filepath.Join(e.opts.Dir, de.Name())
		t, err := OpenSSTable(path, e.cmp, level, e.opts.UseMmapReads)
		if err != nil {
			e.log.Warn("skipping unreadable table on open", logging.Path(path), logging.Error(err))
			continue
		}
		e.levels[0] = append(e.levels[0], t)
		if int64(seq) > maxSeq {
			maxSeq = int64(seq)
		}
	}
	e.fileSeq.Store(maxSeq)
	return nil
}

func (e *Engine) nextSeq() uint64 { return e.seq.Add(1) }

// Put writes key=value, visible to subsequent Get/Scan calls.
func (e *Engine) Put(key, value []byte) error {
	return e.write(key, value, OpPut)
}

// Delete tombstones key.
func (e *Engine) Delete(key []byte) error {
	return e.write(key, nil, OpDelete)
}

// Merge queues a merge operand for key, resolved against the existing
// value by the column's MergeOperator on the next read or compaction.
func (e *Engine) Merge(key, operand []byte) error {
	if e.opts.MergeOperator == nil {
		return e.write(key, operand, OpPut)
	}
	return e.write(key, operand, OpMerge)
}

// DeleteRange tombstones every key in [begin, end).
func (e *Engine) DeleteRange(begin, end []byte) error {
	return e.write(begin, end, OpDeleteRange)
}

func (e *Engine) write(key, value []byte, kind OpKind) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	e.mu.Lock()
	e.active.Put(key, value, kind, e.nextSeq())
	shouldFlush := e.active.Size() >= e.opts.WriteBufferSize
	e.mu.Unlock()

	if shouldFlush {
		if err := e.rotateAndFlush(); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the current value for key, resolving merge operand chains
// via the column's MergeOperator, and reporting ErrKeyNotFound if the
// newest record is a tombstone or the key was never written.
func (e *Engine) Get(key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	e.mu.RLock()
	active := e.active
	immutable := append([]*MemTable(nil), e.immutable...)
	levels := make([][]*SSTable, len(e.levels))
	copy(levels, e.levels)
	e.mu.RUnlock()

	var operands [][]byte
	if ent, ok := active.Get(key); ok {
		return e.resolve(ent, operands, key)
	}
	for i := len(immutable) - 1; i >= 0; i-- {
		if ent, ok := immutable[i].Get(key); ok {
			return e.resolve(ent, operands, key)
		}
	}
	for _, level := range levels {
		for i := len(level) - 1; i >= 0; i-- {
			ent, ok, err := level[i].Get(key)
			if err != nil {
				return nil, err
			}
			if ok {
				return e.resolve(ent, operands, key)
			}
		}
	}
	return nil, ErrKeyNotFound
}

func (e *Engine) resolve(ent Entry, operands [][]byte, key []byte) ([]byte, error) {
	switch ent.Kind {
	case OpDelete, OpDeleteRange:
		return nil, ErrKeyNotFound
	case OpMerge:
		if e.opts.MergeOperator == nil {
			return ent.Value, nil
		}
		merged, err := e.opts.MergeOperator.FullMerge(key, nil, append(operands, ent.Value))
		if err != nil {
			return nil, err
		}
		return merged, nil
	default:
		return ent.Value, nil
	}
}

// rotateAndFlush seals the active memtable and writes it out as a new L0
// table. write calls it synchronously, on the writing goroutine, once the
// active memtable crosses its size threshold.
func (e *Engine) rotateAndFlush() error {
	e.mu.Lock()
	sealed := e.active
	e.active = NewMemTable(e.cmp)
	e.immutable = append(e.immutable, sealed)
	e.mu.Unlock()

	return e.Flush()
}

// Flush writes every pending immutable memtable out to an L0 SSTable.
func (e *Engine) Flush() error {
	e.mu.Lock()
	pending := e.immutable
	e.immutable = nil
	e.mu.Unlock()

	if len(pending) > 0 && e.opts.Listener != nil {
		e.opts.Listener.OnFlushBegin(e.opts.Column)
	}

	var written int64
	for _, mt := range pending {
		snap := mt.Snapshot()
		if len(snap) == 0 {
			continue
		}
		path := filepath.Join(e.opts.Dir, fmt.Sprintf("%06d.sst", e.fileSeq.Add(1)))
		t, err := WriteSSTable(e.env, path, e.cmp, snap, 0)
		if err != nil {
			if e.opts.Listener != nil {
				e.opts.Listener.OnBackgroundError(e.opts.Column, env.SeverityHardError, err, false)
			}
			return err
		}
		written += t.FileSize()
		e.mu.Lock()
		e.levels[0] = append(e.levels[0], t)
		e.mu.Unlock()
		if e.opts.Listener != nil {
			e.opts.Listener.OnTableFileCreated(e.opts.Column, path)
		}
	}
	if len(pending) > 0 && e.opts.Listener != nil {
		e.opts.Listener.OnFlushCompleted(e.opts.Column, written)
	}
	return nil
}

// Compact runs one round of leveled compaction if any level exceeds its
// size budget. It runs on the calling goroutine; ScheduleCompaction is
// what queues it on the environment's low-priority pool.
func (e *Engine) Compact(ctx context.Context) error {
	e.mu.RLock()
	sizes := make([]int64, len(e.levels))
	for i, lvl := range e.levels {
		for _, t := range lvl {
			sizes[i] += t.FileSize()
		}
	}
	e.mu.RUnlock()

	lvl := e.strategy.PickLevel(sizes)
	if lvl < 0 {
		return nil
	}

	e.mu.RLock()
	inputs := append([]*SSTable(nil), e.levels[lvl]...)
	e.mu.RUnlock()
	if len(inputs) == 0 {
		return nil
	}

	outputs, err := e.compactor.Compact(inputs, lvl+1)
	if err != nil {
		if e.opts.Listener != nil {
			e.opts.Listener.OnBackgroundError(e.opts.Column, env.SeverityHardError, err, true)
		}
		return err
	}

	e.mu.Lock()
	e.levels[lvl] = nil
	if lvl+1 < len(e.levels) {
		e.levels[lvl+1] = append(e.levels[lvl+1], outputs...)
	}
	e.mu.Unlock()

	for _, t := range inputs {
		t.Close()
		os.Remove(t.Path())
	}
	if e.opts.Listener != nil {
		e.opts.Listener.OnCompactionCompleted(e.opts.Column, len(inputs), len(outputs))
	}
	return nil
}

// ScheduleCompaction enqueues Compact on the environment's low-priority
// background pool, returning immediately.
func (e *Engine) ScheduleCompaction() {
	e.env.Pools.Low.Schedule(func(ctx context.Context) {
		if err := e.Compact(ctx); err != nil {
			e.log.Error("background compaction failed", logging.Error(err))
		}
	}, nil)
}

// Stats reports a point-in-time summary of the engine's table layout.
type Stats struct {
	NumLevels    int
	TablesPerLvl []int
	BytesPerLvl  []int64
	MemtableSize int64
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Stats{NumLevels: len(e.levels), TablesPerLvl: make([]int, len(e.levels)), BytesPerLvl: make([]int64, len(e.levels))}
	for i, lvl := range e.levels {
		s.TablesPerLvl[i] = len(lvl)
		for _, t := range lvl {
			s.BytesPerLvl[i] += t.FileSize()
		}
	}
	s.MemtableSize = e.active.Size()
	return s
}

// Close flushes pending writes, including the still-open active
// memtable, and marks the engine unusable.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.mu.Lock()
	if e.active.Len() > 0 {
		e.immutable = append(e.immutable, e.active)
		e.active = NewMemTable(e.cmp)
	}
	e.mu.Unlock()
	if err := e.Flush(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, level := range e.levels {
		for _, t := range level {
			if err := t.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Scanner iterates keys in [lo, hi) order across memtables and levels,
// merging by key with the highest Seq winning ties, the read path Row
// and Index scans build on.
type Scanner struct {
	entries []Entry
	idx     int
}

// NewScanner builds a point-in-time merged view of every visible entry in
// [lo, hi). A nil hi means unbounded.
func (e *Engine) NewScanner(lo, hi []byte) (*Scanner, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	byKey := map[string]Entry{}
	var order [][]byte
	consider := func(ent Entry) {
		if lo != nil && e.cmp.Compare(ent.Key, lo) < 0 {
			return
		}
		if hi != nil && e.cmp.Compare(ent.Key, hi) >= 0 {
			return
		}
		k := string(ent.Key)
		if cur, ok := byKey[k]; !ok || ent.Seq > cur.Seq {
			if !ok {
				order = append(order, ent.Key)
			}
			byKey[k] = ent
		}
	}

	for _, ent := range e.active.Snapshot() {
		consider(ent)
	}
	for _, mt := range e.immutable {
		for _, ent := range mt.Snapshot() {
			consider(ent)
		}
	}
	for _, lvl := range e.levels {
		for _, t := range lvl {
			all, err := t.AllEntries()
			if err != nil {
				return nil, err
			}
			for _, ent := range all {
				consider(ent)
			}
		}
	}

	sort.Slice(order, func(i, j int) bool { return e.cmp.Compare(order[i], order[j]) < 0 })

	out := make([]Entry, 0, len(order))
	for _, k := range order {
		ent := byKey[string(k)]
		if ent.Kind == OpDelete || ent.Kind == OpDeleteRange {
			continue
		}
		out = append(out, ent)
	}
	return &Scanner{entries: out, idx: -1}, nil
}

func (s *Scanner) Next() bool {
	s.idx++
	return s.idx < len(s.entries)
}

func (s *Scanner) Entry() Entry { return s.entries[s.idx] }
