package column

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cluso/lsmkv/pkg/env"
	"github.com/cluso/lsmkv/pkg/lsm"
	"github.com/cluso/lsmkv/pkg/logging"
	"github.com/cluso/lsmkv/pkg/wal"
)

// StallCondition is a column's current write-admission state, driven by
// how far its level-0 table count has grown past fixed thresholds.
type StallCondition int

const (
	StallNormal StallCondition = iota
	StallDelayed
	StallStopped
)

func (s StallCondition) String() string {
	switch s {
	case StallDelayed:
		return "delayed"
	case StallStopped:
		return "stopped"
	default:
		return "normal"
	}
}

// Column is one open column family: a name, its descriptor, the engine
// and WAL backing it, and the stall state writes check before landing.
type Column struct {
	id         uint32
	desc       Descriptor
	engine     *lsm.Engine
	wal        *wal.WAL
	log        logging.Logger
	env        *env.Environment

	mu       sync.RWMutex
	stall    StallCondition
	stallCond *env.Cond
	stallMu  sync.Mutex

	seq atomic.Uint64
}

// Open creates or reopens a column's engine and WAL under dir/<name>.
func Open(e *env.Environment, id uint32, desc Descriptor, dir string, log logging.Logger, listener *env.EventListener) (*Column, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	colDir := dir + "/" + desc.Name

	eng, err := lsm.Open(e, lsm.EngineOptions{
		Dir:              colDir,
		Column:           desc.Name,
		Comparator:       desc.Comparator,
		CompactionFilter: desc.CompactionFilter,
		MergeOperator:    desc.MergeOperator,
		WriteBufferSize:  desc.WriteBufferSize,
		BaseTableBytes:   desc.BaseTableBytes,
		Log:              log,
		Listener:         listener,
		UseMmapReads:     desc.UseMmapReads,
	})
	if err != nil {
		return nil, err
	}
	w, err := wal.Open(colDir)
	if err != nil {
		eng.Close()
		return nil, err
	}

	c := &Column{id: id, desc: desc, engine: eng, wal: w, log: log, env: e}
	c.stallCond = env.NewCond(&c.stallMu)
	return c, nil
}

func (c *Column) ID() uint32          { return c.id }
func (c *Column) Name() string        { return c.desc.Name }
func (c *Column) Descriptor() Descriptor { return c.desc }
func (c *Column) Engine() *lsm.Engine { return c.engine }
func (c *Column) WAL() *wal.WAL       { return c.wal }

// Stall reports the column's current write-admission state.
func (c *Column) Stall() StallCondition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stall
}

// refreshStall recomputes the stall condition from the engine's current
// table layout: too many L0 files delays writers to let compaction catch
// up; far too many stops them outright.
const (
	l0SlowdownTrigger = 8
	l0StopTrigger     = 20
)

func (c *Column) refreshStall() {
	stats := c.engine.Stats()
	next := StallNormal
	if len(stats.TablesPerLvl) > 0 {
		switch {
		case stats.TablesPerLvl[0] >= l0StopTrigger:
			next = StallStopped
		case stats.TablesPerLvl[0] >= l0SlowdownTrigger:
			next = StallDelayed
		}
	}

	c.mu.Lock()
	changed := next != c.stall
	c.stall = next
	c.mu.Unlock()

	if changed {
		c.log.Warn("column stall condition changed", logging.Column(c.desc.Name), logging.String("state", next.String()))
		c.stallMu.Lock()
		c.stallCond.Broadcast()
		c.stallMu.Unlock()
	}
}

// WaitForRoom blocks while the column is in the Stopped state, returning
// early if ctx is cancelled. A Delayed column is not blocked here; callers
// apply their own backpressure (e.g. a write-rate slowdown) for that case.
func (c *Column) WaitForRoom(ctx context.Context) error {
	for {
		if c.Stall() != StallStopped {
			return nil
		}
		c.stallMu.Lock()
		err := c.stallCond.WaitContext(ctx, &c.stallMu)
		c.stallMu.Unlock()
		if err != nil {
			return err
		}
	}
}

// NextSeq returns the next write sequence number for this column, shared
// between WAL records and memtable entries so replay can dedupe by the
// same ordering the live write path used.
func (c *Column) NextSeq() uint64 { return c.seq.Add(1) }

// MaybeScheduleCompaction refreshes the stall condition and, if any
// level is over budget, enqueues background compaction.
func (c *Column) MaybeScheduleCompaction() {
	c.refreshStall()
	c.engine.ScheduleCompaction()
}

// Close flushes and closes both the engine and the WAL.
func (c *Column) Close() error {
	if err := c.engine.Close(); err != nil {
		return err
	}
	return c.wal.Close()
}
