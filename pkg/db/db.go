package db

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cluso/lsmkv/pkg/cache"
	"github.com/cluso/lsmkv/pkg/column"
	"github.com/cluso/lsmkv/pkg/env"
	"github.com/cluso/lsmkv/pkg/kv"
	"github.com/cluso/lsmkv/pkg/lsm"
	"github.com/cluso/lsmkv/pkg/logging"
	"github.com/cluso/lsmkv/pkg/reqpool"
	"github.com/cluso/lsmkv/pkg/status"
	"github.com/cluso/lsmkv/pkg/wal"
)

// Database is the top-level handle an application opens: it owns every
// column, the shared environment, the block cache and background
// request pool, and the write mutex every mutation passes through.
type Database struct {
	id    uuid.UUID
	dir   string
	opts  Options
	env   *env.Environment
	cache *cache.Cache
	pool  *reqpool.Pool
	log   logging.Logger
	stats *Statistics

	writeMu sync.Mutex

	listener *env.EventListener

	mu      sync.RWMutex
	columns map[string]*column.Column
	nextID  atomic.Uint32

	refused   atomic.Bool
	refuseErr atomic.Value // error
}

// Open runs the engine's standard open procedure: validate options,
// build the Environment, discover or create every configured column,
// replay each column's WAL into its engine, and install the event
// listener that feeds background errors back into the Database.
func Open(opts Options, descriptors []column.Descriptor) (*Database, error) {
	if opts.Dir == "" {
		return nil, status.Newf("Open", status.InvalidArgument, nil, "dir is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, status.Newf("Open", status.InvalidArgument, err, "invalid options")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, status.Newf("Open", status.IOError, err, "create database directory")
	}

	log := logging.NewDefaultLogger()
	e := env.New(env.Options{
		Log:             log,
		LowThreads:      opts.LowThreads,
		HighThreads:     opts.HighThreads,
		RateBytesPerSec: opts.RateBytesPerSec,
		DirectIO:        opts.DirectIO || env.ProbeDirectIO(opts.Dir),
		BlockSize:       opts.BlockSize,
	})

	cacheBytes := opts.CacheBytes
	if cacheBytes <= 0 {
		cacheBytes = defaultCacheBytes
	}

	d := &Database{
		id:      uuid.New(),
		dir:     opts.Dir,
		opts:    opts,
		env:     e,
		cache:   cache.New(cache.Options{CapacityBytes: cacheBytes, UseArena: opts.UseCacheArena}),
		pool:    reqpool.New(defaultPoolConcurrency),
		log:     log,
		columns: make(map[string]*column.Column),
	}
	d.stats = NewStatistics(d)
	d.listener = env.NewEventListener(d, log, opts.SuppressErrors)

	if len(descriptors) == 0 {
		descriptors = []column.Descriptor{{Name: DefaultColumnName}}
	}
	for _, desc := range descriptors {
		if _, err := d.openColumn(desc); err != nil {
			d.Close()
			return nil, err
		}
	}

	if opts.RunFsck {
		if err := d.Check(); err != nil {
			d.Close()
			return nil, err
		}
	}

	return d, nil
}

const (
	DefaultColumnName      = "default"
	defaultCacheBytes      = 64 << 20
	defaultPoolConcurrency = 32
)

func (d *Database) openColumn(desc column.Descriptor) (*column.Column, error) {
	id := d.nextID.Add(1)
	col, err := column.Open(d.env, id, desc, d.dir, d.log, d.listener)
	if err != nil {
		return nil, status.Newf("OpenColumn", status.IOError, err, desc.Name)
	}

	if err := d.replayWAL(col); err != nil {
		col.Close()
		return nil, err
	}

	d.mu.Lock()
	d.columns[desc.Name] = col
	d.mu.Unlock()
	return col, nil
}

// replayWAL recovers the column's WAL into its engine, point-in-time
// tolerant of a corrupted tail, so a crash mid-write never blocks
// reopening the database it crashed on.
func (d *Database) replayWAL(col *column.Column) error {
	entries, err := col.WAL().Recover(wal.RecoverPoint, nil)
	if err != nil {
		return status.Newf("ReplayWAL", status.Corruption, err, col.Name())
	}
	for _, e := range entries {
		switch e.Kind {
		case lsm.OpPut:
			col.Engine().Put(e.Key, e.Value)
		case lsm.OpDelete:
			col.Engine().Delete(e.Key)
		case lsm.OpMerge:
			col.Engine().Merge(e.Key, e.Value)
		case lsm.OpDeleteRange:
			col.Engine().DeleteRange(e.Key, e.Value)
		}
	}
	return nil
}

// Column returns the named column, or false if it was never opened.
func (d *Database) Column(name string) (*column.Column, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.columns[name]
	return c, ok
}

// Columns lists every open column's name.
func (d *Database) Columns() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.columns))
	for n := range d.columns {
		names = append(names, n)
	}
	return names
}

func (d *Database) checkWritable() error {
	if d.refused.Load() {
		if err, ok := d.refuseErr.Load().(error); ok && err != nil {
			return status.Newf("Write", status.ShutdownInProgress, err, "writes refused after unrecoverable background error")
		}
		return status.Newf("Write", status.ShutdownInProgress, nil, "writes refused")
	}
	return nil
}

// Put writes key=value into column, going through the WAL before the
// memtable so the write survives a crash before the next flush.
func (d *Database) Put(ctx context.Context, columnName string, key, value []byte) error {
	return d.applyOne(ctx, columnName, lsm.OpPut, key, value)
}

// Delete tombstones key in column.
func (d *Database) Delete(ctx context.Context, columnName string, key []byte) error {
	return d.applyOne(ctx, columnName, lsm.OpDelete, key, nil)
}

// Merge queues a merge operand for key in column.
func (d *Database) Merge(ctx context.Context, columnName string, key, operand []byte) error {
	return d.applyOne(ctx, columnName, lsm.OpMerge, key, operand)
}

func (d *Database) applyOne(ctx context.Context, columnName string, kind lsm.OpKind, key, value []byte) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	col, ok := d.Column(columnName)
	if !ok {
		return status.Newf("Write", status.InvalidArgument, nil, "unknown column %s", columnName)
	}
	if err := col.WaitForRoom(ctx); err != nil {
		return status.Newf("Write", status.TimedOut, err, columnName)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if _, err := col.WAL().Append(kind, key, value); err != nil {
		return status.Newf("Write", status.IOError, err, "wal append")
	}

	var err error
	switch kind {
	case lsm.OpPut:
		err = col.Engine().Put(key, value)
	case lsm.OpDelete:
		err = col.Engine().Delete(key)
	case lsm.OpMerge:
		err = col.Engine().Merge(key, value)
	}
	d.stats.recordWrite(columnName, err)
	if err != nil {
		return status.Newf("Write", status.IOError, err, columnName)
	}

	col.MaybeScheduleCompaction()
	return nil
}

// Get returns the current value of key in column.
func (d *Database) Get(columnName string, key []byte) ([]byte, error) {
	col, ok := d.Column(columnName)
	if !ok {
		return nil, status.Newf("Get", status.InvalidArgument, nil, "unknown column %s", columnName)
	}
	v, err := col.Engine().Get(key)
	d.stats.recordGet(columnName, err == nil)
	if err == lsm.ErrKeyNotFound {
		return nil, status.Newf("Get", status.NotFound, nil, columnName)
	}
	if err != nil {
		return nil, status.Newf("Get", status.IOError, err, columnName)
	}
	return v, nil
}

// CommitBatch applies every op in b atomically under the write mutex,
// implementing kv.Committer so a kv.Transaction can commit through a
// Database without importing pkg/db.
func (d *Database) CommitBatch(ctx context.Context, b *kv.WriteBatch) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	ops := b.Ops()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	touched := make(map[string]*column.Column)
	for _, op := range ops {
		col, ok := d.Column(op.Column)
		if !ok {
			return status.Newf("CommitBatch", status.InvalidArgument, nil, "unknown column %s", op.Column)
		}
		touched[op.Column] = col

		var kind lsm.OpKind
		switch op.Kind {
		case kv.OpSet:
			kind = lsm.OpPut
		case kv.OpMerge:
			kind = lsm.OpMerge
		case kv.OpDelete, kv.OpSingleDelete:
			kind = lsm.OpDelete
		case kv.OpDeleteRange:
			kind = lsm.OpDeleteRange
		}

		value := op.Value
		if op.Kind == kv.OpDeleteRange {
			value = op.EndKey
		}
		if _, err := col.WAL().Append(kind, op.Key, value); err != nil {
			return status.Newf("CommitBatch", status.IOError, err, "wal append")
		}

		var err error
		switch op.Kind {
		case kv.OpSet:
			err = col.Engine().Put(op.Key, op.Value)
		case kv.OpMerge:
			err = col.Engine().Merge(op.Key, op.Value)
		case kv.OpDelete, kv.OpSingleDelete:
			err = col.Engine().Delete(op.Key)
		case kv.OpDeleteRange:
			err = col.Engine().DeleteRange(op.Key, op.EndKey)
		}
		if err != nil {
			return status.Newf("CommitBatch", status.IOError, err, op.Column)
		}
	}

	for _, col := range touched {
		col.MaybeScheduleCompaction()
	}
	return nil
}

// Sync flushes every column's memtable to disk.
func (d *Database) Sync() error {
	d.mu.RLock()
	cols := make([]*column.Column, 0, len(d.columns))
	for _, c := range d.columns {
		cols = append(cols, c)
	}
	d.mu.RUnlock()

	for _, c := range cols {
		if err := c.Engine().Flush(); err != nil {
			return status.Newf("Sync", status.IOError, err, c.Name())
		}
	}
	return nil
}

// Compact runs one round of compaction on every column synchronously.
func (d *Database) Compact(ctx context.Context) error {
	d.mu.RLock()
	cols := make([]*column.Column, 0, len(d.columns))
	for _, c := range d.columns {
		cols = append(cols, c)
	}
	d.mu.RUnlock()

	for _, c := range cols {
		if err := c.Engine().Compact(ctx); err != nil {
			return status.Newf("Compact", status.IOError, err, c.Name())
		}
	}
	return nil
}

// Check performs a lightweight consistency pass (per-column WAL replay
// validation) used when Options.RunFsck is set.
func (d *Database) Check() error {
	d.mu.RLock()
	cols := make([]*column.Column, 0, len(d.columns))
	for _, c := range d.columns {
		cols = append(cols, c)
	}
	d.mu.RUnlock()

	for _, c := range cols {
		if _, err := c.WAL().Recover(wal.RecoverAbsolute, nil); err != nil {
			return status.Newf("Check", status.Corruption, err, c.Name())
		}
	}
	return nil
}

// AppendBackgroundError implements env.ErrorSink.
func (d *Database) AppendBackgroundError(be env.BackgroundError) {
	d.stats.recordBackgroundError(be)
}

// RefuseWrites implements env.ErrorSink: from this point Put/Delete/
// Merge/CommitBatch return a ShutdownInProgress status until Resume.
func (d *Database) RefuseWrites(reason error) {
	d.refuseErr.Store(reason)
	d.refused.Store(true)
	d.log.Error("database refusing further writes", logging.Error(reason))
}

// Resume clears a RefuseWrites condition, allowing writes again.
func (d *Database) Resume() {
	d.refused.Store(false)
}

// UUID returns the database instance's unique identifier, stable for
// its lifetime but regenerated on every Open.
func (d *Database) UUID() uuid.UUID { return d.id }

// Statistics returns the Database's Prometheus-collectible statistics
// sink.
func (d *Database) Statistics() *Statistics { return d.stats }

// Close flushes and closes every column, then releases the environment's
// background pools.
func (d *Database) Close() error {
	d.mu.Lock()
	cols := d.columns
	d.columns = nil
	d.mu.Unlock()

	var firstErr error
	for _, c := range cols {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.env.Join()
	if firstErr != nil {
		return status.Newf("Close", status.IOError, firstErr, "one or more columns failed to close cleanly")
	}
	return nil
}

