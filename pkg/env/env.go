package env

import (
	"os"
	"path/filepath"

	"github.com/cluso/lsmkv/pkg/logging"
)

// directIOSentinel is the file whose presence in a base directory signals
// that the underlying filesystem supports direct I/O.
const directIOSentinel = "SUPPORTS_DIRECT_IO"

// Environment bundles every shim the embedded engine needs in place of
// host OS services: file/directory adapters are opened through it rather
// than via the os package directly, and the engine's background work
// runs on its Pools.
type Environment struct {
	Pools       *Pools
	Logger      *EngineLogger
	RateLimiter *RateLimiter
	WALFilter   WALFilter
	DirectIO    bool
	BlockSize   int64
}

// Options configures a new Environment.
type Options struct {
	Log             logging.Logger
	LowThreads      int
	HighThreads     int
	RateBytesPerSec int64
	WALFilter       WALFilter
	DirectIO        bool
	BlockSize       int64
}

// New constructs an Environment from opts, filling in defaults the same
// way the Database's open procedure does for DBOptions: a handful of
// background threads, an unthrottled rate limiter, and the default WAL
// filter if none was supplied.
func New(opts Options) *Environment {
	if opts.LowThreads <= 0 {
		opts.LowThreads = 2
	}
	if opts.HighThreads <= 0 {
		opts.HighThreads = 1
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = 4096
	}
	if opts.Log == nil {
		opts.Log = logging.NewDefaultLogger()
	}
	if opts.WALFilter == nil {
		opts.WALFilter = &DefaultWALFilter{Log: opts.Log}
	}

	return &Environment{
		Pools:       NewPools(opts.LowThreads, opts.HighThreads),
		Logger:      NewEngineLogger(opts.Log),
		RateLimiter: NewRateLimiter(opts.RateBytesPerSec),
		WALFilter:   opts.WALFilter,
		DirectIO:    opts.DirectIO,
		BlockSize:   opts.BlockSize,
	}
}

// ProbeDirectIO reports whether baseDir carries the SUPPORTS_DIRECT_IO
// sentinel file.
func ProbeDirectIO(baseDir string) bool {
	_, err := os.Stat(filepath.Join(baseDir, directIOSentinel))
	return err == nil
}

// OpenWritable opens a new append-only file at path, choosing the
// buffered or direct-I/O implementation per e.DirectIO.
func (e *Environment) OpenWritable(path string, keepSize bool, allowFallocate bool) (WritableFile, error) {
	if e.DirectIO {
		return NewDirectWritableFile(path, e.BlockSize, keepSize)
	}
	return NewBufferedWritableFile(path, keepSize, allowFallocate)
}

// OpenRandomAccess opens path for positional reads, honouring e.DirectIO.
func (e *Environment) OpenRandomAccess(path string) (*RandomAccessFile, error) {
	return OpenRandomAccessFile(path, e.DirectIO, e.BlockSize)
}

// Join waits for every task scheduled on the pools so far to finish,
// used by Database.Close. It does not stop new work from being scheduled.
func (e *Environment) Join() {
	e.Pools.Join()
}
