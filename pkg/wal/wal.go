// Package wal is the per-column write-ahead log: every mutation is
// appended here, CRC32-checksummed, before it is visible in the
// memtable, so a crash between the two can always recover by replaying
// records the memtable never saw. Grounded on the CRC32/LSN/file-rotation
// design of a typical single-file append log, generalized with a pluggable
// WALFilter hook and a selectable recovery mode instead of one fixed
// all-or-nothing replay.
package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cluso/lsmkv/pkg/lsm"
	"github.com/cluso/lsmkv/pkg/pools"
)

// Entry is one logged mutation.
type Entry struct {
	LSN       uint64
	Kind      lsm.OpKind
	Key       []byte
	Value     []byte
	Checksum  uint32
	Timestamp int64
}

// Filter mirrors env.WALFilter's decision type without importing pkg/env,
// avoiding a cycle since pkg/env has no reason to know about pkg/wal.
type FilterDecision int

const (
	FilterKeep FilterDecision = iota
	FilterReplace
	FilterSkip
	FilterStop
)

// Filter is consulted for every record during recovery, letting a caller
// veto, rewrite, or stop replay early.
type Filter interface {
	Apply(e *Entry) (FilterDecision, *Entry)
}

// RecoveryMode controls how WAL corruption or a short tail is handled
// when opening an existing log.
type RecoveryMode int

const (
	// RecoverAbsolute fails Open if any record is missing or corrupted.
	RecoverAbsolute RecoveryMode = iota
	// RecoverPoint stops replay at the first corrupted record but keeps
	// everything read up to that point.
	RecoverPoint
	// RecoverSkip skips corrupted records and keeps reading past them.
	RecoverSkip
	// RecoverTolerate accepts a log with no records at all, in addition
	// to RecoverPoint's tolerance of a corrupted tail.
	RecoverTolerate
)

// WAL is a single column's write-ahead log file.
type WAL struct {
	file       *os.File
	writer     *bufio.Writer
	currentLSN uint64
	dataDir    string
	path       string
	mu         sync.Mutex
}

// Open creates or reopens the WAL file for a column's data directory.
func Open(dataDir string) (*WAL, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("wal: create directory: %w", err)
	}
	path := filepath.Join(dataDir, "wal.log")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("wal: open file: %w", err)
	}
	w := &WAL{file: f, writer: bufio.NewWriter(f), dataDir: dataDir, path: path}
	if _, err := w.Recover(RecoverPoint, nil); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Append writes one entry and fsyncs before returning, so a caller never
// observes a write as durable before it is actually on disk.
func (w *WAL) Append(kind lsm.OpKind, key, value []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentLSN == ^uint64(0) {
		return 0, fmt.Errorf("wal: LSN space exhausted, rotation required")
	}
	w.currentLSN++
	lsn := w.currentLSN

	e := Entry{LSN: lsn, Kind: kind, Key: key, Value: value, Checksum: checksumOf(key, value)}
	if err := writeEntry(w.writer, &e); err != nil {
		w.currentLSN--
		return 0, err
	}
	if err := w.writer.Flush(); err != nil {
		return 0, fmt.Errorf("wal: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return 0, fmt.Errorf("wal: sync: %w", err)
	}
	return lsn, nil
}

func writeEntry(w io.Writer, e *Entry) error {
	if err := binary.Write(w, binary.LittleEndian, e.LSN); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(e.Kind)}); err != nil {
		return err
	}
	for _, b := range [][]byte{e.Key, e.Value} {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, e.Checksum); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, e.Timestamp)
}

func readEntry(r *bufio.Reader) (*Entry, error) {
	e := &Entry{}
	if err := binary.Read(r, binary.LittleEndian, &e.LSN); err != nil {
		return nil, err
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	e.Kind = lsm.OpKind(kindByte)

	readBlob := func() ([]byte, error) {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	if e.Key, err = readBlob(); err != nil {
		return nil, err
	}
	if e.Value, err = readBlob(); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &e.Checksum); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &e.Timestamp); err != nil {
		return nil, err
	}
	return e, nil
}

// Recover reads every record from the start of the file, applying filter
// (if non-nil) to each, and repositions the file for further appends. It
// is both how Open validates an existing log and how a Database replays
// one into a freshly opened Engine.
func (w *WAL) Recover(mode RecoveryMode, filter Filter) ([]*Entry, error) {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	r := bufio.NewReader(w.file)

	var entries []*Entry
	var lastGood uint64
	for {
		e, err := readEntry(r)
		if err == io.EOF {
			break
		}
		if err != nil || checksumOf(e.Key, e.Value) != e.Checksum {
			switch mode {
			case RecoverAbsolute:
				return nil, fmt.Errorf("wal: corrupted record after LSN %d: %w", lastGood, errOrCorrupt(err))
			case RecoverPoint, RecoverTolerate:
				goto done
			case RecoverSkip:
				continue
			}
		}

		if filter != nil {
			decision, replacement := filter.Apply(e)
			switch decision {
			case FilterSkip:
				continue
			case FilterStop:
				goto done
			case FilterReplace:
				e = replacement
			}
		}

		entries = append(entries, e)
		lastGood = e.LSN
	}
done:
	if len(entries) > 0 {
		w.currentLSN = entries[len(entries)-1].LSN
	}
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}
	return entries, nil
}

func checksumOf(key, value []byte) uint32 {
	buf := recordBufPool.Get(len(key) + len(value))
	buf = append(buf, key...)
	buf = append(buf, value...)
	sum := crc32.ChecksumIEEE(buf)
	recordBufPool.Put(buf)
	return sum
}

var recordBufPool = pools.NewBytePool()

func errOrCorrupt(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("checksum mismatch")
}

// Truncate discards every record. No code in this module calls it;
// checkpointing leaves the log as it is.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return err
	}
	if err := os.Truncate(w.path, 0); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	w.file = f
	w.writer = bufio.NewWriter(f)
	w.currentLSN = 0
	return nil
}

// CurrentLSN reports the last LSN successfully appended.
func (w *WAL) CurrentLSN() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentLSN
}

// Close flushes and closes the log file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	return w.file.Close()
}
