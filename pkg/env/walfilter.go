package env

import "github.com/cluso/lsmkv/pkg/logging"

// WALRecordDecision is the action a WALFilter requests for one replayed
// record.
type WALRecordDecision int

const (
	WALKeep WALRecordDecision = iota
	WALReplace
	WALSkip
	WALStop
)

// WALFilter observes every WAL record during replay, keyed by its log
// number and originating column, and may request the record be kept,
// replaced, skipped, or that replay stop entirely.
type WALFilter interface {
	OnRecord(logNumber uint64, column string, key, value []byte) (WALRecordDecision, []byte)
}

// DefaultWALFilter always keeps every record, which is the engine's
// default when no filter is installed.
type DefaultWALFilter struct {
	Debug bool
	Log   logging.Logger
}

func (f *DefaultWALFilter) OnRecord(logNumber uint64, column string, key, value []byte) (WALRecordDecision, []byte) {
	if f.Debug && f.Log != nil {
		f.Log.Debug("wal replay record",
			logging.Uint64("log_number", logNumber),
			logging.Column(column),
			logging.Key(key),
		)
	}
	return WALKeep, value
}
