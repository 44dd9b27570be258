package env

import (
	"github.com/cluso/lsmkv/pkg/logging"
	"github.com/cluso/lsmkv/pkg/status"
)

// BackgroundErrorSeverity mirrors the engine's classification of a
// background (flush/compaction) failure.
type BackgroundErrorSeverity int

const (
	SeverityNoError BackgroundErrorSeverity = iota
	SeveritySoftError
	SeverityHardError
	SeverityFatalError
	SeverityUnrecoverableError
)

// BackgroundError is one error reported through the event listener.
type BackgroundError struct {
	Column   string
	Severity BackgroundErrorSeverity
	Err      error
}

// ErrorSink is implemented by the Database: the event listener appends
// every background error here instead of returning it synchronously.
type ErrorSink interface {
	AppendBackgroundError(BackgroundError)
	RefuseWrites(reason error)
}

// EventListener receives the lifecycle callbacks the engine emits during
// flush, compaction, and background failures. Every callback body is
// wrapped so a panic in a user-supplied hook cannot propagate into the
// engine's background worker: callbacks never throw.
type EventListener struct {
	log       logging.Logger
	sink      ErrorSink
	suppress  bool // OnBackgroundError returns OK (suppress) when true
}

// NewEventListener builds an EventListener reporting into sink and log.
// suppress controls whether OnBackgroundError swallows the error (true)
// or propagates it so the database refuses further writes (false, the
// default).
func NewEventListener(sink ErrorSink, log logging.Logger, suppress bool) *EventListener {
	return &EventListener{sink: sink, log: log, suppress: suppress}
}

func (l *EventListener) OnFlushBegin(column string) {
	l.safe(func() { l.log.Debug("flush begin", logging.Column(column)) })
}

func (l *EventListener) OnFlushCompleted(column string, bytesWritten int64) {
	l.safe(func() {
		l.log.Info("flush completed", logging.Column(column), logging.Int64("bytes", bytesWritten))
	})
}

func (l *EventListener) OnCompactionCompleted(column string, inputFiles, outputFiles int) {
	l.safe(func() {
		l.log.Info("compaction completed", logging.Column(column),
			logging.Int("input_files", inputFiles), logging.Int("output_files", outputFiles))
	})
}

func (l *EventListener) OnTableFileCreated(column, path string) {
	l.safe(func() { l.log.Debug("table file created", logging.Column(column), logging.Path(path)) })
}

func (l *EventListener) OnTableFileDeleted(column, path string) {
	l.safe(func() { l.log.Debug("table file deleted", logging.Column(column), logging.Path(path)) })
}

func (l *EventListener) OnMemTableSealed(column string) {
	l.safe(func() { l.log.Debug("memtable sealed", logging.Column(column)) })
}

func (l *EventListener) OnColumnHandleDeletionStarted(column string) {
	l.safe(func() { l.log.Debug("column handle deletion started", logging.Column(column)) })
}

func (l *EventListener) OnExternalFileIngested(column, path string) {
	l.safe(func() { l.log.Info("external file ingested", logging.Column(column), logging.Path(path)) })
}

// OnStallConditionsChanged reports a write-stall transition for column.
func (l *EventListener) OnStallConditionsChanged(column string, from, to string) {
	l.safe(func() {
		l.log.Warn("stall condition changed", logging.Column(column),
			logging.String("from", from), logging.String("to", to))
	})
}

// OnBackgroundError implements the database's error policy: log + record
// the error, downgrade a compaction-triggered Fatal to Hard so it
// is later clearable by Database.Resume, leave Unrecoverable as-is, and
// either suppress (return true = OK) or propagate (return false) per
// configuration. A propagated error causes the database to refuse
// further writes until Resume is called.
func (l *EventListener) OnBackgroundError(column string, severity BackgroundErrorSeverity, err error, fromCompaction bool) (suppressed bool) {
	effective := severity
	if fromCompaction && severity == SeverityFatalError {
		effective = SeverityHardError
	}

	l.safe(func() {
		l.log.Error("background error", logging.Column(column),
			logging.String("severity", backgroundSeverityName(effective)), logging.Error(err))
	})

	l.safe(func() {
		l.sink.AppendBackgroundError(BackgroundError{Column: column, Severity: effective, Err: err})
	})

	if l.suppress {
		return true
	}
	l.safe(func() {
		l.sink.RefuseWrites(status.Newf("OnBackgroundError", status.Aborted, err,
			"column %s: %s", column, backgroundSeverityName(effective)))
	})
	return false
}

func backgroundSeverityName(s BackgroundErrorSeverity) string {
	switch s {
	case SeveritySoftError:
		return "soft"
	case SeverityHardError:
		return "hard"
	case SeverityFatalError:
		return "fatal"
	case SeverityUnrecoverableError:
		return "unrecoverable"
	default:
		return "none"
	}
}

// safe runs fn, swallowing any panic so a logging or sink failure cannot
// take down the caller (engine background worker, or synchronous write
// path) that invoked the listener.
func (l *EventListener) safe(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
