package env

import (
	"strings"

	"github.com/cluso/lsmkv/pkg/logging"
)

// EngineSeverity is the embedded engine's own log severity enum, kept
// distinct from logging.Level because the engine has two severities
// (FATAL, HEADER) that do not correspond 1:1 to an application log level.
type EngineSeverity int

const (
	SeverityDebug EngineSeverity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityFatal
	SeverityHeader
)

// EngineLogger receives the embedded engine's variadic log callbacks and
// maps them onto the application's structured Logger: DEBUG/INFO collapse
// to Debug, WARN to Warn, ERROR stays Error, and FATAL/HEADER both become
// Error entries tagged with
// their original severity (CRITICAL / NOTICE respectively) since
// logging.Logger has no Critical or Notice level of its own. It also
// strips the leading whitespace the engine inserts for column alignment
// and drops the noisy "Options" dump the engine emits at open.
type EngineLogger struct {
	log logging.Logger
}

// NewEngineLogger wraps an application Logger for engine callbacks.
func NewEngineLogger(log logging.Logger) *EngineLogger {
	return &EngineLogger{log: log}
}

// Logv is the engine's log entry point: one formatted line per call.
func (l *EngineLogger) Logv(sev EngineSeverity, msg string) {
	msg = strings.TrimLeft(msg, " \t")
	if msg == "" {
		return
	}
	if strings.HasPrefix(msg, "Options") {
		return
	}

	switch sev {
	case SeverityDebug, SeverityInfo:
		l.log.Debug(msg)
	case SeverityWarn:
		l.log.Warn(msg)
	case SeverityError:
		l.log.Error(msg)
	case SeverityFatal:
		l.log.Error(msg, logging.Severity("CRITICAL"))
	case SeverityHeader:
		l.log.Error(msg, logging.Severity("NOTICE"))
	default:
		l.log.Info(msg)
	}
}
