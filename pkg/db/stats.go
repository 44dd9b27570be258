package db

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cluso/lsmkv/pkg/env"
)

// Statistics is the Database's Prometheus-collectible metrics surface,
// grounded on the promauto.With(registry) registration pattern and
// extended with the background-error bookkeeping an env.ErrorSink needs:
// a rolling log of recent flush/compaction failures a caller can inspect
// after RefuseWrites fires.
type Statistics struct {
	db *Database

	writesTotal   *prometheus.CounterVec
	writeErrors   *prometheus.CounterVec
	getTotal      *prometheus.CounterVec
	backgroundErr *prometheus.CounterVec
	stallGauge    *prometheus.GaugeVec

	mu     sync.Mutex
	recent []env.BackgroundError
}

const maxRecentBackgroundErrors = 32

// NewStatistics registers db's metrics against a private registry. The
// returned Statistics is itself a prometheus.Collector, so a caller can
// expose it by registering it on the default registry or their own.
func NewStatistics(db *Database) *Statistics {
	reg := prometheus.NewRegistry()
	return &Statistics{
		db: db,
		writesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "lsmkv_writes_total",
			Help: "Writes accepted per column.",
		}, []string{"column"}),
		writeErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "lsmkv_write_errors_total",
			Help: "Writes that failed per column.",
		}, []string{"column"}),
		getTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "lsmkv_gets_total",
			Help: "Get calls per column, labeled by hit/miss.",
		}, []string{"column", "result"}),
		backgroundErr: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "lsmkv_background_errors_total",
			Help: "Flush/compaction errors reported through the event listener.",
		}, []string{"column", "severity"}),
		stallGauge: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "lsmkv_column_stall",
			Help: "Current stall condition per column (0=normal, 1=delayed, 2=stopped).",
		}, []string{"column"}),
	}
}

// Describe and Collect make Statistics a prometheus.Collector exposing
// every metric it owns, so a caller can register it against their own
// registry: reg.MustRegister(db.Statistics())
func (s *Statistics) Describe(ch chan<- *prometheus.Desc) {
	s.writesTotal.Describe(ch)
	s.writeErrors.Describe(ch)
	s.getTotal.Describe(ch)
	s.backgroundErr.Describe(ch)
	s.stallGauge.Describe(ch)
}

func (s *Statistics) Collect(ch chan<- prometheus.Metric) {
	for _, name := range s.db.Columns() {
		col, ok := s.db.Column(name)
		if !ok {
			continue
		}
		s.stallGauge.WithLabelValues(name).Set(float64(col.Stall()))
	}
	s.writesTotal.Collect(ch)
	s.writeErrors.Collect(ch)
	s.getTotal.Collect(ch)
	s.backgroundErr.Collect(ch)
	s.stallGauge.Collect(ch)
}

func (s *Statistics) recordWrite(column string, err error) {
	if err != nil {
		s.writeErrors.WithLabelValues(column).Inc()
		return
	}
	s.writesTotal.WithLabelValues(column).Inc()
}

func (s *Statistics) recordGet(column string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	s.getTotal.WithLabelValues(column, result).Inc()
}

func (s *Statistics) recordBackgroundError(be env.BackgroundError) {
	s.backgroundErr.WithLabelValues(be.Column, severityLabel(be.Severity)).Inc()

	s.mu.Lock()
	s.recent = append(s.recent, be)
	if len(s.recent) > maxRecentBackgroundErrors {
		s.recent = s.recent[len(s.recent)-maxRecentBackgroundErrors:]
	}
	s.mu.Unlock()
}

// RecentBackgroundErrors returns up to the last maxRecentBackgroundErrors
// errors reported through the event listener, oldest first.
func (s *Statistics) RecentBackgroundErrors() []env.BackgroundError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]env.BackgroundError, len(s.recent))
	copy(out, s.recent)
	return out
}

func severityLabel(sev env.BackgroundErrorSeverity) string {
	switch sev {
	case env.SeveritySoftError:
		return "soft"
	case env.SeverityHardError:
		return "hard"
	case env.SeverityFatalError:
		return "fatal"
	case env.SeverityUnrecoverableError:
		return "unrecoverable"
	default:
		return "none"
	}
}
