// Package metrics exposes Prometheus instrumentation for result reconciliation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "podium"

// Sync run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFatal   = "fatal"
)

// Recorder collects engine metrics. A nil Recorder discards everything.
type Recorder struct {
	syncRuns             *prometheus.CounterVec
	syncDuration         prometheus.Histogram
	resultsCreated       prometheus.Counter
	constraintViolations prometheus.Counter
	integrityWarnings    *prometheus.CounterVec
	auditMismatches      prometheus.Counter
	notificationFailures prometheus.Counter
}

// NewRecorder registers the engine collectors on registerer.
func NewRecorder(registerer prometheus.Registerer) (*Recorder, error) {
	recorder := &Recorder{
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Result synchronization runs by outcome.",
		}, []string{"outcome"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of per-user result synchronization.",
			Buckets:   prometheus.DefBuckets,
		}),
		resultsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_created_total",
			Help:      "Result rows written by synchronization.",
		}),
		constraintViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_slot_conflicts_total",
			Help:      "Result inserts skipped because the prize slot was already claimed.",
		}),
		integrityWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_warnings_total",
			Help:      "Data integrity warnings detected while scoring.",
		}, []string{"kind"}),
		auditMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_mismatches_total",
			Help:      "Rank/position mismatches reported by competition audits.",
		}),
		notificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be delivered to a sink.",
		}),
	}

	collectors := []prometheus.Collector{
		recorder.syncRuns,
		recorder.syncDuration,
		recorder.resultsCreated,
		recorder.constraintViolations,
		recorder.integrityWarnings,
		recorder.auditMismatches,
		recorder.notificationFailures,
	}
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return recorder, nil
}

// SyncCompleted records one synchronization run.
func (r *Recorder) SyncCompleted(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.syncRuns.WithLabelValues(outcome).Inc()
	r.syncDuration.Observe(elapsed.Seconds())
}

// ResultsCreated adds persisted result rows.
func (r *Recorder) ResultsCreated(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.resultsCreated.Add(float64(count))
}

// ConstraintViolation counts a prize slot that was already claimed.
func (r *Recorder) ConstraintViolation() {
	if r == nil {
		return
	}
	r.constraintViolations.Inc()
}

// IntegrityWarning counts a data integrity warning of the given kind.
func (r *Recorder) IntegrityWarning(kind string) {
	if r == nil {
		return
	}
	r.integrityWarnings.WithLabelValues(kind).Inc()
}

// AuditMismatches adds mismatches found by an audit.
func (r *Recorder) AuditMismatches(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.auditMismatches.Add(float64(count))
}

// NotificationFailed counts an undelivered notification.
func (r *Recorder) NotificationFailed() {
	if r == nil {
		return
	}
	r.notificationFailures.Inc()
}
