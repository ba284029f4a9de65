package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the compliance engine's Prometheus instruments. A nil
// Collector is valid and records nothing, which keeps tests free of global
// registry collisions.
type Collector struct {
	requestsResolved   *prometheus.CounterVec
	subjectsAnonymized prometheus.Counter
	subjectsDeleted    prometheus.Counter
	exportsCompleted   prometheus.Counter
	retentionRuns      prometheus.Counter
	retentionProcessed prometheus.Counter
	retentionErrors    prometheus.Counter
}

func New() *Collector {
	return &Collector{
		requestsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_compliance_requests_resolved_total",
			Help: "Data subject requests resolved, by kind and final status",
		}, []string{"kind", "status"}),
		subjectsAnonymized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clinic_compliance_subjects_anonymized_total",
			Help: "Subjects whose identifying fields were overwritten",
		}),
		subjectsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clinic_compliance_subjects_deleted_total",
			Help: "Subjects purged together with their dependent records",
		}),
		exportsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clinic_compliance_exports_completed_total",
			Help: "Subject data exports written to the export directory",
		}),
		retentionRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clinic_compliance_retention_runs_total",
			Help: "Retention enforcement runs completed",
		}),
		retentionProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clinic_compliance_retention_processed_total",
			Help: "Subjects remediated by retention enforcement",
		}),
		retentionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clinic_compliance_retention_errors_total",
			Help: "Per-subject failures during retention enforcement",
		}),
	}
}

func (c *Collector) RequestResolved(kind, status string) {
	if c == nil {
		return
	}
	c.requestsResolved.WithLabelValues(kind, status).Inc()
}

func (c *Collector) SubjectAnonymized() {
	if c == nil {
		return
	}
	c.subjectsAnonymized.Inc()
}

func (c *Collector) SubjectDeleted() {
	if c == nil {
		return
	}
	c.subjectsDeleted.Inc()
}

func (c *Collector) ExportCompleted() {
	if c == nil {
		return
	}
	c.exportsCompleted.Inc()
}

func (c *Collector) RetentionRun(processed, errors int) {
	if c == nil {
		return
	}
	c.retentionRuns.Inc()
	c.retentionProcessed.Add(float64(processed))
	c.retentionErrors.Add(float64(errors))
}
