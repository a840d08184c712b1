package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	anomalies *prometheus.GaugeVec
	overdue   prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// SetAllocationAnomalies publishes the latest anomaly count per reason. Reasons missing
// from counts are reset to zero so a fixed row stops alerting.
func (m *Metrics) SetAllocationAnomalies(counts map[string]int, reasons ...string) {
	if m == nil {
		return
	}
	for _, reason := range reasons {
		m.anomalies.WithLabelValues(reason).Set(float64(counts[reason]))
	}
}

// AddOverdueInvoices counts invoices flipped to Overdue by the sweep.
func (m *Metrics) AddOverdueInvoices(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.overdue.Add(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "metalyard_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "metalyard_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metalyard_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	anomalies := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "metalyard_inventory_allocation_anomalies",
		Help: "Inventory rows whose counters break the ledger rules, by reason, as of the last audit.",
	}, []string{"reason"})
	overdue := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "metalyard_invoices_marked_overdue_total",
		Help: "Invoices moved from Pending to Overdue by the sweep.",
	})
	registerer.MustRegister(runs, failures, duration, anomalies, overdue)
	return &Metrics{runs: runs, failures: failures, duration: duration, anomalies: anomalies, overdue: overdue}
}
