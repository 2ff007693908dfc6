package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records metadata for background jobs such as the payment
// expiry sweep.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	expired  *prometheus.CounterVec
}

// NewJobMetrics registers the job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of background jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful background job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed background job executions.",
	}, []string{"job"})
	expired := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_expired_total",
		Help: "Pix payments marked expired by the sweep.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure, expired)
	return &JobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		expired:  expired,
	}
}

// ObserveDuration records the duration for the named job.
func (j *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if j == nil || j.duration == nil {
		return
	}
	j.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (j *JobMetrics) IncSuccess(job string) {
	if j == nil || j.success == nil {
		return
	}
	j.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (j *JobMetrics) IncFailure(job string) {
	if j == nil || j.failure == nil {
		return
	}
	j.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddExpired adds to the expired-payments counter for the named job.
func (j *JobMetrics) AddExpired(job string, count int) {
	if j == nil || j.expired == nil || count <= 0 {
		return
	}
	j.expired.WithLabelValues(normalizeLabel(job)).Add(float64(count))
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
