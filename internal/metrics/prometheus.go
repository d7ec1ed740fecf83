package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder backed by Prometheus.
type PrometheusRecorder struct {
	operations    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	distributed   prometheus.Counter
	consistency   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheus creates the collectors and registers them with reg.
//
// reg defaults to prometheus.DefaultRegisterer and namespace to "judge_engine".
func NewPrometheus(reg prometheus.Registerer, namespace string) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "judge_engine"
	}

	p := &PrometheusRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total engine operations by operation and result.",
		}, []string{"op", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Latency of engine operations in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		}, []string{"op"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "version_conflict_retries_total",
			Help:      "Total retries caused by assignment version conflicts.",
		}, []string{"op"}),
		distributed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "distributed_submissions_total",
			Help:      "Total submissions placed by auto-distribution.",
		}),
		consistency: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consistency",
			Name:      "checks_total",
			Help:      "Total overview/judge view consistency checks by outcome.",
		}, []string{"consistent"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Total judge notifications by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		p.operations, p.latency, p.retries, p.distributed, p.consistency, p.notifications,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// RecordOperation counts the operation and observes its latency.
func (p *PrometheusRecorder) RecordOperation(op, result string, duration time.Duration) {
	p.operations.WithLabelValues(op, result).Inc()
	p.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordRetry counts a version-conflict retry.
func (p *PrometheusRecorder) RecordRetry(op string) {
	p.retries.WithLabelValues(op).Inc()
}

// RecordDistributed adds placed submissions.
func (p *PrometheusRecorder) RecordDistributed(count int) {
	if count > 0 {
		p.distributed.Add(float64(count))
	}
}

// RecordConsistencyCheck counts a check by outcome.
func (p *PrometheusRecorder) RecordConsistencyCheck(consistent bool) {
	p.consistency.WithLabelValues(strconv.FormatBool(consistent)).Inc()
}

// RecordNotification counts a notification attempt.
func (p *PrometheusRecorder) RecordNotification(result string) {
	p.notifications.WithLabelValues(result).Inc()
}
