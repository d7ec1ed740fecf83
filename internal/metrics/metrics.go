// Package metrics records engine and audit measurements.
package metrics

import "time"

// Recorder receives engine measurements.
type Recorder interface {
	// RecordOperation observes one engine operation with its outcome label.
	RecordOperation(op, result string, duration time.Duration)
	// RecordRetry counts an optimistic-lock retry of op.
	RecordRetry(op string)
	// RecordDistributed counts submissions placed by auto-distribution.
	RecordDistributed(count int)
	// RecordConsistencyCheck counts a verification and whether it matched.
	RecordConsistencyCheck(consistent bool)
	// RecordNotification counts a notification attempt by result.
	RecordNotification(result string)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

var _ Recorder = (*NopMetrics)(nil)

// NewNop creates a no-op recorder.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordOperation discards the operation metric.
func (n *NopMetrics) RecordOperation(_, _ string, _ time.Duration) {}

// RecordRetry discards the retry metric.
func (n *NopMetrics) RecordRetry(_ string) {}

// RecordDistributed discards the distribution metric.
func (n *NopMetrics) RecordDistributed(_ int) {}

// RecordConsistencyCheck discards the consistency metric.
func (n *NopMetrics) RecordConsistencyCheck(_ bool) {}

// RecordNotification discards the notification metric.
func (n *NopMetrics) RecordNotification(_ string) {}
