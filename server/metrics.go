package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accumulator_operations_total",
			Help: "Accumulator operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accumulator_operation_duration_seconds",
			Help:    "Duration of accumulator operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"operation"},
	)

	ActiveHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "accumulator_active_handles",
			Help: "Number of live accumulator handles",
		},
	)

	ProofSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accumulator_proof_size_bytes",
			Help:    "Size of issued proofs in bytes",
			Buckets: prometheus.LinearBuckets(256, 256, 6),
		},
		[]string{"kind"},
	)

	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accumulator_verifications_total",
			Help: "Verification results by proof kind",
		},
		[]string{"kind", "result"},
	)

	ExportPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accumulator_export_publish_errors_total",
			Help: "Exports that could not be written to the export store",
		},
	)
)

type MetricTimer struct {
	start     time.Time
	operation string
}

func StartOperationTimer(operation string) *MetricTimer {
	return &MetricTimer{start: time.Now(), operation: operation}
}

// ObserveOutcome records the duration and counts the call under outcome
// ("ok" or an error code).
func (t *MetricTimer) ObserveOutcome(outcome string) {
	OperationDuration.WithLabelValues(t.operation).Observe(time.Since(t.start).Seconds())
	OperationsTotal.WithLabelValues(t.operation, outcome).Inc()
}

func RecordProofSize(kind string, sizeBytes int) {
	ProofSize.WithLabelValues(kind).Observe(float64(sizeBytes))
}

func RecordVerification(kind string, valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	VerificationsTotal.WithLabelValues(kind, result).Inc()
}
