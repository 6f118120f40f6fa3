package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics records outcomes for settlement engine operations
// (order creation, transitions, reservations, wallet settlement).
type OperationMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	retries  *prometheus.CounterVec
}

// NewOperationMetrics registers the operation metrics on the provided registerer.
func NewOperationMetrics(reg prometheus.Registerer) *OperationMetrics {
	if reg == nil {
		return &OperationMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "operation_duration_seconds",
		Help:    "Duration of engine operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "operation_success",
		Help: "Successful engine operations.",
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "operation_failure",
		Help: "Failed engine operations, labelled by error code.",
	}, []string{"operation", "code"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "operation_retries",
		Help: "Retried attempts of engine operations.",
	}, []string{"operation"})
	reg.MustRegister(duration, success, failure, retries)
	return &OperationMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		retries:  retries,
	}
}

// ObserveDuration records the duration for the named operation.
func (m *OperationMetrics) ObserveDuration(op string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (m *OperationMetrics) IncSuccess(op string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (m *OperationMetrics) IncFailure(op, code string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(op), normalizeLabel(code)).Inc()
}

// IncRetry counts one additional attempt of the named operation.
func (m *OperationMetrics) IncRetry(op string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(op)).Inc()
}

// Track is meant to be deferred at the top of an operation:
//
//	defer m.Track("create_order", time.Now(), &err)
func (m *OperationMetrics) Track(op string, started time.Time, errp *error) {
	if m == nil {
		return
	}
	m.ObserveDuration(op, time.Since(started))
	if errp == nil || *errp == nil {
		m.IncSuccess(op)
		return
	}
	m.IncFailure(op, codeOf(*errp))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
