// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "modelnormalizer"

	resourceLabelName  = "resource"
	operationLabelName = "operation"
	outcomeLabelName   = "outcome"
	resultLabelName    = "result"

	OutcomeSuccess = "success"
	OutcomeError   = "error"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	// buckets are request latency buckets in milliseconds, 1ms to ~8s.
	buckets = prometheus.ExponentialBuckets(1, 2, 14)

	RecordOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "operations_total",
			Help:      "number of record operations by resource, operation and outcome",
		}, []string{resourceLabelName, operationLabelName, outcomeLabelName})

	RecordLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "operation_latency_ms",
			Help:      "latency of record operations in milliseconds",
			Buckets:   buckets,
		}, []string{resourceLabelName, operationLabelName})

	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "representation cache lookups by resource and result",
		}, []string{resourceLabelName, resultLabelName})
)

// Register registers every collector with r.
func Register(r prometheus.Registerer) {
	r.MustRegister(RecordOperations)
	r.MustRegister(RecordLatency)
	r.MustRegister(CacheRequests)
}

// ObserveRecordOperation records the outcome and latency of one operation.
func ObserveRecordOperation(resource, operation string, start time.Time, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	RecordOperations.WithLabelValues(resource, operation, outcome).Inc()
	RecordLatency.WithLabelValues(resource, operation).
		Observe(float64(time.Since(start).Microseconds()) / 1000)
}

// ObserveCacheLookup counts a representation cache hit or miss.
func ObserveCacheLookup(resource string, hit bool) {
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	CacheRequests.WithLabelValues(resource, result).Inc()
}
