// Package metrics provides Prometheus instrumentation for the meteocache server.
//
// Metrics exposed:
//   - meteocache_upstream_fetch_seconds: Histogram of upstream request duration by endpoint
//   - meteocache_upstream_fetches_total: Counter of upstream requests by endpoint and outcome
//   - meteocache_forecast_cache_requests_total: Counter of forecast lookups by result (hit, miss)
//   - meteocache_partitions_total: Counter of historical months by source (fetched, reused)
//   - meteocache_partition_errors_total: Counter of partition store failures by operation
//
// Metrics implements client.Recorder and can be passed to history.WithErrorHook
// through its PartitionError method.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HatiCode/meteocache/pkg/history"
	"github.com/HatiCode/meteocache/pkg/openmeteo"
)

// Outcome labels of meteocache_upstream_fetches_total.
const (
	OutcomeSuccess         = "success"
	OutcomeAPIError        = "api_error"
	OutcomeConnectionError = "connection_error"
	OutcomeError           = "error"
)

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	FetchSeconds    *prometheus.HistogramVec
	FetchesTotal    *prometheus.CounterVec
	ForecastCache   *prometheus.CounterVec
	Partitions      *prometheus.CounterVec
	PartitionErrors *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. A nil reg registers
// with the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FetchSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meteocache_upstream_fetch_seconds",
			Help:    "Time spent in upstream Open-Meteo requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		FetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meteocache_upstream_fetches_total",
			Help: "Total number of upstream requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),

		ForecastCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meteocache_forecast_cache_requests_total",
			Help: "Forecast cache lookups by result",
		}, []string{"result"}),

		Partitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meteocache_partitions_total",
			Help: "Historical months served, by source",
		}, []string{"source"}),

		PartitionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meteocache_partition_errors_total",
			Help: "Partition store failures by operation",
		}, []string{"operation"}),
	}
}

// ObserveFetch records one upstream request.
func (m *Metrics) ObserveFetch(endpoint string, duration time.Duration, err error) {
	m.FetchSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
	m.FetchesTotal.WithLabelValues(endpoint, outcome(err)).Inc()
}

// ObserveForecastCache records a forecast cache hit or miss.
func (m *Metrics) ObserveForecastCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ForecastCache.WithLabelValues(result).Inc()
}

// ObservePartition records a historical month served from the store (reused)
// or from upstream.
func (m *Metrics) ObservePartition(reused bool) {
	source := "fetched"
	if reused {
		source = "reused"
	}
	m.Partitions.WithLabelValues(source).Inc()
}

// PartitionError counts a partition store failure reported by the history cache.
func (m *Metrics) PartitionError(err error) {
	var readErr *history.CacheReadError
	var writeErr *history.CacheWriteError
	switch {
	case errors.As(err, &readErr):
		m.PartitionErrors.WithLabelValues("read").Inc()
	case errors.As(err, &writeErr):
		m.PartitionErrors.WithLabelValues("write").Inc()
	default:
		m.PartitionErrors.WithLabelValues("other").Inc()
	}
}

func outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	var apiErr *openmeteo.APIError
	if errors.As(err, &apiErr) {
		return OutcomeAPIError
	}
	var connErr *openmeteo.ConnectionError
	if errors.As(err, &connErr) {
		return OutcomeConnectionError
	}
	return OutcomeError
}
