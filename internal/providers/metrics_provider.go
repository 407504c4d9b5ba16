package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"listentier/internal/structures"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
	SetRecordsTotal(count int)
	AddIngested(source string, added, duplicates, skipped int)
	IncSyncResult(result string)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration prometheus.Histogram
	recordsTotal        prometheus.Gauge
	ingestedRecords     *prometheus.CounterVec
	syncRuns            *prometheus.CounterVec
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) SetRecordsTotal(count int) {
	m.recordsTotal.Set(float64(count))
}

func (m *MetricsProvider) AddIngested(source string, added, duplicates, skipped int) {
	m.ingestedRecords.WithLabelValues(source, "added").Add(float64(added))
	m.ingestedRecords.WithLabelValues(source, "duplicate").Add(float64(duplicates))
	m.ingestedRecords.WithLabelValues(source, "skipped").Add(float64(skipped))
}

func (m *MetricsProvider) IncSyncResult(result string) {
	m.syncRuns.WithLabelValues(result).Inc()
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "listentier_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "listentier_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listentier_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listentier_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "listentier_persistence_duration_seconds",
			Help:    "Duration of persistence operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		recordsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "listentier_play_records",
			Help: "Number of deduplicated play records in the store",
		}),

		ingestedRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "listentier_ingested_records_total",
			Help: "Ingested records by source and outcome",
		}, []string{"source", "outcome"}),

		syncRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "listentier_sync_runs_total",
			Help: "Sync runs by result",
		}, []string{"result"}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) SetRecordsTotal(_ int)                            {}
func (n *noopMetrics) AddIngested(_ string, _, _, _ int)                {}
func (n *noopMetrics) IncSyncResult(_ string)                           {}
