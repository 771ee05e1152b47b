package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for the sync service.
// A nil *MetricsRegistry is valid; every observer method is a no-op on nil.
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// Upstream client
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	UpstreamRetriesTotal    *prometheus.CounterVec
	UpstreamRateLimitLeft   prometheus.Gauge
	UpstreamRateLimitWaits  prometheus.Counter
	CacheHitsTotal          *prometheus.CounterVec
	CacheMissesTotal        *prometheus.CounterVec

	// Sync / webhook / reconciliation
	SyncRecordsTotal       *prometheus.CounterVec
	WebhookEventsTotal     *prometheus.CounterVec
	WebhookQueueDepth      *prometheus.GaugeVec
	ReconciliationRuns     *prometheus.CounterVec
	ReconciliationDuration *prometheus.HistogramVec
	ConsistencyIssues      *prometheus.GaugeVec
}

// NewMetricsRegistry registers every metric on the default registerer
func NewMetricsRegistry() *MetricsRegistry {
	return NewMetricsRegistryWith(prometheus.DefaultRegisterer)
}

// NewMetricsRegistryWith registers every metric on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not panic.
func NewMetricsRegistryWith(reg prometheus.Registerer) *MetricsRegistry {
	f := promauto.With(reg)

	return &MetricsRegistry{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_sync_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_sync_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "portal_sync_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		UpstreamRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_sync_upstream_requests_total",
				Help: "Upstream API calls by method and outcome code",
			},
			[]string{"method", "outcome"},
		),
		UpstreamRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_sync_upstream_request_duration_seconds",
				Help:    "Upstream API latency in seconds, including retries",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),
		UpstreamRetriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_sync_upstream_retries_total",
				Help: "Upstream retries by error code",
			},
			[]string{"code"},
		),
		UpstreamRateLimitLeft: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_sync_upstream_rate_limit_remaining",
				Help: "Last X-RateLimit-Remaining reported by the upstream system",
			},
		),
		UpstreamRateLimitWaits: f.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_sync_upstream_rate_limit_waits_total",
				Help: "Times a request slept until the upstream rate-limit window reset",
			},
		),
		CacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_sync_cache_hits_total",
				Help: "Total cache hits by cache key pattern",
			},
			[]string{"cache_key_pattern"},
		),
		CacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_sync_cache_misses_total",
				Help: "Total cache misses by cache key pattern",
			},
			[]string{"cache_key_pattern"},
		),

		SyncRecordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_sync_records_total",
				Help: "Records handled by the sync engine by entity and outcome",
			},
			[]string{"entity", "outcome"},
		),
		WebhookEventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_sync_webhook_events_total",
				Help: "Webhook events by object type and final status",
			},
			[]string{"object_type", "status"},
		),
		WebhookQueueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "portal_sync_webhook_queue_depth",
				Help: "Webhook stream length and pending entries",
			},
			[]string{"kind"},
		),
		ReconciliationRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_sync_reconciliation_runs_total",
				Help: "Reconciliation runs by type and terminal status",
			},
			[]string{"type", "status"},
		),
		ReconciliationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_sync_reconciliation_duration_seconds",
				Help:    "Reconciliation run execution time in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"type"},
		),
		ConsistencyIssues: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "portal_sync_consistency_issues",
				Help: "Rows found by the last consistency check, by kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *MetricsRegistry) ObserveHTTP(endpoint, method, statusCode string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(seconds)
}

// TrackInFlight increments the in-flight gauge; call the returned func when done
func (m *MetricsRegistry) TrackInFlight(endpoint string) func() {
	if m == nil {
		return func() {}
	}
	g := m.HTTPRequestsInFlight.WithLabelValues(endpoint)
	g.Inc()
	return g.Dec
}

func (m *MetricsRegistry) ObserveUpstream(method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(method, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(method).Observe(seconds)
}

func (m *MetricsRegistry) ObserveRetry(code string) {
	if m == nil {
		return
	}
	m.UpstreamRetriesTotal.WithLabelValues(code).Inc()
}

func (m *MetricsRegistry) ObserveRateLimit(remaining int) {
	if m == nil {
		return
	}
	m.UpstreamRateLimitLeft.Set(float64(remaining))
}

func (m *MetricsRegistry) ObserveRateLimitWait() {
	if m == nil {
		return
	}
	m.UpstreamRateLimitWaits.Inc()
}

func (m *MetricsRegistry) ObserveCache(pattern string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(pattern).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(pattern).Inc()
}

func (m *MetricsRegistry) ObserveSyncRecords(entity string, synced, failed int) {
	if m == nil {
		return
	}
	m.SyncRecordsTotal.WithLabelValues(entity, "synced").Add(float64(synced))
	m.SyncRecordsTotal.WithLabelValues(entity, "failed").Add(float64(failed))
}

func (m *MetricsRegistry) ObserveWebhook(objectType, status string) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(objectType, status).Inc()
}

func (m *MetricsRegistry) ObserveQueue(length, pending int64) {
	if m == nil {
		return
	}
	m.WebhookQueueDepth.WithLabelValues("length").Set(float64(length))
	m.WebhookQueueDepth.WithLabelValues("pending").Set(float64(pending))
}

func (m *MetricsRegistry) ObserveRun(runType, status string, seconds float64) {
	if m == nil {
		return
	}
	m.ReconciliationRuns.WithLabelValues(runType, status).Inc()
	m.ReconciliationDuration.WithLabelValues(runType).Observe(seconds)
}

func (m *MetricsRegistry) ObserveConsistency(kind string, count int64) {
	if m == nil {
		return
	}
	m.ConsistencyIssues.WithLabelValues(kind).Set(float64(count))
}
