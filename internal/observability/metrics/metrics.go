// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transcript_navigator"

// Metrics holds all Prometheus metrics for the navigator.
type Metrics struct {
	// Segment store metrics
	PageFetchesTotal      *prometheus.CounterVec
	PageFetchErrors       *prometheus.CounterVec
	PageFetchLatency      *prometheus.HistogramVec
	RequestsCancelled     prometheus.Counter
	StaleResponsesDropped prometheus.Counter
	SegmentsLoaded        prometheus.Counter

	// Deep link metrics
	DeepLinkResolutions       *prometheus.CounterVec
	DeepLinkAborted           prometheus.Counter
	DeepLinkSequentialFetches prometheus.Histogram
	DeepLinkSeeks             *prometheus.CounterVec

	// View metrics
	HighlightsActive prometheus.Gauge
	LoadMoreTriggers *prometheus.CounterVec

	// Backend HTTP metrics
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PageFetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_fetches_total",
			Help:      "Total number of segment page requests issued",
		}, []string{"kind"}),
		PageFetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_fetch_errors_total",
			Help:      "Total number of failed segment page requests",
		}, []string{"kind", "error_kind"}),
		PageFetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_fetch_latency_seconds",
			Help:      "Segment page request latency in seconds",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"kind"}),
		RequestsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_cancelled_total",
			Help:      "Total number of page requests cancelled by key change or teardown",
		}),
		StaleResponsesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_dropped_total",
			Help:      "Total number of responses ignored because their key was superseded",
		}),
		SegmentsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_loaded_total",
			Help:      "Total number of segments appended to stores",
		}),

		DeepLinkResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deeplink_resolutions_total",
			Help:      "Total number of deep link resolutions by strategy",
		}, []string{"strategy"}),
		DeepLinkAborted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deeplink_aborted_total",
			Help:      "Total number of deep link highlights aborted by panel collapse",
		}),
		DeepLinkSequentialFetches: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deeplink_sequential_fetches",
			Help:      "Sequential page fetches issued per resolution",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}),
		DeepLinkSeeks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deeplink_seeks_total",
			Help:      "Total number of positional seeks by result",
		}, []string{"result"}),

		HighlightsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "highlights_active",
			Help:      "Number of segment highlights currently shown",
		}),
		LoadMoreTriggers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_more_triggers_total",
			Help:      "Total number of next-page requests triggered by the list",
		}, []string{"source"}),

		BackendRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of transcript API requests",
		}, []string{"method", "code"}),
		BackendLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_latency_seconds",
			Help:      "Transcript API round trip latency in seconds",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method"}),

		KafkaPublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordPageFetch records one finished page request. errorKind is empty on success.
func (m *Metrics) RecordPageFetch(kind, errorKind string, latencySeconds float64) {
	m.PageFetchesTotal.WithLabelValues(kind).Inc()
	m.PageFetchLatency.WithLabelValues(kind).Observe(latencySeconds)
	if errorKind != "" {
		m.PageFetchErrors.WithLabelValues(kind, errorKind).Inc()
	}
}

// RecordCancelled records a request aborted on purpose.
func (m *Metrics) RecordCancelled() {
	m.RequestsCancelled.Inc()
}

// RecordStaleResponse records a response dropped for a superseded key.
func (m *Metrics) RecordStaleResponse() {
	m.StaleResponsesDropped.Inc()
}

// RecordSegmentsLoaded records segments appended to a store.
func (m *Metrics) RecordSegmentsLoaded(n int) {
	m.SegmentsLoaded.Add(float64(n))
}

// RecordResolution records a finished deep link resolution.
func (m *Metrics) RecordResolution(strategy string, sequentialFetches int) {
	m.DeepLinkResolutions.WithLabelValues(strategy).Inc()
	m.DeepLinkSequentialFetches.Observe(float64(sequentialFetches))
}

// RecordSeek records a positional seek result: found, not_found or error.
func (m *Metrics) RecordSeek(result string) {
	m.DeepLinkSeeks.WithLabelValues(result).Inc()
}

// RecordAborted records a highlight aborted by collapse.
func (m *Metrics) RecordAborted() {
	m.DeepLinkAborted.Inc()
}

// RecordHighlightStart records a highlight becoming visible.
func (m *Metrics) RecordHighlightStart() {
	m.HighlightsActive.Inc()
}

// RecordHighlightEnd records a highlight being cleared.
func (m *Metrics) RecordHighlightEnd() {
	m.HighlightsActive.Dec()
}

// RecordLoadMore records a next-page trigger from the list.
func (m *Metrics) RecordLoadMore(source string) {
	m.LoadMoreTriggers.WithLabelValues(source).Inc()
}

// RecordBackendRequest records a transcript API round trip.
func (m *Metrics) RecordBackendRequest(method, code string, latencySeconds float64) {
	m.BackendRequests.WithLabelValues(method, code).Inc()
	m.BackendLatency.WithLabelValues(method).Observe(latencySeconds)
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
