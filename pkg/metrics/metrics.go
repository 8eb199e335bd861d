package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Analysis Metrics
	AnalysesTotal       *prometheus.CounterVec
	SelectionFallbacks  *prometheus.CounterVec
	WindowWidenings     prometheus.Counter
	GenerationMerges    prometheus.Counter
	NoImageryTotal      *prometheus.CounterVec
	TimeSeriesBuckets   prometheus.Histogram

	// Backend Metrics
	BackendRequestDuration *prometheus.HistogramVec
	BackendErrorsTotal     *prometheus.CounterVec

	// Location Metrics
	GeocodeCacheHits   prometheus.Counter
	GeocodeCacheMisses prometheus.Counter
	LocationTierTotal  *prometheus.CounterVec

	// Admission Metrics
	BackendSlotsInUse prometheus.Gauge
}

// NewCollector creates a new metrics collector
func NewCollector(namespace string) *Collector {
	return &Collector{
		APIRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		AnalysesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Total number of imagery analyses by type and satellite",
			},
			[]string{"analysis_type", "satellite"},
		),

		SelectionFallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "selection_fallbacks_total",
				Help:      "Analyses served by a non-primary collection, by type and satellite",
			},
			[]string{"analysis_type", "satellite"},
		),

		WindowWidenings: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "window_widenings_total",
				Help:      "Date windows widened after an empty first cascade",
			},
		),

		GenerationMerges: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_merges_total",
				Help:      "Analyses served by merged adjacent satellite generations",
			},
		),

		NoImageryTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "no_imagery_total",
				Help:      "Analyses that exhausted every candidate collection",
			},
			[]string{"analysis_type"},
		),

		TimeSeriesBuckets: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "time_series_buckets",
				Help:      "Number of buckets per time-series request",
				Buckets:   []float64{4, 8, 12, 24, 52, 100, 250, 500},
			},
		),

		BackendRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Remote-sensing backend request duration in seconds by operation",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"operation"},
		),

		BackendErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_errors_total",
				Help:      "Remote-sensing backend errors by operation and status",
			},
			[]string{"operation", "status"},
		),

		GeocodeCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "geocode_cache_hits_total",
				Help:      "Geocoding requests served from the in-memory cache",
			},
		),

		GeocodeCacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "geocode_cache_misses_total",
				Help:      "Geocoding requests that reached the upstream geocoder",
			},
		),

		LocationTierTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "location_tier_total",
				Help:      "Location resolutions by winning tier",
			},
			[]string{"tier"},
		),

		BackendSlotsInUse: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backend_slots_in_use",
				Help:      "Concurrent backend requests currently admitted",
			},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordAnalysis records a completed analysis and its selection outcome
func (c *Collector) RecordAnalysis(analysisType, satellite string, fallback, widened, merged bool) {
	c.AnalysesTotal.WithLabelValues(analysisType, satellite).Inc()
	if fallback {
		c.SelectionFallbacks.WithLabelValues(analysisType, satellite).Inc()
	}
	if widened {
		c.WindowWidenings.Inc()
	}
	if merged {
		c.GenerationMerges.Inc()
	}
}

// RecordNoImagery increments the exhausted-cascade counter
func (c *Collector) RecordNoImagery(analysisType string) {
	c.NoImageryTotal.WithLabelValues(analysisType).Inc()
}

// ObserveBackendRequest records one backend request duration
func (c *Collector) ObserveBackendRequest(operation string, seconds float64) {
	c.BackendRequestDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordBackendError increments backend error counter
func (c *Collector) RecordBackendError(operation, status string) {
	c.BackendErrorsTotal.WithLabelValues(operation, status).Inc()
}

// RecordLocationTier increments the winning location tier counter
func (c *Collector) RecordLocationTier(tier string) {
	c.LocationTierTotal.WithLabelValues(tier).Inc()
}
