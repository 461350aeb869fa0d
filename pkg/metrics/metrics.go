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

	// Parse Metrics
	ParseLinesTotal  *prometheus.CounterVec
	ParseDuration    prometheus.Histogram
	ParseErrorsTotal *prometheus.CounterVec
	MapSurvivors     prometheus.Gauge
	MapObstacles     prometheus.Gauge
	SurvivorMismatch prometheus.Gauge

	// Aggregate Metrics
	AggregateDuration    *prometheus.HistogramVec
	AggregateErrorsTotal *prometheus.CounterVec

	// Render Metrics
	RenderDuration    *prometheus.HistogramVec
	RenderErrorsTotal *prometheus.CounterVec

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec
}

// NewCollector registers the collector's metrics on reg. Pass
// prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		ParseLinesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_lines_total",
				Help:      "Map file lines processed by classification",
			},
			[]string{"class"}, // header, comment, blank, non_data, obstacle, survivor, skipped, unclassified
		),

		ParseDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "parse_duration_seconds",
				Help:      "Duration of map file parsing in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),

		ParseErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_errors_total",
				Help:      "Total number of failed map loads by kind",
			},
			[]string{"kind"},
		),

		MapSurvivors: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "map_survivors",
				Help:      "Survivors in the most recently parsed map",
			},
		),

		MapObstacles: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "map_obstacles",
				Help:      "Obstacles in the most recently parsed map",
			},
		),

		SurvivorMismatch: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "map_survivor_discrepancy",
				Help:      "Parsed survivors minus the SURVIVORS= header of the most recent map",
			},
		),

		AggregateDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "aggregate_duration_seconds",
				Help:      "Duration of aggregate computation in seconds by view",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1.0},
			},
			[]string{"view"},
		),

		AggregateErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "aggregate_errors_total",
				Help:      "Total number of failed aggregates by view",
			},
			[]string{"view"},
		),

		RenderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Duration of chart rendering in seconds by artifact",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"artifact"},
		),

		RenderErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_errors_total",
				Help:      "Total number of rendering failures by artifact",
			},
			[]string{"artifact"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"query_type"},
		),

		DBConnectionPool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // "in_use", "idle", "total"
		),

		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer starts a timer that reports to histogram
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

// RecordParseLines adds n lines under class
func (c *Collector) RecordParseLines(class string, n int) {
	if n <= 0 {
		return
	}
	c.ParseLinesTotal.WithLabelValues(class).Add(float64(n))
}

// RecordParseError increments the failed-load counter
func (c *Collector) RecordParseError(kind string) {
	c.ParseErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordAggregateError increments the failed-aggregate counter
func (c *Collector) RecordAggregateError(view string) {
	c.AggregateErrorsTotal.WithLabelValues(view).Inc()
}

// RecordRenderError increments the rendering failure counter
func (c *Collector) RecordRenderError(artifact string) {
	c.RenderErrorsTotal.WithLabelValues(artifact).Inc()
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}
