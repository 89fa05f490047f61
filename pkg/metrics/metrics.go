package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// Degradation metrics
	CurrentLevel       *prometheus.GaugeVec
	TransitionsTotal   *prometheus.CounterVec
	FailuresRecorded   *prometheus.CounterVec
	SuccessesRecorded  *prometheus.CounterVec
	RoutingOutcomes    *prometheus.CounterVec
	DownstreamDuration *prometheus.HistogramVec

	// Reconciliation metrics
	NotificationsProcessed *prometheus.CounterVec
	NotificationErrors     *prometheus.CounterVec
	QueueDepth             *prometheus.GaugeVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "shedgate",
		Subsystem: "",
		Enabled:   true,
	}
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Metrics{}
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
			[]string{"method"},
		),
		CurrentLevel: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "degradation_level",
				Help:      "Current degradation level (1=full, 2=degraded, 3=maintenance)",
			},
			[]string{"state"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "level_transitions_total",
				Help:      "Total number of degradation level transitions",
			},
			[]string{"from", "to"},
		),
		FailuresRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "failures_recorded_total",
				Help:      "Total number of failures recorded by the transition engine",
			},
			[]string{"service_type", "error_type"},
		),
		SuccessesRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "successes_recorded_total",
				Help:      "Total number of successes recorded by the transition engine",
			},
			[]string{"service_type"},
		),
		RoutingOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "routing_outcomes_total",
				Help:      "Total number of routed requests by classification",
			},
			[]string{"handler", "outcome"},
		),
		DownstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "downstream_duration_seconds",
				Help:      "Downstream handler invocation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"handler"},
		),
		NotificationsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "notifications_processed_total",
				Help:      "Total number of alarm notifications processed",
			},
			[]string{"class"},
		),
		NotificationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "notification_errors_total",
				Help:      "Total number of alarm notifications that failed processing",
			},
			[]string{"reason"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "notification_queue_depth",
				Help:      "Number of notifications waiting in the queue",
			},
			[]string{"queue"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "errors_total",
				Help:      "Total number of errors by component",
			},
			[]string{"component", "error_type"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.CurrentLevel,
		m.TransitionsTotal,
		m.FailuresRecorded,
		m.SuccessesRecorded,
		m.RoutingOutcomes,
		m.DownstreamDuration,
		m.NotificationsProcessed,
		m.NotificationErrors,
		m.QueueDepth,
		m.ErrorsTotal,
	)

	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.HTTPRequestsTotal == nil {
		return
	}

	statusStr := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// SetCurrentLevel updates the degradation level gauge
func (m *Metrics) SetCurrentLevel(level int) {
	if m == nil || m.CurrentLevel == nil {
		return
	}

	m.CurrentLevel.WithLabelValues("global").Set(float64(level))
}

// RecordTransition records a level transition
func (m *Metrics) RecordTransition(from, to int) {
	if m == nil || m.TransitionsTotal == nil {
		return
	}

	m.TransitionsTotal.WithLabelValues(strconv.Itoa(from), strconv.Itoa(to)).Inc()
}

// RecordFailure records a failure event
func (m *Metrics) RecordFailure(serviceType, errorType string) {
	if m == nil || m.FailuresRecorded == nil {
		return
	}

	m.FailuresRecorded.WithLabelValues(serviceType, errorType).Inc()
}

// RecordSuccess records a success event
func (m *Metrics) RecordSuccess(serviceType string) {
	if m == nil || m.SuccessesRecorded == nil {
		return
	}

	m.SuccessesRecorded.WithLabelValues(serviceType).Inc()
}

// RecordRoutingOutcome records the classification of a routed request
func (m *Metrics) RecordRoutingOutcome(handler, outcome string) {
	if m == nil || m.RoutingOutcomes == nil {
		return
	}

	m.RoutingOutcomes.WithLabelValues(handler, outcome).Inc()
}

// RecordDownstreamDuration records downstream invocation latency
func (m *Metrics) RecordDownstreamDuration(handler string, duration time.Duration) {
	if m == nil || m.DownstreamDuration == nil {
		return
	}

	m.DownstreamDuration.WithLabelValues(handler).Observe(duration.Seconds())
}

// RecordNotification records a processed alarm notification
func (m *Metrics) RecordNotification(class string) {
	if m == nil || m.NotificationsProcessed == nil {
		return
	}

	m.NotificationsProcessed.WithLabelValues(class).Inc()
}

// RecordNotificationError records a failed alarm notification
func (m *Metrics) RecordNotificationError(reason string) {
	if m == nil || m.NotificationErrors == nil {
		return
	}

	m.NotificationErrors.WithLabelValues(reason).Inc()
}

// UpdateQueueDepth updates the notification queue depth gauge
func (m *Metrics) UpdateQueueDepth(queue string, depth int64) {
	if m == nil || m.QueueDepth == nil {
		return
	}

	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordError records an error
func (m *Metrics) RecordError(component, errorType string) {
	if m == nil || m.ErrorsTotal == nil {
		return
	}

	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// PrometheusMiddleware returns a Gin middleware that records HTTP metrics
func (m *Metrics) PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || m.HTTPRequestsInFlight == nil {
			c.Next()
			return
		}

		start := time.Now()
		m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method).Inc()

		c.Next()

		m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method).Dec()
		m.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
