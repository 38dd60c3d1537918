package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anime-shed/plant-inspector-go/internal/observer"
)

const namespace = "plant_inspector"

// Metrics owns a private registry with HTTP and proxy-operation collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	eventsTotal    *prometheus.CounterVec
	eventDuration  *prometheus.HistogramVec
	uploadBytes    prometheus.Counter
	resultsPerCall prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "Number of in-flight HTTP requests.",
			},
		),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Token, recognition and upload events by type.",
			},
			[]string{"event"},
		),
		eventDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Duration of upstream calls behind each event.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event"},
		),
		uploadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "bytes_total",
				Help:      "Bytes successfully written to object storage.",
			},
		),
		resultsPerCall: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "recognition",
				Name:      "results",
				Help:      "Candidates returned per successful recognition.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8},
			},
		),
	}

	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.eventsTotal,
		m.eventDuration,
		m.uploadBytes,
		m.resultsPerCall,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count, latency and in-flight requests per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// OnEvent implements observer.Observer.
func (m *Metrics) OnEvent(_ context.Context, event observer.Event) {
	label := string(event.Type)
	m.eventsTotal.WithLabelValues(label).Inc()
	if event.Duration > 0 {
		m.eventDuration.WithLabelValues(label).Observe(event.Duration.Seconds())
	}

	switch event.Type {
	case observer.UploadCompleted:
		if size, ok := event.Metadata["size"].(int64); ok && size > 0 {
			m.uploadBytes.Add(float64(size))
		}
	case observer.RecognitionCompleted:
		if n, ok := event.Metadata["results"].(int); ok {
			m.resultsPerCall.Observe(float64(n))
		}
	}
}

func (m *Metrics) GetObserverName() string {
	return "metrics_observer"
}
