package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tarot",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tarot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tarot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	readingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tarot",
			Subsystem: "readings",
			Name:      "created_total",
			Help:      "Total number of readings persisted.",
		},
		[]string{"mode"},
	)

	cardsDrawn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tarot",
			Subsystem: "draw",
			Name:      "cards_total",
			Help:      "Total number of cards drawn.",
		},
		[]string{"orientation"},
	)

	interpretations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tarot",
			Subsystem: "readings",
			Name:      "interpretations_total",
			Help:      "Total number of interpretations produced.",
		},
		[]string{"source"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		readingsCreated,
		cardsDrawn,
		interpretations,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies per route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}

			httpInFlight.Inc()
			start := time.Now()
			err := next(c)
			httpInFlight.Dec()

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// RecordReading counts a persisted reading. mode is "random" or "explicit".
func RecordReading(mode string) {
	readingsCreated.WithLabelValues(mode).Inc()
}

// RecordDraw counts drawn cards by orientation.
func RecordDraw(upright, reversed int) {
	cardsDrawn.WithLabelValues("upright").Add(float64(upright))
	cardsDrawn.WithLabelValues("reversed").Add(float64(reversed))
}

// RecordInterpretation counts an interpretation. source is "auto", "reader"
// or "llm".
func RecordInterpretation(source string) {
	interpretations.WithLabelValues(source).Inc()
}
