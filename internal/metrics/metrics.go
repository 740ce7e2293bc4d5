package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RateLimitDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Sliding-window rate limit decisions by outcome.",
		},
		[]string{"outcome"},
	)

	GeolocationLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geolocation_lookups_total",
			Help: "IP geolocation lookups by result.",
		},
		[]string{"result"},
	)

	MagicLinkEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magic_link_events_total",
			Help: "Cross-device magic-link handshake events.",
		},
		[]string{"event"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Register adds every collector to reg. Call once at startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		RateLimitDecisions,
		GeolocationLookups,
		MagicLinkEvents,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Instrument records request counts and latency keyed by the matched route
// pattern so path parameters (tokens, ids) never become label values.
func Instrument() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			labels := []string{c.Request().Method, path, strconv.Itoa(status)}
			httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(labels...).Inc()
			return err
		}
	}
}
