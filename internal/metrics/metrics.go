package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geopulse"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	hubSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Sessions currently subscribed to the fan-out hub.",
		},
	)

	hubPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "published_packets_total",
			Help:      "Packets published to the fan-out hub.",
		},
	)

	hubDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "dropped_packets_total",
			Help:      "Packets evicted from lagging subscriber queues.",
		},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "sessions_active",
			Help:      "Open realtime sessions.",
		},
	)

	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "inbound_frames_dropped_total",
			Help:      "Inbound frames discarded by sessions.",
		},
		[]string{"reason"},
	)

	busEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "consumed_events_total",
			Help:      "Position events consumed from the event bus.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		hubSubscribers,
		hubPublished,
		hubDropped,
		sessionsActive,
		framesDropped,
		busEvents,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request metrics keyed by the matched route template.
func GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		path := ctx.FullPath()
		if path == "/metrics" {
			ctx.Next()
			return
		}
		if path == "" {
			path = "unmatched"
		}

		httpInFlight.Inc()
		start := time.Now()
		defer func() {
			httpInFlight.Dec()
			httpRequests.WithLabelValues(ctx.Request.Method, path, strconv.Itoa(ctx.Writer.Status())).Inc()
			httpDuration.WithLabelValues(ctx.Request.Method, path).Observe(time.Since(start).Seconds())
		}()

		ctx.Next()
	}
}

func SetHubSubscribers(n int) { hubSubscribers.Set(float64(n)) }

func IncHubPublished() { hubPublished.Inc() }

func IncHubDropped() { hubDropped.Inc() }

func SessionOpened() { sessionsActive.Inc() }

func SessionClosed() { sessionsActive.Dec() }

// Reasons for discarding an inbound realtime frame.
const (
	FrameMalformed   = "malformed"
	FrameRateLimited = "rate_limited"
	FrameRejected    = "rejected"
	FrameNonBinary   = "non_binary"
	FrameOversized   = "oversized"
)

func IncFrameDropped(reason string) { framesDropped.WithLabelValues(reason).Inc() }

// Outcomes of handling one bus event.
const (
	BusPersisted = "persisted"
	BusDropped   = "dropped"
	BusFailed    = "failed"
	BusIgnored   = "ignored"
)

func IncBusEvent(outcome string) { busEvents.WithLabelValues(outcome).Inc() }
