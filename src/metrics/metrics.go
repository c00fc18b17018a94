package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledger"

var (
	// Registry holds the ledger collectors plus the process and Go collectors.
	Registry = prometheus.NewRegistry()

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "commands_total",
			Help:      "Protocol commands handled, by verb and outcome.",
		},
		[]string{"verb", "outcome"},
	)

	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "command_duration_seconds",
			Help:      "Time spent executing a protocol command.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"verb"},
	)

	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      "active_connections",
			Help:      "Open TCP protocol connections.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "HTTP requests handled by the gateway.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Duration of gateway HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	broadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "broadcasts_total",
			Help:      "Operation events fanned out to subscribers, by status.",
		},
		[]string{"estado"},
	)

	subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Currently registered live subscribers.",
		},
	)

	prunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "pruned_subscribers_total",
			Help:      "Subscribers dropped after a failed or blocked delivery.",
		},
	)
)

func init() {
	Registry.MustRegister(
		commandsTotal,
		commandDuration,
		activeConnections,
		httpRequests,
		httpDuration,
		broadcastsTotal,
		subscribers,
		prunedTotal,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// -----------------------------------------------------------------------------

// RecordCommand counts one protocol command. outcome is "ok" or "fail".
func RecordCommand(verb string, ok bool, duration time.Duration) {
	if verb == "" {
		verb = "unknown"
	}
	outcome := "fail"
	if ok {
		outcome = "ok"
	}
	commandsTotal.WithLabelValues(verb, outcome).Inc()
	commandDuration.WithLabelValues(verb).Observe(duration.Seconds())
}

func ConnectionOpened() { activeConnections.Inc() }
func ConnectionClosed() { activeConnections.Dec() }

// RecordBroadcast counts one event accepted by the hub.
func RecordBroadcast(estado string) {
	broadcastsTotal.WithLabelValues(estado).Inc()
}

// SetSubscribers publishes the hub size.
func SetSubscribers(n int) {
	subscribers.Set(float64(n))
}

// SubscriberPruned counts a subscriber removed for a failed delivery.
func SubscriberPruned() {
	prunedTotal.Inc()
}

// -----------------------------------------------------------------------------

// GinMiddleware records request count and latency under the matched route
// template so path parameters do not explode label cardinality.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if route == "/metrics" {
			return
		}

		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
