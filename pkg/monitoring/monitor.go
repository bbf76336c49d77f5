package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket monitoring channels.
	WSConnectedClients = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_connected_clients",
			Help: "Open WebSocket connections per channel kind (admin|participant)",
		},
		[]string{"kind"},
	)

	WSMessageCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_messages_total",
			Help: "WebSocket messages by type and direction (in|out)",
		},
		[]string{"type", "direction"},
	)

	WSDroppedBroadcasts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_dropped_broadcasts_total",
			Help: "Broadcasts dropped because a client send buffer was full",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(WSConnectedClients)
	prometheus.MustRegister(WSMessageCounter)
	prometheus.MustRegister(WSDroppedBroadcasts)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
